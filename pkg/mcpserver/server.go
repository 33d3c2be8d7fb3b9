// Package mcpserver exposes the SY-1000 parameter store as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/james-see/sy1000sync/pkg/bridge"
	"github.com/james-see/sy1000sync/pkg/catalog"
	"github.com/james-see/sy1000sync/pkg/host"
	"github.com/james-see/sy1000sync/pkg/sysex"
)

// Version is reported to MCP clients
const Version = "1.0.0"

type tools struct {
	store *host.Store
	ctl   *bridge.Controller
	log   *slog.Logger
}

type parameter struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Kind    string   `json:"kind"`
	Min     int      `json:"min"`
	Max     int      `json:"max"`
	Value   int      `json:"value"`
	Choices []string `json:"choices,omitempty"`
}

func view(p host.Parameter) parameter {
	lo, hi := p.HostRange()
	return parameter{
		ID:      p.ID,
		Name:    p.Name,
		Address: p.AddressString(),
		Kind:    p.Kind.String(),
		Min:     lo,
		Max:     hi,
		Value:   p.Value,
		Choices: p.Choices,
	}
}

// NewServer builds an MCP server with the SY-1000 tools registered
func NewServer(store *host.Store, ctl *bridge.Controller, log *slog.Logger) *server.MCPServer {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	t := &tools{store: store, ctl: ctl, log: log}

	s := server.NewMCPServer(
		"SY-1000 Sync MCP",
		Version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("sy1000_list-parameters",
		mcp.WithDescription("Lists the SY-1000 parameters with their current values."),
		mcp.WithString("kind", mcp.Description("Optional filter: single, dual_time, dual_bpm, register or register_bit.")),
	), t.listParameters)

	s.AddTool(mcp.NewTool("sy1000_get-parameter",
		mcp.WithDescription("Returns one SY-1000 parameter and its current value."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Parameter id, e.g. patch_level.")),
	), t.getParameter)

	s.AddTool(mcp.NewTool("sy1000_set-parameter",
		mcp.WithDescription("Sets an SY-1000 parameter. The change is sent to the device."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Parameter id, e.g. patch_level.")),
		mcp.WithNumber("value", mcp.Required(), mcp.Description("New value. Choice parameters take the choice index.")),
	), t.setParameter)

	s.AddTool(mcp.NewTool("sy1000_encode-sysex",
		mcp.WithDescription("Encodes an SY-1000 DT1 SysEx message without sending it."),
		mcp.WithString("address", mcp.Required(), mcp.Description("Address as 8 hex digits, e.g. 10000312.")),
		mcp.WithNumber("width", mcp.Required(), mcp.Description("Data width in bytes: 1, 2, 3, 4 or 8.")),
		mcp.WithNumber("value", mcp.Required(), mcp.Description("Value to encode.")),
	), t.encodeSysEx)

	s.AddTool(mcp.NewTool("sy1000_decode-sysex",
		mcp.WithDescription("Decodes an SY-1000 DT1 SysEx message given as hex."),
		mcp.WithString("hex", mcp.Required(), mcp.Description("Message bytes as hex, framing optional.")),
	), t.decodeSysEx)

	return s
}

// Serve runs the MCP server on stdio until the client disconnects
func Serve(store *host.Store, ctl *bridge.Controller, log *slog.Logger) error {
	if err := server.ServeStdio(NewServer(store, ctl, log)); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (t *tools) listParameters(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.log.Debug("mcp list parameters")

	var filter *catalog.Kind
	if k := request.GetString("kind", ""); k != "" {
		kind, err := catalog.ParseKind(k)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter = &kind
	}

	var out []parameter
	for _, p := range t.store.Parameters() {
		if filter != nil && p.Kind != *filter {
			continue
		}
		out = append(out, view(p))
	}
	return jsonResult(out)
}

func (t *tools) getParameter(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t.log.Debug("mcp get parameter", "id", id)

	p, ok := t.store.Parameter(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", host.ErrUnknownParameter, id)), nil
	}
	return jsonResult(view(p))
}

func (t *tools) setParameter(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := request.RequireInt("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t.log.Info("mcp set parameter", "id", id, "value", value)

	if err := t.store.Set(id, value); err != nil {
		if errors.Is(err, host.ErrUnknownParameter) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("failed to set parameter: %w", err)
	}
	p, _ := t.store.Parameter(id)
	return jsonResult(view(p))
}

type message struct {
	Hex     string `json:"hex"`
	Address string `json:"address"`
	Width   int    `json:"width"`
	Value   uint32 `json:"value"`
}

func (t *tools) encodeSysEx(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := request.RequireString("address")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	width, err := request.RequireInt("width")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := request.RequireInt("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	addr, err := sysex.ParseAddress(a)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := sysex.Encode(sysex.Frame{Address: addr, Width: width, Value: uint32(value)})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f := m.Frame()
	return jsonResult(message{Hex: m.String(), Address: f.Address.String(), Width: f.Width, Value: f.Value})
}

func (t *tools) decodeSysEx(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h, err := request.RequireString("hex")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := sysex.ParseHex(h)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, ok := sysex.Parse(raw)
	if !ok {
		return mcp.NewToolResultError("not an SY-1000 DT1 message"), nil
	}
	f := m.Frame()
	return jsonResult(message{Hex: m.String(), Address: f.Address.String(), Width: f.Width, Value: f.Value})
}
