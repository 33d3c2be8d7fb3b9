package main

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/james-see/sy1000sync/pkg/api"
	"github.com/james-see/sy1000sync/pkg/capture"
	"github.com/james-see/sy1000sync/pkg/catalog"
	"github.com/james-see/sy1000sync/pkg/mcpserver"
	"github.com/james-see/sy1000sync/pkg/midiio"
	"github.com/james-see/sy1000sync/pkg/session"
	"github.com/james-see/sy1000sync/pkg/sysex"
	"github.com/james-see/sy1000sync/pkg/tui"
)

var (
	framed     bool
	decodeFile string
	exportDB   string
	exportYAML bool
	saveState  string
)

var encodeCmd = &cobra.Command{
	Use:   "encode <address> <width> <value>",
	Short: "Encode a DT1 message",
	Args:  cobra.ExactArgs(3),
	RunE:  runEncode,
}

var decodeCmd = &cobra.Command{
	Use:   "decode [hex]",
	Short: "Decode DT1 messages from hex or a .syx/.mid file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDecode,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the parameter catalog or export it",
	Args:  cobra.NoArgs,
	RunE:  runCatalog,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI ports",
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

var replayCmd = &cobra.Command{
	Use:   "replay <capture>",
	Short: "Apply the device messages of a .syx/.mid capture to the session",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func init() {
	encodeCmd.Flags().BoolVar(&framed, "framed", false, "Include F0/F7 framing")
	decodeCmd.Flags().StringVarP(&decodeFile, "file", "f", "", "Capture file (.syx or .mid)")
	catalogCmd.Flags().StringVar(&exportDB, "db", "", "Write the catalog into a SQLite database")
	catalogCmd.Flags().BoolVar(&exportYAML, "yaml", false, "Print the catalog as YAML")
	replayCmd.Flags().StringVarP(&saveState, "output", "o", "", "Write the resulting state to this file")
}

func runEncode(cmd *cobra.Command, args []string) error {
	addr, err := sysex.ParseAddress(args[0])
	if err != nil {
		return err
	}
	width, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid width: %w", err)
	}
	value, err := strconv.ParseUint(args[2], 0, 32)
	if err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}

	m, err := sysex.Encode(sysex.Frame{Address: addr, Width: width, Value: uint32(value)})
	if err != nil {
		return err
	}
	if framed {
		fmt.Printf("% X\n", m.Framed())
		return nil
	}
	fmt.Println(m.String())
	return nil
}

func describe(cat *catalog.Catalog, m sysex.Message) string {
	f := m.Frame()
	var ids []string
	for _, kind := range []catalog.Kind{catalog.Single, catalog.DualTime, catalog.DualBpm, catalog.Register} {
		if def, ok := cat.Lookup(f.Address, f.Width, kind); ok {
			ids = append(ids, def.ID)
		}
	}
	if len(ids) == 0 {
		return f.String()
	}
	return fmt.Sprintf("%s  %s", f.String(), strings.Join(ids, ", "))
}

func runDecode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cat, err := session.LoadCatalog(cmd.Context(), cfg.Catalog)
	if err != nil {
		return err
	}

	var events []capture.Event
	switch {
	case decodeFile != "":
		events, err = capture.ReadFile(decodeFile)
		if err != nil {
			return err
		}
	case len(args) == 1:
		raw, err := sysex.ParseHex(args[0])
		if err != nil {
			return err
		}
		for _, part := range splitMessages(raw) {
			m, ok := sysex.Parse(part)
			if !ok {
				return fmt.Errorf("not an SY-1000 DT1 message: % X", part)
			}
			events = append(events, capture.Event{Message: m})
		}
	default:
		return fmt.Errorf("give a hex message or --file")
	}

	for _, ev := range events {
		fmt.Printf("%-3s %s\n", ev.Direction, describe(cat, ev.Message))
	}
	return nil
}

// splitMessages accepts a single unframed message or any number of framed ones
func splitMessages(raw []byte) [][]byte {
	if len(raw) > 0 && raw[0] == sysex.SysExStart {
		return sysex.Split(raw)
	}
	return [][]byte{raw}
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	cat, err := session.LoadCatalog(ctx, cfg.Catalog)
	if err != nil {
		return err
	}

	if exportDB != "" {
		db, err := sql.Open("sqlite", exportDB)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = db.Close() }()
		if err := cat.SaveSQL(ctx, db); err != nil {
			return err
		}
		fmt.Printf("Wrote %d parameters to %s\n", cat.Len(), exportDB)
		return nil
	}

	if exportYAML {
		return cat.WriteYAML(os.Stdout)
	}

	for _, d := range cat.All() {
		lo, hi := d.HostRange()
		fmt.Printf("%-24s %-12s %d  %-12s %6d..%d\n", d.ID, d.AddressString(), d.Width, d.Kind, lo, hi)
	}
	return nil
}

func runPorts(cmd *cobra.Command, args []string) error {
	ins, outs := midiio.PortNames()
	fmt.Println("MIDI inputs:")
	for i, name := range ins {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("MIDI outputs:")
	for i, name := range outs {
		fmt.Printf("  %d: %s\n", i, name)
	}
	return nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	events, err := capture.ReadFile(args[0])
	if err != nil {
		return err
	}

	before := s.Store.Snapshot()
	applied := s.Replay(events)
	fmt.Printf("Applied %d of %d messages from %s\n", applied, len(events), args[0])

	for _, p := range s.Store.Parameters() {
		if before.Parameters[p.ID] != p.Value {
			fmt.Printf("  %-24s %d -> %d\n", p.ID, before.Parameters[p.ID], p.Value)
		}
	}

	if saveState != "" {
		return s.Store.SaveStateFile(saveState)
	}
	return s.Save()
}

func runTUI(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	stopMIDI := runMIDI(ctx, s)
	err = tui.Run(s.Store, s.Controller)
	stopMIDI()
	return saveOnExit(s, err)
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	port, err := strconv.Atoi(s.Config.API.Port)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", s.Config.API.Port, err)
	}

	stopMIDI := runMIDI(ctx, s)
	defer stopMIDI()

	fmt.Fprintf(os.Stderr, "Swagger docs available at http://localhost:%d/swagger/index.html\n", port)
	return saveOnExit(s, api.New(s.Store, s.Controller, s.Log).StartServer(port))
}

func runMCP(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	stopMIDI := runMIDI(ctx, s)
	err = mcpserver.Serve(s.Store, s.Controller, s.Log)
	stopMIDI()
	return saveOnExit(s, err)
}
