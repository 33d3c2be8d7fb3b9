package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/james-see/sy1000sync/pkg/catalog"
	"github.com/james-see/sy1000sync/pkg/sysex"
)

// EncodeRequest describes a message to build
type EncodeRequest struct {
	Address string  `json:"address" binding:"required"`
	Width   int     `json:"width" binding:"required"`
	Value   *uint32 `json:"value" binding:"required"`
}

// MessageJSON is a decoded or encoded DT1 message
type MessageJSON struct {
	Hex        string   `json:"hex"`
	Address    string   `json:"address"`
	Width      int      `json:"width"`
	Value      uint32   `json:"value"`
	Checksum   byte     `json:"checksum"`
	Parameters []string `json:"parameters,omitempty"`
}

// HexRequest carries a message as hex text
type HexRequest struct {
	Hex string `json:"hex" binding:"required"`
}

func messageJSON(m sysex.Message) MessageJSON {
	f := m.Frame()
	return MessageJSON{
		Hex:      m.String(),
		Address:  f.Address.String(),
		Width:    f.Width,
		Value:    f.Value,
		Checksum: m.Checksum(),
	}
}

// encodeSysEx godoc
// @Summary Encode a DT1 message
// @Tags sysex
// @Accept json
// @Produce json
// @Param body body EncodeRequest true "Address, width and value"
// @Success 200 {object} MessageJSON
// @Failure 400 {object} map[string]string
// @Router /sysex/encode [post]
func encodeSysEx(c *gin.Context) {
	var req EncodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	addr, err := sysex.ParseAddress(req.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := sysex.Encode(sysex.Frame{Address: addr, Width: req.Width, Value: *req.Value})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, messageJSON(m))
}

func parseHexRequest(c *gin.Context) (sysex.Message, bool) {
	var req HexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return sysex.Message{}, false
	}
	raw, err := sysex.ParseHex(req.Hex)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return sysex.Message{}, false
	}
	m, ok := sysex.Parse(raw)
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": errNotDT1.Error()})
		return sysex.Message{}, false
	}
	return m, true
}

var errNotDT1 = errors.New("not an SY-1000 DT1 message")

// decodeSysEx godoc
// @Summary Decode a DT1 message
// @Description Decodes hex text and lists the catalog parameters at its address
// @Tags sysex
// @Accept json
// @Produce json
// @Param body body HexRequest true "Message as hex"
// @Success 200 {object} MessageJSON
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /sysex/decode [post]
func (s *Server) decodeSysEx(c *gin.Context) {
	m, ok := parseHexRequest(c)
	if !ok {
		return
	}
	out := messageJSON(m)
	f := m.Frame()
	for _, kind := range []catalog.Kind{catalog.Single, catalog.DualTime, catalog.DualBpm, catalog.Register} {
		if def, ok := s.store.Catalog().Lookup(f.Address, f.Width, kind); ok {
			out.Parameters = append(out.Parameters, def.ID)
		}
	}
	c.JSON(http.StatusOK, out)
}

// inboundSysEx godoc
// @Summary Inject a device message
// @Description Feeds a message into the controller as if the device had sent it
// @Tags sysex
// @Accept json
// @Produce json
// @Param body body HexRequest true "Message as hex"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /sysex/inbound [post]
func (s *Server) inboundSysEx(c *gin.Context) {
	m, ok := parseHexRequest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": s.ctl.HandleInbound(m.Bytes())})
}
