// Package api provides the REST API server for sy1000sync
package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/james-see/sy1000sync/pkg/bridge"
	"github.com/james-see/sy1000sync/pkg/catalog"
	"github.com/james-see/sy1000sync/pkg/host"
)

// @title SY-1000 Sync API
// @version 1.0
// @description API for inspecting and editing SY-1000 parameters over SysEx
// @host localhost:8080
// @BasePath /api/v1

// Server exposes a parameter store and its sync controller over HTTP
type Server struct {
	store *host.Store
	ctl   *bridge.Controller
	log   *slog.Logger
}

// New creates a server. A nil logger discards diagnostics.
func New(store *host.Store, ctl *bridge.Controller, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{store: store, ctl: ctl, log: log}
}

// Router builds the gin engine with all routes
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/parameters", s.listParameters)
		v1.GET("/parameters/:id", s.getParameter)
		v1.PUT("/parameters/:id", s.setParameter)
		v1.POST("/parameters/:id/push", s.pushParameter)
		v1.GET("/registers", s.listRegisters)
		v1.GET("/stats", s.stats)
		v1.POST("/sysex/encode", encodeSysEx)
		v1.POST("/sysex/decode", s.decodeSysEx)
		v1.POST("/sysex/inbound", s.inboundSysEx)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// StartServer starts the API server on the specified port
func (s *Server) StartServer(port int) error {
	s.log.Info("starting API server", "port", port)
	return s.Router().Run(fmt.Sprintf(":%d", port))
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.Debug("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status())
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "sy1000sync",
	})
}

// ParameterJSON is the wire form of a parameter
type ParameterJSON struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Width   int      `json:"width"`
	Kind    string   `json:"kind"`
	Min     int      `json:"min"`
	Max     int      `json:"max"`
	Value   int      `json:"value"`
	Choices []string `json:"choices,omitempty"`
	Choice  string   `json:"choice,omitempty"`
}

func toJSON(p host.Parameter) ParameterJSON {
	lo, hi := p.HostRange()
	out := ParameterJSON{
		ID:      p.ID,
		Name:    p.Name,
		Address: p.AddressString(),
		Width:   p.Width,
		Kind:    p.Kind.String(),
		Min:     lo,
		Max:     hi,
		Value:   p.Value,
		Choices: p.Choices,
	}
	if p.HasChoices() && p.Value >= 0 && p.Value < len(p.Choices) {
		out.Choice = p.Choices[p.Value]
	}
	return out
}

// listParameters godoc
// @Summary List parameters
// @Description Returns all parameters with their current values
// @Tags parameters
// @Produce json
// @Param kind query string false "Filter by kind (single, dual_time, dual_bpm, register, register_bit)"
// @Success 200 {array} ParameterJSON
// @Failure 400 {object} map[string]string
// @Router /parameters [get]
func (s *Server) listParameters(c *gin.Context) {
	var filter *catalog.Kind
	if k := c.Query("kind"); k != "" {
		kind, err := catalog.ParseKind(k)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter = &kind
	}

	out := make([]ParameterJSON, 0, s.store.Catalog().Len())
	for _, p := range s.store.Parameters() {
		if filter != nil && p.Kind != *filter {
			continue
		}
		out = append(out, toJSON(p))
	}
	c.JSON(http.StatusOK, out)
}

// getParameter godoc
// @Summary Get a parameter
// @Tags parameters
// @Produce json
// @Param id path string true "Parameter id"
// @Success 200 {object} ParameterJSON
// @Failure 404 {object} map[string]string
// @Router /parameters/{id} [get]
func (s *Server) getParameter(c *gin.Context) {
	p, ok := s.store.Parameter(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown parameter"})
		return
	}
	c.JSON(http.StatusOK, toJSON(p))
}

// SetRequest is the body of a parameter update
type SetRequest struct {
	Value *int `json:"value" binding:"required"`
}

// setParameter godoc
// @Summary Set a parameter
// @Description Sets the host value; the change is sent to the device like a user edit
// @Tags parameters
// @Accept json
// @Produce json
// @Param id path string true "Parameter id"
// @Param body body SetRequest true "New value"
// @Success 200 {object} ParameterJSON
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /parameters/{id} [put]
func (s *Server) setParameter(c *gin.Context) {
	var req SetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if err := s.store.Set(id, *req.Value); err != nil {
		if errors.Is(err, host.ErrUnknownParameter) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	p, _ := s.store.Parameter(id)
	c.JSON(http.StatusOK, toJSON(p))
}

// pushParameter godoc
// @Summary Push a parameter
// @Description Sends the current value to the device, bypassing echo suppression
// @Tags parameters
// @Produce json
// @Param id path string true "Parameter id"
// @Success 200 {object} map[string]bool
// @Failure 404 {object} map[string]string
// @Router /parameters/{id}/push [post]
func (s *Server) pushParameter(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.store.Parameter(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown parameter"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": s.ctl.Push(id)})
}

// RegisterJSON is the wire form of a switch register
type RegisterJSON struct {
	Address string `json:"address"`
	Bits    int    `json:"bits"`
	Value   uint32 `json:"value"`
	Hex     string `json:"hex"`
}

// listRegisters godoc
// @Summary List switch registers
// @Tags registers
// @Produce json
// @Success 200 {array} RegisterJSON
// @Router /registers [get]
func (s *Server) listRegisters(c *gin.Context) {
	regs := s.ctl.Registers().All()
	out := make([]RegisterJSON, 0, len(regs))
	for _, r := range regs {
		v := r.Load()
		out = append(out, RegisterJSON{
			Address: r.Address.String(),
			Bits:    r.Bits,
			Value:   v,
			Hex:     fmt.Sprintf("%08X", v),
		})
	}
	c.JSON(http.StatusOK, out)
}

// StatsJSON is the wire form of the controller counters
type StatsJSON struct {
	Inbound     uint64  `json:"inbound"`
	Ignored     uint64  `json:"ignored"`
	Outbound    uint64  `json:"outbound"`
	Suppressed  uint64  `json:"suppressed"`
	Overwritten uint64  `json:"overwritten"`
	LastIn      string  `json:"last_in,omitempty"`
	LastOut     string  `json:"last_out,omitempty"`
	Tempo       float64 `json:"tempo,omitempty"`
}

// stats godoc
// @Summary Controller statistics
// @Tags info
// @Produce json
// @Success 200 {object} StatsJSON
// @Router /stats [get]
func (s *Server) stats(c *gin.Context) {
	st := s.ctl.Stats()
	out := StatsJSON{
		Inbound:     st.Inbound,
		Ignored:     st.Ignored,
		Outbound:    st.Outbound,
		Suppressed:  st.Suppressed,
		Overwritten: st.Overwritten,
	}
	if !st.LastIn.IsZero() {
		out.LastIn = st.LastIn.String()
	}
	if !st.LastOut.IsZero() {
		out.LastOut = st.LastOut.String()
	}
	if st.Tempo > 0 {
		out.Tempo = st.Tempo
	}
	c.JSON(http.StatusOK, out)
}
