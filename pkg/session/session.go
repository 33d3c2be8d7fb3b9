// Package session wires a configuration into a running sync session:
// catalog, host store, controller and, when requested, the MIDI link.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/james-see/sy1000sync/pkg/bridge"
	"github.com/james-see/sy1000sync/pkg/capture"
	"github.com/james-see/sy1000sync/pkg/catalog"
	"github.com/james-see/sy1000sync/pkg/config"
	"github.com/james-see/sy1000sync/pkg/host"
	"github.com/james-see/sy1000sync/pkg/midiio"
)

// Session is one host store synced with one device
type Session struct {
	Config     config.Config
	Log        *slog.Logger
	Catalog    *catalog.Catalog
	Store      *host.Store
	Controller *bridge.Controller
}

// LoadCatalog opens the catalog selected by cfg. The SQLite driver must
// be registered by the caller under the name "sqlite".
func LoadCatalog(ctx context.Context, cfg config.Catalog) (*catalog.Catalog, error) {
	switch {
	case cfg.SQLite != "":
		db, err := sql.Open("sqlite", cfg.SQLite)
		if err != nil {
			return nil, fmt.Errorf("failed to open catalog database: %w", err)
		}
		defer db.Close()
		return catalog.LoadSQL(ctx, db)
	case cfg.Path != "":
		return catalog.LoadFile(cfg.Path)
	}
	return catalog.Default()
}

// New builds a session and restores the saved state, if any
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*Session, error) {
	cat, err := LoadCatalog(ctx, cfg.Catalog)
	if err != nil {
		return nil, err
	}

	store := host.NewStore(cat)
	ctl := bridge.New(cat, store,
		bridge.WithLogger(log.With("component", "bridge")),
		bridge.WithEchoSuppression(cfg.Sync.EchoSuppression),
	)

	if cfg.State != "" {
		skipped, err := store.LoadStateFile(cfg.State)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Info("no saved state", "path", cfg.State)
		case err != nil:
			return nil, err
		default:
			log.Info("restored state", "path", cfg.State, "skipped", len(skipped))
		}
		ctl.LoadRegisters()
	}

	// subscribe after restoring so the restore stays local
	store.Subscribe(ctl)

	log.Info("session ready", "parameters", cat.Len())
	return &Session{
		Config:     cfg,
		Log:        log,
		Catalog:    cat,
		Store:      store,
		Controller: ctl,
	}, nil
}

// Save writes the host values to the configured state file
func (s *Session) Save() error {
	if s.Config.State == "" {
		return nil
	}
	if err := s.Store.SaveStateFile(s.Config.State); err != nil {
		return err
	}
	s.Log.Info("saved state", "path", s.Config.State)
	return nil
}

// Replay feeds the device side of a capture into the controller and
// returns how many messages were applied
func (s *Session) Replay(events []capture.Event) int {
	applied := 0
	for _, ev := range events {
		if ev.Direction != capture.FromDevice {
			continue
		}
		if s.Controller.HandleInbound(ev.Message.Bytes()) {
			applied++
		}
	}
	return applied
}

// Start sends the session start messages: sync activation, then the
// configured tempo. The controller holds a single pending message, so
// flush is called after each one.
func (s *Session) Start(flush func() error) error {
	if s.Config.Sync.Activate {
		s.Controller.Activate()
		if err := flush(); err != nil {
			return fmt.Errorf("failed to activate sync: %w", err)
		}
	}
	if s.Config.Sync.BPM > 0 {
		s.Controller.SetTempo(s.Config.Sync.BPM)
		if err := flush(); err != nil {
			return fmt.Errorf("failed to send tempo: %w", err)
		}
	}
	return nil
}

// Run connects to the MIDI ports and syncs until ctx is done
func (s *Session) Run(ctx context.Context) error {
	in, err := midiio.FindInPort(s.Config.MIDI.In)
	if err != nil {
		return err
	}
	out, closeOut, err := midiio.OpenOut(s.Config.MIDI.Out)
	if err != nil {
		return err
	}
	defer closeOut()

	opts := []midiio.LinkOption{
		midiio.WithLinkLogger(s.Log.With("component", "midi")),
		midiio.WithClockFollow(s.Config.Sync.FollowClock),
	}
	var rec *capture.Recorder
	if s.Config.Sync.Record != "" {
		rec = capture.NewRecorder()
		opts = append(opts, midiio.WithRecorder(rec))
	}

	link := midiio.NewLink(s.Controller, out, opts...)
	stop, err := link.Listen(in)
	if err != nil {
		return err
	}
	defer stop()

	s.Log.Info("syncing", "in", in.String(), "out", out.String())
	if err := s.Start(link.Flush); err != nil {
		s.Log.Warn("start messages not sent", "err", err)
	}

	err = link.Run(ctx)
	if rec != nil {
		if werr := rec.WriteFile(s.Config.Sync.Record); werr != nil {
			s.Log.Error("failed to write recording", "err", werr)
		} else {
			s.Log.Info("recording written", "path", s.Config.Sync.Record, "messages", rec.Len())
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
