// Package main is the entry point for the sy1000sync API server.
//
// Without -midi the server edits host values offline: changes are kept in
// the session and written to the state file, nothing reaches a device.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	_ "modernc.org/sqlite"

	"github.com/james-see/sy1000sync/pkg/api"
	"github.com/james-see/sy1000sync/pkg/config"
	"github.com/james-see/sy1000sync/pkg/session"
)

func main() {
	port := flag.Int("port", 8080, "Server port")
	configFile := flag.String("config", "", "Configuration file (YAML)")
	withMIDI := flag.Bool("midi", false, "Connect to the device; without it values are edited offline")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := session.New(ctx, cfg, cfg.Logger(os.Stderr))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Session error: %v\n", err)
		os.Exit(1)
	}

	midiDone := make(chan struct{})
	if *withMIDI {
		go func() {
			defer close(midiDone)
			if err := s.Run(ctx); err != nil {
				s.Log.Error("MIDI link stopped", "err", err)
			}
		}()
	} else {
		close(midiDone)
		fmt.Println("No MIDI connection (-midi not set): editing values offline")
	}

	go func() {
		<-ctx.Done()
		<-midiDone
		if err := s.Save(); err != nil {
			s.Log.Error("failed to save state", "err", err)
		}
		os.Exit(0)
	}()

	fmt.Printf("Starting sy1000sync API server on port %d...\n", *port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", *port)

	if err := api.New(s.Store, s.Controller, s.Log).StartServer(*port); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
