// Package main is the entry point for the sy1000sync CLI
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	_ "modernc.org/sqlite"

	"github.com/james-see/sy1000sync/pkg/config"
	"github.com/james-see/sy1000sync/pkg/session"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configFile  string
	logLevel    string
	logFormat   string
	inPort      string
	outPort     string
	statePath   string
	recordPath  string
	followClock bool
	bpm         float64
	noEcho      bool
	catalogPath string
	catalogDB   string
	withMIDI    bool
	serverPort  int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sy1000sync",
	Short: "Keep host parameters and a Roland SY-1000 in sync over SysEx",
	Long: `sy1000sync mirrors the parameters of a Roland SY-1000 guitar synthesizer.

Parameter changes on the device arrive as SysEx DT1 messages and update the
host values; host edits are encoded and sent back to the device.

Examples:
  sy1000sync run --in "SY-1000" --out "SY-1000" --state session.yaml
  sy1000sync encode 10000312 8 0
  sy1000sync decode "F0 41 00 00 00 00 69 12 7F 00 00 01 01 7F F7"
  sy1000sync catalog --db params.db
  sy1000sync tui --midi
  sy1000sync serve --port 8080`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sync with the device until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP tools on stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func init() {
	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "Configuration file (YAML)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text, json")
	pf.StringVar(&catalogPath, "catalog", "", "Parameter catalog file (YAML)")
	pf.StringVar(&catalogDB, "catalog-db", "", "Parameter catalog database (SQLite)")
	pf.StringVar(&statePath, "state", "", "Session state file, restored on start and saved on exit")

	// session commands
	for _, cmd := range []*cobra.Command{runCmd, tuiCmd, serveCmd, mcpCmd} {
		f := cmd.Flags()
		f.StringVar(&inPort, "in", "", "MIDI input port name fragment")
		f.StringVar(&outPort, "out", "", "MIDI output port name fragment")
		f.StringVar(&recordPath, "record", "", "Record device traffic to a MIDI file")
		f.BoolVar(&followClock, "follow-clock", false, "Follow incoming MIDI clock as tempo source")
		f.Float64Var(&bpm, "bpm", 0, "Send this tempo as master BPM on start")
		f.BoolVar(&noEcho, "no-echo-suppression", false, "Send host changes even when they repeat the last device message")
	}
	for _, cmd := range []*cobra.Command{tuiCmd, serveCmd, mcpCmd} {
		cmd.Flags().BoolVar(&withMIDI, "midi", false, "Connect to the device while running")
	}
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Server port")

	// Add commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
}

// loadConfig reads the config file and applies flags that were set
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return cfg, err
	}

	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if changed("catalog") {
		cfg.Catalog = config.Catalog{Path: catalogPath}
	}
	if changed("catalog-db") {
		cfg.Catalog = config.Catalog{SQLite: catalogDB}
	}
	if changed("state") {
		cfg.State = statePath
	}
	if changed("in") {
		cfg.MIDI.In = inPort
	}
	if changed("out") {
		cfg.MIDI.Out = outPort
	}
	if changed("record") {
		cfg.Sync.Record = recordPath
	}
	if changed("follow-clock") {
		cfg.Sync.FollowClock = followClock
	}
	if changed("bpm") {
		cfg.Sync.BPM = bpm
	}
	if changed("no-echo-suppression") {
		cfg.Sync.EchoSuppression = !noEcho
	}
	if changed("port") {
		cfg.API.Port = fmt.Sprint(serverPort)
	}

	return cfg, cfg.Validate()
}

// openSession builds the session for a command. Logs go to stderr so
// stdout stays free for command output and the MCP protocol.
func openSession(cmd *cobra.Command) (*session.Session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return session.New(cmd.Context(), cfg, cfg.Logger(os.Stderr))
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runMIDI connects the session to the device in the background when
// --midi is set. The returned function stops it.
func runMIDI(ctx context.Context, s *session.Session) func() {
	if !withMIDI {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Run(ctx); err != nil {
			s.Log.Error("MIDI link stopped", "err", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func saveOnExit(s *session.Session, err error) error {
	if serr := s.Save(); serr != nil && err == nil {
		return serr
	}
	return err
}

func runSync(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return saveOnExit(s, s.Run(ctx))
}
