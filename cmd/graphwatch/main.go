// Command graphwatch runs a server command and restarts it whenever the
// manifest or the agent definitions change.
//
//	graphwatch -- graphd -manifest langgraph.json -addr 0.0.0.0:8000
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tailored-agentic-units/stategraph/observability"
	"github.com/tailored-agentic-units/stategraph/supervisor"
)

var defaultCommand = []string{"graphd", "-addr", "0.0.0.0:8000", "-manifest", "langgraph.json"}

func main() {
	var (
		configFile = flag.String("config", "", "Path to supervisor config JSON file")
		dir        = flag.String("dir", "", "Working directory for the command and watch paths")
		watch      = flag.String("watch", "", "Comma separated paths to watch (overrides config)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	cfg := supervisor.DefaultConfig()
	if *configFile != "" {
		loaded, err := supervisor.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}
	if args := flag.Args(); len(args) > 0 {
		cfg.Command = args
	}
	if len(cfg.Command) == 0 {
		cfg.Command = defaultCommand
	}
	if *dir != "" {
		cfg.Dir = *dir
	}
	if *watch != "" {
		cfg.Watch = strings.Split(*watch, ",")
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	s, err := supervisor.New(&cfg, supervisor.WithObserver(observability.NewSlogObserver(logger)))
	if err != nil {
		log.Fatalf("Failed to create supervisor: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Run(ctx); err != nil {
		log.Fatalf("Supervisor failed: %v", err)
	}
}
