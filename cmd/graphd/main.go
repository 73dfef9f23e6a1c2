// Command graphd serves the graph catalog over Connect.
//
//	graphd -config graphd.json
//	graphd -manifest langgraph.json -addr :8000
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/viant/afs"

	"github.com/tailored-agentic-units/stategraph/manifest"
	"github.com/tailored-agentic-units/stategraph/observability"
	"github.com/tailored-agentic-units/stategraph/server"
)

func main() {
	var (
		configFile   = flag.String("config", "", "Path to server config JSON file")
		manifestPath = flag.String("manifest", "", "Path or URL of the graph manifest (overrides config)")
		addr         = flag.String("addr", "", "Listen address (overrides config)")
		envFile      = flag.String("env", ".env", "Dotenv file loaded before anything else")
		trace        = flag.Bool("trace", false, "Write OpenTelemetry spans to stderr")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load %s: %v", *envFile, err)
	}

	cfg := server.DefaultConfig()
	if *configFile != "" {
		loaded, err := server.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}
	if *manifestPath != "" {
		cfg.Manifest = *manifestPath
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *trace {
		shutdown, err := observability.InitTracing(ctx, "graphd", os.Stderr)
		if err != nil {
			log.Fatalf("Failed to initialize tracing: %v", err)
		}
		defer shutdown(context.Background())
		cfg.Graph.Observer = cfg.Graph.Observer + ",trace"
	}

	var opts []server.Option
	m, err := loadManifest(ctx, cfg.Manifest, *manifestPath != "")
	if err != nil {
		log.Fatalf("Failed to load manifest: %v", err)
	}
	if m != nil {
		opts = append(opts, server.WithManifest(m))
		slog.Info("manifest loaded", "url", m.URL, "graphs", m.Names())
	} else {
		slog.Info("no manifest, serving every catalog graph")
	}

	svc, err := server.New(&cfg, opts...)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer svc.Close()

	if err := svc.Serve(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// loadManifest loads the manifest and applies its env entry. A missing
// manifest is only an error when it was asked for explicitly.
func loadManifest(ctx context.Context, location string, required bool) (*manifest.Manifest, error) {
	if location == "" {
		return nil, nil
	}

	service := afs.New()
	exists, err := service.Exists(ctx, location)
	if err != nil && required {
		return nil, err
	}
	if !exists {
		if required {
			return nil, fmt.Errorf("%s does not exist", location)
		}
		return nil, nil
	}

	m, err := manifest.Load(ctx, service, location)
	if err != nil {
		return nil, err
	}

	vars, err := m.LoadEnv(ctx, service)
	if err != nil {
		return nil, err
	}
	if err := manifest.ApplyEnv(vars); err != nil {
		return nil, fmt.Errorf("failed to apply env: %w", err)
	}
	return m, nil
}
