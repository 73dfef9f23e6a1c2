// Command graphrun runs one catalog graph and prints the result, either in
// process or against a running graphd.
//
//	graphrun -graph routing -input "how do I fix this bug"
//	graphrun -server http://localhost:2024 -graph echo -input hi
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tailored-agentic-units/stategraph/agents"
	"github.com/tailored-agentic-units/stategraph/orchestrate/config"
	"github.com/tailored-agentic-units/stategraph/runstore"
	"github.com/tailored-agentic-units/stategraph/server"
)

func main() {
	var (
		graphName  = flag.String("graph", "", "Graph to run (required unless -list)")
		input      = flag.String("input", "", "User message, or a JSON object of initial state")
		configFile = flag.String("config", "", "Path to server config JSON file (graph settings)")
		serverURL  = flag.String("server", "", "Run against a graphd at this URL instead of in process")
		list       = flag.Bool("list", false, "List available graphs and exit")
		asJSON     = flag.Bool("json", false, "Print the run record as JSON")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	if !*list && *graphName == "" {
		fmt.Fprintln(os.Stderr, "Usage: graphrun -graph <name> -input <text>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	_ = godotenv.Load()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var payload any = *input
	if strings.HasPrefix(strings.TrimSpace(*input), "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(*input), &obj); err != nil {
			log.Fatalf("Invalid JSON input: %v", err)
		}
		payload = obj
	}

	if *serverURL != "" {
		client := server.NewClient(http.DefaultClient, *serverURL)
		if *list {
			graphs, err := client.ListGraphs(ctx)
			if err != nil {
				log.Fatalf("List failed: %v", err)
			}
			for _, g := range graphs {
				fmt.Printf("%-22s %s\n", g.Name, g.Description)
			}
			return
		}
		rec, err := client.RunGraph(ctx, *graphName, payload)
		if err != nil {
			log.Fatalf("Run failed: %v", err)
		}
		printRecord(rec, *asJSON)
		return
	}

	graphCfg := config.DefaultGraphConfig("")
	if *configFile != "" {
		cfg, err := server.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		graphCfg = cfg.Graph
	}

	catalog := agents.DefaultCatalog(agents.Deps{}, graphCfg)
	if *list {
		for _, g := range catalog.List() {
			fmt.Printf("%-22s %s\n", g.Name, g.Description)
		}
		return
	}

	g, err := catalog.Get(*graphName)
	if err != nil {
		log.Fatalf("Failed to load graph: %v", err)
	}
	for _, w := range g.Warnings() {
		slog.Warn("graph warning", "warning", w.String())
	}

	raw, ok := payload.(map[string]any)
	if !ok {
		raw = map[string]any{"input": payload}
	}
	initial, err := agents.PrepareInput(raw)
	if err != nil {
		log.Fatalf("Invalid input: %v", err)
	}

	started := time.Now()
	res, err := g.Run(ctx, initial)
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}
	printRecord(runstore.FromResult(res, started), *asJSON)
}

func printRecord(rec runstore.Record, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rec); err != nil {
			log.Fatalf("Failed to encode result: %v", err)
		}
		return
	}

	fmt.Printf("Response: %s\n", lastReply(rec.State))

	fmt.Println("\nSteps:")
	for i, nodes := range rec.Trace {
		fmt.Printf("  [%d] %s\n", i, strings.Join(nodes, ", "))
	}

	if len(rec.Unreached) > 0 {
		fmt.Println("\nUnreached:")
		for _, u := range rec.Unreached {
			fmt.Printf("  %s (%s)\n", u.Node, u.Reason)
		}
	}
	if len(rec.Conflicts) > 0 {
		fmt.Println("\nConflicts:")
		for _, c := range rec.Conflicts {
			fmt.Printf("  step %d: %s written by %s\n", c.Step, c.Field, strings.Join(c.Nodes, ", "))
		}
	}

	fmt.Printf("\nRun: %s (%s)\n", rec.RunID, rec.FinishedAt.Sub(rec.StartedAt))
}

// lastReply reads the final assistant message from either typed or decoded
// state.
func lastReply(s map[string]any) string {
	data, err := json.Marshal(s[agents.FieldMessages])
	if err != nil {
		return ""
	}
	var msgs []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &msgs); err != nil {
		return ""
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "assistant" {
			return msgs[i].Content
		}
	}
	if answer, ok := s["answer"].(string); ok {
		return answer
	}
	return ""
}
