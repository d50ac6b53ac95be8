// Command wordbench runs an evaluation suite: every configured model plays
// every loaded puzzle, and each run's trace lands under the trace directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/odvcencio/wordbench/pkg/config"
	"github.com/odvcencio/wordbench/pkg/events"
	"github.com/odvcencio/wordbench/pkg/logging"
	"github.com/odvcencio/wordbench/pkg/model"
	"github.com/odvcencio/wordbench/pkg/puzzle"
	"github.com/odvcencio/wordbench/pkg/runner"
	"github.com/odvcencio/wordbench/pkg/trace"
)

func main() {
	var (
		configPath  = flag.String("config", "wordbench.yaml", "suite configuration file")
		puzzleDir   = flag.String("puzzles", "puzzles", "directory of puzzle JSON files")
		modelsFlag  = flag.String("models", "", "comma-separated model ids (overrides config)")
		metricsAddr = flag.String("metrics-addr", "", "serve prometheus metrics on this address (e.g. :9090)")
		verbose     = flag.Bool("verbose", false, "print every step event")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(2)
	}
	if *modelsFlag != "" {
		cfg.Models = splitModels(*modelsFlag)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
	}

	puzzles, err := puzzle.LoadDir(*puzzleDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading puzzles: %v\n", err)
		os.Exit(2)
	}

	apiKey := os.Getenv(cfg.Provider.APIKeyEnv)
	if apiKey == "" {
		fmt.Fprintf(os.Stderr, "Error: set %s to your gateway API key\n", cfg.Provider.APIKeyEnv)
		os.Exit(2)
	}

	client := model.NewClientWithOptions(apiKey, cfg.Provider.BaseURL, model.ClientOptions{
		NetworkLogDir: cfg.Provider.NetworkLogDir,
	})
	defer client.Close()

	// Warm the catalog so per-call cost accounting has pricing; runs work
	// without it, just with unknown cost.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if _, err := client.FetchCatalog(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not fetch model catalog; costs will be unknown: %v\n", err)
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", runner.MetricsHandler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "Warning: metrics server stopped: %v\n", err)
			}
		}()
	}

	hub := events.NewHub()
	defer hub.Close()

	var sink events.Sink = hub
	if cfg.Events.NATSURL != "" {
		natsSink, err := events.NewNATSSink(cfg.Events.NATSURL, cfg.Events.NATSSubject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: NATS event mirror disabled: %v\n", err)
		} else {
			defer natsSink.Close()
			sink = events.Multi(hub, natsSink)
		}
	}

	suite := runner.NewSuite(cfg, client, newLogger(cfg), sink)

	var wg sync.WaitGroup
	ch, unsubscribe := hub.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		printEvents(ch, *verbose)
	}()

	results, err := suite.Run(ctx, puzzles)
	unsubscribe()
	wg.Wait()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printSummaryTable(results)
}

func newLogger(cfg *config.Config) *logging.Logger {
	logger, err := logging.NewLogger(cfg.Trace.Dir, cfg.Suite)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: harness logging disabled: %v\n", err)
		return nil
	}
	return logger
}

func splitModels(s string) []string {
	var models []string
	for _, m := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(m); trimmed != "" {
			models = append(models, trimmed)
		}
	}
	return models
}

func printEvents(ch <-chan events.Event, verbose bool) {
	for event := range ch {
		switch event.Type {
		case events.TypeRunStart:
			fmt.Printf("[%s] %s: starting %s\n", event.Type, event.Model, event.PuzzleID)
		case events.TypeRunComplete:
			fmt.Printf("[%s] %s: %s -> %s (%d tokens)\n", event.Type, event.Model, event.PuzzleID, event.Status, event.Tokens)
		case events.TypeWorkerIdle:
			fmt.Printf("[%s] %s: done\n", event.Type, event.Model)
		case events.TypeError:
			fmt.Printf("[%s] %s: %s\n", event.Type, event.Model, event.Error)
		default:
			if verbose {
				fmt.Printf("[%s] %s %s step=%d %s\n", event.Type, event.Model, event.PuzzleID, event.Step, event.Status)
			}
		}
	}
}

// printSummaryTable prints per-model aggregates over all runs.
func printSummaryTable(results []runner.RunResult) {
	type aggregate struct {
		runs    int
		solved  int
		errored int
		tokens  int
		cost    float64
	}
	byModel := make(map[string]*aggregate)
	for _, r := range results {
		agg := byModel[r.Spec.Model]
		if agg == nil {
			agg = &aggregate{}
			byModel[r.Spec.Model] = agg
		}
		agg.runs++
		if r.Summary.Status.Succeeded() {
			agg.solved++
		}
		if r.Summary.Status == trace.RunError {
			agg.errored++
		}
		agg.tokens += r.Summary.Usage.TotalTokens
		if r.Summary.Cost != nil {
			agg.cost += *r.Summary.Cost
		}
	}

	models := make([]string, 0, len(byModel))
	for m := range byModel {
		models = append(models, m)
	}
	sort.Strings(models)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tRUNS\tSOLVED\tERRORS\tTOKENS\tCOST")
	for _, m := range models {
		agg := byModel[m]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t$%.4f\n", m, agg.runs, agg.solved, agg.errored, agg.tokens, agg.cost)
	}
	w.Flush()
}
