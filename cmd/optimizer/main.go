package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/production-optimizer/core"
	"github.com/signalsfoundry/production-optimizer/internal/export"
	"github.com/signalsfoundry/production-optimizer/internal/logging"
	"github.com/signalsfoundry/production-optimizer/internal/observability"
	"github.com/signalsfoundry/production-optimizer/kb"
	"github.com/signalsfoundry/production-optimizer/model"
)

// allCases selects every case of the scenario file.
const allCases = "all"

type config struct {
	scenario       string
	caseName       string
	cycles         int
	workers        int
	decisions      string
	estimateSample int
	seed           uint64
	csvPath        string
	sqlitePath     string
	metricsAddr    string
	hold           bool
	top            int
}

func parseFlags(args []string, errOut io.Writer) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("optimizer", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&cfg.scenario, "scenario", "", "Path to a YAML scenario file (required)")
	fs.StringVar(&cfg.caseName, "case", "", `Case to optimize; empty selects the first, "all" runs every case`)
	fs.IntVar(&cfg.cycles, "cycles", -1, "Production cycles per simulation; negative uses the scenario's max_cycles")
	fs.IntVar(&cfg.workers, "workers", 0, "Concurrent simulations; 0 uses GOMAXPROCS")
	fs.StringVar(&cfg.decisions, "decisions", "", "Optional file of decision vectors to evaluate instead of the full space")
	fs.IntVar(&cfg.estimateSample, "estimate-sample", 0, "Replace defect rates by a sampled estimate of this many units; 0 disables")
	fs.Uint64Var(&cfg.seed, "seed", 1, "Seed for the defect-rate sampler")
	fs.StringVar(&cfg.csvPath, "csv", "", "Write the result table to this CSV file")
	fs.StringVar(&cfg.sqlitePath, "sqlite", "", "Append the result table to this SQLite database")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics; empty disables")
	fs.BoolVar(&cfg.hold, "hold", false, "Keep serving /metrics after the search until interrupted")
	fs.IntVar(&cfg.top, "top", 5, "Number of best rows to print")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if cfg.scenario == "" {
		return config{}, errors.New("-scenario is required")
	}
	if cfg.estimateSample < 0 {
		return config{}, fmt.Errorf("-estimate-sample must be >= 0, got %d", cfg.estimateSample)
	}
	return cfg, nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}
	log := logging.NewFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, log); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Error(ctx, "optimizer failed", logging.Err(err))
		if errors.Is(err, model.ErrInvalidConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, log logging.Logger) error {
	cfg, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv("OPTIMIZER", "production-optimizer"), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	reg := prometheus.NewRegistry()
	collector, err := observability.NewSearchCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if cfg.metricsAddr != "" {
		srv := serveMetrics(cfg.metricsAddr, collector.Handler(), log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sc, err := core.LoadScenarioFile(cfg.scenario)
	if err != nil {
		return err
	}
	catalog := kb.NewCatalog()
	if err := catalog.AddScenario(sc); err != nil {
		return err
	}
	unsubscribe := catalog.Subscribe(func(ev kb.Event) {
		if ev.Type != kb.EventReportPublished {
			return
		}
		log.Info(ctx, "best decision found",
			logging.String("pipeline", ev.Pipeline),
			logging.String("decisions", ev.Best.Decisions.String()),
			logging.Float("profit", ev.Best.Result.Profit),
		)
	})
	defer unsubscribe()

	names, err := selectCases(sc, catalog, cfg.caseName)
	if err != nil {
		return err
	}
	cycles := cfg.cycles
	if cycles < 0 {
		cycles = sc.MaxCycles
	}

	var store *export.Store
	if cfg.sqlitePath != "" {
		store, err = export.NewStore(cfg.sqlitePath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	opt := core.NewOptimizer(
		core.WithWorkers(cfg.workers),
		core.WithLogger(log),
		core.WithMetricsRecorder(collector),
	)

	for _, name := range names {
		caseCtx, _ := logging.EnsureRunID(ctx)
		rep, err := optimizeCase(caseCtx, cfg, catalog, opt, name, cycles, log)
		if err != nil {
			return fmt.Errorf("case %q: %w", name, err)
		}
		if err := catalog.PublishReport(rep); err != nil {
			return err
		}
		printReport(stdout, rep, cfg.top)

		if cfg.csvPath != "" {
			path := csvPathFor(cfg.csvPath, name, len(names) > 1)
			if err := export.WriteCSVFile(path, rep); err != nil {
				return err
			}
			log.Info(caseCtx, "wrote result table", logging.String("path", path))
		}
		if store != nil {
			id, err := store.SaveReport(caseCtx, rep)
			if err != nil {
				return err
			}
			log.Info(caseCtx, "stored result table", logging.String("db", cfg.sqlitePath), logging.String("run_id", id))
		}
	}

	if len(names) > 1 {
		printLeaderboard(stdout, catalog.Leaderboard())
	}

	if cfg.hold && cfg.metricsAddr != "" {
		log.Info(ctx, "holding metrics endpoint open; interrupt to exit")
		<-ctx.Done()
	}
	return nil
}

func selectCases(sc *core.Scenario, catalog *kb.Catalog, name string) ([]string, error) {
	switch name {
	case allCases:
		names := make([]string, len(sc.Cases))
		for i, c := range sc.Cases {
			names[i] = c.Name
		}
		return names, nil
	case "":
		return []string{sc.Cases[0].Name}, nil
	default:
		if _, err := catalog.GetPipeline(name); err != nil {
			return nil, fmt.Errorf("%w (available: %s)", err, strings.Join(catalog.ListPipelines(), ", "))
		}
		return []string{name}, nil
	}
}

func optimizeCase(ctx context.Context, cfg config, catalog *kb.Catalog, opt *core.Optimizer, name string, cycles int, log logging.Logger) (*core.OptimizationReport, error) {
	p, err := catalog.GetPipeline(name)
	if err != nil {
		return nil, err
	}

	if cfg.estimateSample > 0 {
		p, err = core.EstimatePipelineRates(p, core.NewSeededSamplingEstimator(cfg.seed), cfg.estimateSample)
		if err != nil {
			return nil, err
		}
		fields := []logging.Field{logging.String("pipeline", name), logging.Int("sample", cfg.estimateSample)}
		for _, c := range p.Components {
			fields = append(fields, logging.Float(c.ID, c.DefectRate))
		}
		for _, s := range p.SemiProducts {
			fields = append(fields, logging.Float(s.ID, s.DefectRate))
		}
		fields = append(fields, logging.Float(p.Final.ID, p.Final.DefectRate))
		log.Info(ctx, "using sampled defect rates", fields...)
	}

	if cfg.decisions == "" {
		return opt.Search(ctx, p, cycles)
	}

	f, err := os.Open(cfg.decisions)
	if err != nil {
		return nil, fmt.Errorf("open decisions: %w", err)
	}
	defer f.Close()
	vectors, err := core.ParseDecisionVectors(f, p.DecisionBits())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.decisions, err)
	}
	return opt.Evaluate(ctx, p, vectors, cycles)
}

// csvPathFor suffixes the case name before the extension when several cases
// share one -csv flag.
func csvPathFor(path, caseName string, multi bool) string {
	if !multi {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + caseName + ext
}

func printReport(w io.Writer, rep *core.OptimizationReport, top int) {
	best := rep.Best()
	fmt.Fprintf(w, "pipeline %s: %d vectors, %d cycles\n", rep.Pipeline, len(rep.Results), rep.MaxCycles)
	fmt.Fprintf(w, "layout: %s\n", strings.Join(rep.Layout.Names(), ", "))
	fmt.Fprintf(w, "best: %s profit=%g revenue=%g cost=%g\n",
		best.Decisions, best.Result.Profit, best.Result.Revenue, best.Result.Cost)

	if top <= 0 {
		return
	}
	order := make([]int, len(rep.Results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rep.Results[order[a]].Result.Profit > rep.Results[order[b]].Result.Profit
	})
	if top > len(order) {
		top = len(order)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "rank\tprofit\trevenue\tcost\tcycles\tdecisions")
	for rank, i := range order[:top] {
		ev := rep.Results[i]
		fmt.Fprintf(tw, "%d\t%g\t%g\t%g\t%d\t%s\n",
			rank+1, ev.Result.Profit, ev.Result.Revenue, ev.Result.Cost, ev.Result.Cycles, ev.Decisions)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printLeaderboard(w io.Writer, board []kb.Standing) {
	fmt.Fprintln(w, "cases by best profit:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, s := range board {
		fmt.Fprintf(tw, "%s\t%g\t%s\n", s.Pipeline, s.Best.Result.Profit, s.Best.Decisions)
	}
	tw.Flush()
}

func serveMetrics(addr string, h http.Handler, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
