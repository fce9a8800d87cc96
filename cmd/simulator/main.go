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
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/production-optimizer/core"
	"github.com/signalsfoundry/production-optimizer/internal/logging"
	"github.com/signalsfoundry/production-optimizer/internal/observability"
)

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
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, log logging.Logger) error {
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	scenarioPath := fs.String("scenario", "", "Path to a YAML scenario file (required)")
	caseName := fs.String("case", "", "Case to simulate; empty selects the first")
	cycles := fs.Int("cycles", -1, "Production cycles; negative uses the scenario's max_cycles")
	decisions := fs.String("decisions", "", `Decision vector such as "T,F,T,F"; empty uses the flags in the scenario file`)
	metricsAddr := fs.String("metrics-addr", "", "HTTP address for Prometheus /metrics; empty disables")
	hold := fs.Bool("hold", false, "Keep serving /metrics after the run until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *scenarioPath == "" {
		return errors.New("-scenario is required")
	}

	sc, err := core.LoadScenarioFile(*scenarioPath)
	if err != nil {
		return err
	}
	p, ok := sc.Case(*caseName)
	if !ok {
		return fmt.Errorf("case %q not found in %s", *caseName, *scenarioPath)
	}
	if *decisions != "" {
		v, err := core.ParseDecisionVector(*decisions)
		if err != nil {
			return err
		}
		if p, err = p.Apply(v); err != nil {
			return err
		}
	}
	maxCycles := *cycles
	if maxCycles < 0 {
		maxCycles = sc.MaxCycles
	}

	collector, err := observability.NewProductionCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if *metricsAddr != "" {
		srv := serveMetrics(*metricsAddr, collector.Handler(), log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	se, err := core.NewSimulationEngine(p)
	if err != nil {
		return err
	}
	semiIDs := make([]string, len(p.SemiProducts))
	for i, s := range p.SemiProducts {
		semiIDs[i] = s.ID
	}
	se.RegisterTickListener(func(r core.CycleReport) {
		collector.ObserveCycle(r.Final.Assembled, r.Final.Qualified, r.Final.Returned, r.Final.Reworked, r.Revenue, r.Cost)
		printCycle(stdout, r, semiIDs)
	})

	ctx, log = logging.WithRunLogger(ctx, log)
	log.Info(ctx, "simulation started",
		logging.String("pipeline", p.Name),
		logging.String("decisions", p.Decisions().String()),
		logging.Int("max_cycles", maxCycles),
	)

	fmt.Fprintf(stdout, "pipeline %s, decisions %s\n", p.Name, p.Decisions())
	res, err := se.Run(maxCycles)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "result: revenue=%g cost=%g profit=%g cycles=%d starved=%v\n",
		res.Revenue, res.Cost, res.Profit, res.Cycles, res.Starved)

	log.Info(ctx, "simulation finished",
		logging.Float("profit", res.Profit),
		logging.Int("cycles", res.Cycles),
		logging.Bool("starved", res.Starved),
	)

	if *hold && *metricsAddr != "" {
		<-ctx.Done()
	}
	return nil
}

func printCycle(w io.Writer, r core.CycleReport, semiIDs []string) {
	var b strings.Builder
	fmt.Fprintf(&b, "cycle %d: assembled=%d sold=%d returned=%d reworked=%d revenue=%g cost=%g",
		r.Cycle+1, r.Final.Assembled, r.Final.Qualified, r.Final.Returned, r.Final.Reworked, r.Revenue, r.Cost)
	for i, lot := range r.Lots {
		fmt.Fprintf(&b, " %s=%d/%d", semiIDs[i], lot.ActualQualified, lot.Qualified)
	}
	b.WriteString(" |")
	ids := make([]string, 0, len(r.Inventory))
	for id := range r.Inventory {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(&b, " %s=%d", id, r.Inventory[id])
	}
	fmt.Fprintln(w, b.String())
}

func serveMetrics(addr string, h http.Handler, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()
	return srv
}
