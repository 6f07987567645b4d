// Command sweep samples parameter sets, simulates each one over a shared
// price history and writes ranked reports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"momentum-lab/internal/config"
	"momentum-lab/internal/domain"
	"momentum-lab/internal/loader"
	"momentum-lab/internal/observability"
	"momentum-lab/internal/reporting"
	"momentum-lab/internal/storage"
	chstore "momentum-lab/internal/storage/clickhouse"
	"momentum-lab/internal/storage/migrations"
	pgstore "momentum-lab/internal/storage/postgres"
	"momentum-lab/internal/sweep"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Sweep config file (YAML)")
	pricesPath := flag.String("prices", "", "Price table CSV (overrides config)")
	lotsPath := flag.String("lots", "", "Lot size CSV (overrides config)")
	fromStore := flag.Bool("from-store", false, "Load prices from ClickHouse and lot sizes from PostgreSQL instead of CSV")
	samples := flag.Int("samples", 0, "Number of parameter sets (overrides config)")
	seed := flag.Int64("seed", 0, "Sampling seed (overrides config)")
	workers := flag.Int("workers", -1, "Parallel simulators, 0 = one per CPU (overrides config)")
	outputDir := flag.String("output-dir", "", "Report directory (overrides config)")
	sweepID := flag.String("sweep-id", "", "Sweep identifier (default: random UUID)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg, *pricesPath, *lotsPath, *samples, *seed, *workers, *outputDir)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat).With().Str("cmd", "sweep").Logger()

	rankBy, err := reporting.ParseMetric(cfg.RankBy)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid rank_by")
	}
	if *sweepID == "" {
		*sweepID = uuid.NewString()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	// Metrics
	registry := prometheus.NewRegistry()
	m := observability.NewMetrics("", registry)
	if cfg.MetricsAddr != "" {
		srv := startHTTPServer(cfg.MetricsAddr, registry, logger)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Stores
	stores, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open stores")
	}
	defer closeStores()

	// Inputs
	universe, lots, err := loadInputs(ctx, cfg, stores, *fromStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("load inputs")
	}
	logger.Info().
		Int("symbols", universe.NumSymbols()).
		Int("ticks", universe.Len()).
		Msg("universe loaded")

	configs, err := sweep.Generate(cfg.Rules, cfg.Samples, cfg.Seed)
	if err != nil {
		logger.Fatal().Err(err).Msg("generate parameter sets")
	}
	configs = sweep.Unique(configs)

	collector := &sweep.Collector{}
	sink := sweep.MultiSink{collector}
	if stores.results != nil {
		sink = append(sink, sweep.StoreSink{Results: stores.results, Curves: stores.curves})
	}

	runner := sweep.NewRunner(sweep.RunnerOptions{
		Universe: universe,
		LotSizes: lots,
		Workers:  cfg.Workers,
		Logger:   &logger,
		Metrics:  m,
		Sink:     sink,
	})

	results, err := runner.Run(ctx, *sweepID, configs)
	if err != nil {
		logger.Fatal().Err(err).Msg("sweep failed")
	}

	invalid := 0
	for _, r := range results {
		if r.Err != nil {
			invalid++
		}
	}

	dir := filepath.Join(cfg.OutputDir, *sweepID)
	if err := writeReports(dir, *sweepID, cfg, configs, collector.Runs(), rankBy); err != nil {
		logger.Fatal().Err(err).Msg("write reports")
	}

	logger.Info().
		Str("sweep_id", *sweepID).
		Int("runs", len(results)-invalid).
		Int("invalid", invalid).
		Str("output", dir).
		Msg("sweep complete")
}

func applyOverrides(cfg *config.Config, prices, lots string, samples int, seed int64, workers int, outputDir string) {
	if prices != "" {
		cfg.PricesPath = prices
	}
	if lots != "" {
		cfg.LotsPath = lots
	}
	if samples > 0 {
		cfg.Samples = samples
	}
	if seed != 0 {
		cfg.Seed = seed
	}
	if workers >= 0 {
		cfg.Workers = workers
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
}

// stores holds the optional database-backed stores. Nil fields are disabled.
type stores struct {
	prices  storage.PriceSeriesStore
	curves  storage.EquityCurveStore
	lots    storage.LotSizeStore
	results storage.RunResultStore
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, func(), error) {
	s := &stores{}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, closeAll, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("postgres migrations: %w", err)
		}
		s.results = pgstore.NewRunResultStore(pool)
		s.lots = pgstore.NewLotSizeStore(pool)
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })
		s.prices = chstore.NewPriceSeriesStore(conn)
		s.curves = chstore.NewEquityCurveStore(conn)
	}

	return s, closeAll, nil
}

func loadInputs(ctx context.Context, cfg *config.Config, s *stores, fromStore bool) (*domain.Universe, domain.LotSizes, error) {
	if !fromStore {
		u, err := loader.LoadUniverseFile(cfg.PricesPath)
		if err != nil {
			return nil, nil, err
		}
		lots, err := loader.LoadLotSizesFile(cfg.LotsPath)
		if err != nil {
			return nil, nil, err
		}
		return u, lots, nil
	}

	if s.prices == nil || s.lots == nil {
		return nil, nil, errors.New("--from-store requires postgres_dsn and clickhouse_dsn")
	}
	u, err := storage.LoadUniverse(ctx, s.prices)
	if err != nil {
		return nil, nil, fmt.Errorf("load universe: %w", err)
	}
	lots, err := s.lots.GetAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load lot sizes: %w", err)
	}
	return u, lots, nil
}

func writeReports(dir, sweepID string, cfg *config.Config, configs []domain.SimulationConfig, runs []*domain.RunResult, by reporting.Metric) error {
	if err := os.MkdirAll(filepath.Join(dir, "equity"), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	report := reporting.Build(time.Now().UTC(), sweepID, runs, by, cfg.Top)
	if err := writeFile(filepath.Join(dir, "report.md"), []byte(reporting.RenderMarkdown(report))); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, "report.csv"), []byte(reporting.RenderCSV(report.Rows))); err != nil {
		return err
	}

	results, err := reporting.RenderJSON(sweepID, runs, by)
	if err != nil {
		return fmt.Errorf("render json: %w", err)
	}
	if err := writeFile(filepath.Join(dir, "results.json"), results); err != nil {
		return err
	}

	args, err := reporting.RenderArgsYAML(sweepID, cfg.Seed, configs)
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, "args.yaml"), args); err != nil {
		return err
	}

	// Equity curves for the reported rows only
	byID := make(map[string]*domain.RunResult, len(runs))
	for _, r := range runs {
		byID[r.ConfigID] = r
	}
	for _, row := range report.Rows {
		curve := reporting.RenderEquityCSV(byID[row.ConfigID].History)
		if err := writeFile(filepath.Join(dir, "equity", row.ConfigID+".csv"), []byte(curve)); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// startHTTPServer serves /health and /metrics in the background.
func startHTTPServer(addr string, g prometheus.Gatherer, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler(g))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()
	return srv
}
