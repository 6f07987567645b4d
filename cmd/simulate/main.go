// Command simulate runs one parameter set and prints its summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"momentum-lab/internal/config"
	"momentum-lab/internal/domain"
	"momentum-lab/internal/loader"
	"momentum-lab/internal/reporting"
	"momentum-lab/internal/simulation"
	"momentum-lab/internal/storage"
	chstore "momentum-lab/internal/storage/clickhouse"
	"momentum-lab/internal/storage/memory"
	pgstore "momentum-lab/internal/storage/postgres"
)

func main() {
	// Inputs
	pricesPath := flag.String("prices", "data/prices.csv", "Price table CSV")
	lotsPath := flag.String("lots", "data/lot_sizes.csv", "Lot size CSV")
	argsPath := flag.String("args", "", "args.yaml written by sweep; replays the parameter set at -index")
	index := flag.Int("index", 0, "Parameter set index within -args")

	// Parameters (ignored with -args)
	rank := flag.Int("rank", 0, "Candidate rank, 0 = best")
	side := flag.String("side", "long", "Side: long, short")
	leverage := flag.Float64("leverage", 1, "Leverage")
	lookback := flag.Int("lookback", 720, "Momentum lookback (ticks)")
	maxHold := flag.Int("max-hold", 720, "Max hold before re-check (ticks)")
	stopLoss := flag.Float64("stop-loss", 0.05, "Stop-loss rate")
	balance := flag.Float64("balance", 10000, "Initial balance")
	fee := flag.Float64("fee", domain.DefaultFeeRate, "Fee rate")
	trailDelay := flag.Int("trail-delay", -1, "Trailing stop delay (ticks), -1 = disabled")
	trailRate := flag.Float64("trail-rate", 0.05, "Trailing stop distance")
	profitDelay := flag.Int("profit-delay", -1, "Profit stop delay (ticks), -1 = disabled")
	profitRate := flag.Float64("profit-rate", 0.03, "Profit stop offset")
	minMomentum := flag.Float64("min-momentum", 0, "Minimum momentum filter, 0 = disabled")
	add1 := flag.Float64("add1", 0, "Scale-in stage 1 offset, 0 = disabled")
	add2 := flag.Float64("add2", 0, "Scale-in stage 2 offset, 0 = disabled")
	cooldown := flag.Int("cooldown", 0, "Ban duration after a losing close (ticks)")
	maxDrawdown := flag.Float64("max-drawdown", 0, "Kill-switch drawdown, 0 = disabled")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (lot sizes, results)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (prices, equity curves)")
	sweepID := flag.String("sweep-id", "adhoc", "Sweep ID the persisted run is filed under")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")
	equityPath := flag.String("equity", "", "Write the trade-history log as CSV to this path")
	showTrades := flag.Bool("trades", false, "Print closed trades")
	verbose := flag.Bool("v", false, "Debug logging")

	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	logger := config.NewLogger(level, "console").With().Str("cmd", "simulate").Logger()

	var cfg domain.SimulationConfig
	if *argsPath != "" {
		var err error
		cfg, err = loadArgs(*argsPath, *index)
		if err != nil {
			logger.Fatal().Err(err).Msg("load args")
		}
	} else {
		s, err := domain.ParseSide(*side)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid side")
		}
		cfg = domain.SimulationConfig{
			Rank:           *rank,
			Side:           s,
			Leverage:       *leverage,
			LookbackTicks:  *lookback,
			MaxHoldTicks:   *maxHold,
			StopLossRate:   *stopLoss,
			InitialBalance: *balance,
			FeeRate:        fee,
		}
		if *trailDelay >= 0 {
			cfg.Trailing = &domain.TrailingRule{DelayTicks: *trailDelay, Rate: *trailRate}
		}
		if *profitDelay >= 0 {
			cfg.ProfitTarget = &domain.ProfitTargetRule{DelayTicks: *profitDelay, Rate: *profitRate}
		}
		if *minMomentum != 0 {
			cfg.MinMomentum = minMomentum
		}
		if *add1 != 0 || *add2 != 0 {
			cfg.ScaleIn = &domain.ScaleInRule{}
			if *add1 != 0 {
				cfg.ScaleIn.Stage1Rate = add1
			}
			if *add2 != 0 {
				cfg.ScaleIn.Stage2Rate = add2
			}
		}
		if *cooldown > 0 {
			cfg.CooldownTicks = cooldown
		}
		if *maxDrawdown > 0 {
			cfg.MaxDrawdown = maxDrawdown
		}
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Create stores: CSV inputs go into memory stores unless both DSNs are set
	var (
		priceStore  storage.PriceSeriesStore
		lotStore    storage.LotSizeStore
		resultStore storage.RunResultStore
		curveStore  storage.EquityCurveStore
	)

	if *postgresDSN != "" && *clickhouseDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to postgres")
		}
		defer pool.Close()
		lotStore = pgstore.NewLotSizeStore(pool)
		resultStore = pgstore.NewRunResultStore(pool)

		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to clickhouse")
		}
		defer conn.Close()
		priceStore = chstore.NewPriceSeriesStore(conn)
		curveStore = chstore.NewEquityCurveStore(conn)
	} else {
		ps, ls, err := seedMemoryStores(ctx, *pricesPath, *lotsPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("load inputs")
		}
		priceStore, lotStore = ps, ls
	}

	result := run(ctx, logger, priceStore, lotStore, resultStore, curveStore, *sweepID, cfg)
	output(logger, result, *outputJSON, *equityPath, *showTrades)
}

func run(
	ctx context.Context,
	logger zerolog.Logger,
	prices storage.PriceSeriesStore,
	lots storage.LotSizeStore,
	results storage.RunResultStore,
	curves storage.EquityCurveStore,
	sweepID string,
	cfg domain.SimulationConfig,
) *domain.RunResult {
	runner := simulation.NewRunner(simulation.RunnerOptions{
		PriceStore:  prices,
		LotStore:    lots,
		ResultStore: results,
		CurveStore:  curves,
		Logger:      &logger,
	})

	result, err := runner.Run(ctx, sweepID, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("simulation failed")
	}
	return result
}

// seedMemoryStores loads the CSV inputs into memory stores.
func seedMemoryStores(ctx context.Context, pricesPath, lotsPath string) (*memory.PriceSeriesStore, *memory.LotSizeStore, error) {
	u, err := loader.LoadUniverseFile(pricesPath)
	if err != nil {
		return nil, nil, err
	}
	lots, err := loader.LoadLotSizesFile(lotsPath)
	if err != nil {
		return nil, nil, err
	}

	priceStore := memory.NewPriceSeriesStore()
	if err := priceStore.InsertBulk(ctx, u.Points()); err != nil {
		return nil, nil, fmt.Errorf("store prices: %w", err)
	}
	lotStore := memory.NewLotSizeStore()
	if err := lotStore.Upsert(ctx, lots); err != nil {
		return nil, nil, fmt.Errorf("store lot sizes: %w", err)
	}
	return priceStore, lotStore, nil
}

func loadArgs(path string, index int) (domain.SimulationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SimulationConfig{}, err
	}
	f, err := reporting.ParseArgsYAML(data)
	if err != nil {
		return domain.SimulationConfig{}, err
	}
	if index < 0 || index >= len(f.Configs) {
		return domain.SimulationConfig{}, fmt.Errorf("index %d out of range [0, %d)", index, len(f.Configs))
	}
	return f.Configs[index], nil
}

func output(logger zerolog.Logger, r *domain.RunResult, asJSON bool, equityPath string, showTrades bool) {
	if equityPath != "" {
		if err := os.WriteFile(equityPath, []byte(reporting.RenderEquityCSV(r.History)), 0o644); err != nil {
			logger.Fatal().Err(err).Msg("write equity curve")
		}
	}

	if asJSON {
		out, err := sonic.ConfigStd.MarshalIndent(struct {
			ConfigID string                  `json:"config_id"`
			Config   domain.SimulationConfig `json:"config"`
			Summary  domain.Summary          `json:"summary"`
		}{r.ConfigID, r.Config, r.Summary}, "", "  ")
		if err != nil {
			logger.Fatal().Err(err).Msg("marshal summary")
		}
		fmt.Println(string(out))
		return
	}

	printSummary(r)
	if showTrades {
		printTrades(r.Trades)
	}
}

func printSummary(r *domain.RunResult) {
	s := r.Summary
	fmt.Println("=== Simulation Result ===")
	fmt.Printf("Config ID:         %s\n", r.ConfigID)
	fmt.Printf("Side:              %s\n", r.Config.Side)
	fmt.Printf("Trades:            %d (wins %d, win rate %s)\n", s.TradeCount, s.WinCount, fmtOpt(s.WinRate))
	fmt.Printf("Final Value:       %.2f\n", s.FinalValue)
	fmt.Printf("Lowest Value:      %.2f\n", s.LowestValue)
	fmt.Printf("Final Profit Rate: %.4f\n", s.FinalProfitRate)
	fmt.Printf("Peak Profit Rate:  %.4f\n", s.ProfitRatePeak)
	fmt.Printf("Max Drawdown:      %.4f\n", s.MaxDrawdown)
	fmt.Printf("Best/Worst Trade:  %.4f / %.4f\n", s.MaxProfitRateSingleTrade, s.MaxLossRateSingleTrade)
	fmt.Printf("Streaks:           win %d, loss %d\n", s.MaxStreak, s.MaxLossStreak)
	fmt.Printf("Profit / Loss:     %.2f / %.2f (factor %s)\n", s.TotalProfit, s.TotalLoss, fmtOpt(s.ProfitFactor))
	fmt.Printf("Kill-Switch:       %t\n", s.KillSwitchTriggered)
}

func printTrades(trades []*domain.TradeRecord) {
	fmt.Println()
	fmt.Println("=== Trades ===")
	for _, t := range trades {
		fmt.Printf("%-10s %6d -> %6d  %12.6f -> %12.6f  qty %-12g %-14s %+.4f\n",
			t.Symbol, t.EntryTick, t.ExitTick, t.EntryPrice, t.ExitPrice, t.Position, t.ExitReason, t.ProfitRate)
	}
}

func fmtOpt(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *v)
}
