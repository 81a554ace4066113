// Package main is the entry point for the order execution bot.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/alerting"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/broker/paper"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/config"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/engine"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/journal"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/metrics"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/observer"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/pricing"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/ui"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Version information (set by build flags).
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const heartbeatInterval = 5 * time.Second

func main() {
	// Parse command
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "validate":
		cmdValidate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Execution Bot - TWAP, aggressive and liquidation order execution

Usage:
  execbot <command> [options]

Commands:
  run        Execute one parent order
  validate   Validate configuration file
  version    Show version information
  help       Show this help message

Examples:
  execbot run --strategy TWAP --symbol ZBH0:MBO --action buy --size 100 --maxtime 120 --slices 10
  execbot run --config config.yaml --strategy aggressive --size 20
  execbot validate --config config.yaml

Use "execbot <command> --help" for more information about a command.`)
}

func cmdVersion() {
	fmt.Printf("execbot version %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration is valid!")
	fmt.Printf("  Order: %s %s %d %s\n", cfg.Order.Strategy, cfg.Order.Action, cfg.Order.Size, cfg.Order.Symbol)
	fmt.Printf("  Time budget: %s (%d slices)\n", cfg.MaxTime(), cfg.Order.Slices)
	fmt.Printf("  Pricing: %s\n", cfg.Pricing.Type)
	fmt.Printf("  Penalty rate: %s\n", cfg.PenaltyRateDecimal())
	fmt.Printf("  Journal: %v\n", cfg.Journal.Enabled)
}

// runFlags are the CLI overrides for a run.
type runFlags struct {
	configPath string
	strategy   string
	symbol     string
	action     string
	size       int64
	maxTime    int
	slices     int
	botID      string
	paper      bool
	jsonLogs   bool
	jsonReport bool
	bookFile   string
}

func parseRunFlags(args []string) (runFlags, *flag.FlagSet, error) {
	var f runFlags
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "Path to configuration file (defaults apply without one)")
	fs.StringVar(&f.strategy, "strategy", "", "Strategy: TWAP, AGGRESSIVE, LIQUIDATE")
	fs.StringVar(&f.symbol, "symbol", "", "Instrument symbol")
	fs.StringVar(&f.action, "action", "", "Order action: buy or sell")
	fs.Int64Var(&f.size, "size", 0, "Parent order quantity")
	fs.IntVar(&f.maxTime, "maxtime", 0, "Time budget in seconds")
	fs.IntVar(&f.slices, "slices", 0, "TWAP slice count")
	fs.StringVar(&f.botID, "bot-id", "", "Bot id carried in reports")
	fs.BoolVar(&f.paper, "paper", true, "Run against the paper venue (default: true)")
	fs.BoolVar(&f.jsonLogs, "json-logs", false, "Log as JSON")
	fs.BoolVar(&f.jsonReport, "json", false, "Print the report as JSON")
	fs.StringVar(&f.bookFile, "book-file", "", "Replay recorded depth from a CSV into the paper venue")
	err := fs.Parse(args)
	return f, fs, err
}

// loadRunConfig loads the config file, if any, and applies flag overrides.
func loadRunConfig(f runFlags, fs *flag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if set["strategy"] {
		cfg.Order.Strategy = f.strategy
	}
	if set["symbol"] {
		cfg.Order.Symbol = f.symbol
	}
	if set["action"] {
		cfg.Order.Action = f.action
	}
	if set["size"] {
		cfg.Order.Size = f.size
	}
	if set["maxtime"] {
		cfg.Order.MaxTimeSec = f.maxTime
	}
	if set["slices"] {
		cfg.Order.Slices = f.slices
	}
	if set["bot-id"] {
		cfg.BotID = f.botID
	}
	if set["book-file"] {
		cfg.Broker.BookFile = f.bookFile
	}
	if f.jsonLogs {
		cfg.Logging.Format = "json"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := cfg.LogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func cmdRun(args []string) int {
	flags, fs, err := parseRunFlags(args)
	if err != nil {
		return 2
	}

	cfg, err := loadRunConfig(flags, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}
	if !flags.paper {
		fmt.Fprintln(os.Stderr, "Only the paper venue is available; run with --paper")
		return 1
	}

	// Setup structured logging
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	req, err := parentRequest(cfg)
	if err != nil {
		logger.Error("invalid parent order", "err", err)
		return 1
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.SetBuildInfo(Version, GitCommit, BuildTime)
	logger.Info("execbot starting",
		"version", Version,
		"bot_id", cfg.BotID,
		"strategy", req.Strategy,
		"symbol", req.Symbol,
		"action", req.Side,
		"size", req.Qty,
		"maxtime", req.TimeBudget,
		"slices", req.Slices,
	)

	// Provider
	brk := newPaperBroker(cfg, logger)
	if err := brk.Connect(ctx); err != nil {
		logger.Error("failed to connect provider", "err", err)
		return 1
	}
	if cfg.Broker.BookFile == "" {
		seedPaperBook(brk, cfg, req.Symbol)
	}

	// Journal
	var jrnl engine.Journal
	var closeJournal func() error
	if cfg.Journal.Enabled {
		j, err := journal.NewSQLiteJournal(cfg.Journal.Path)
		if err != nil {
			logger.Error("failed to open journal", "path", cfg.Journal.Path, "err", err)
			return 1
		}
		jrnl, closeJournal = j, j.Close
	}

	alerter, telegrams := newAlerter(cfg, logger)
	_ = alerting.Notify(ctx, alerter, alerting.EventBotStarted, "Execution bot started",
		"version", Version, "bot_id", cfg.BotID)

	controller := engine.NewController(engine.Config{
		BotID:               cfg.BotID,
		AggressiveDeadline:  cfg.AggressiveDeadline(),
		LiquidationDeadline: cfg.LiquidationDeadline(),
		PenaltyRate:         cfg.PenaltyRateDecimal(),
		EscalationThreshold: cfg.EscalationThreshold(),
		ReadinessTimeout:    cfg.ReadinessTimeout(),
		RetryBackoff:        cfg.RetryBackoff(),
	}, brk, newPricer(cfg, logger), alerter, jrnl, logger)

	// Execution, metrics server and heartbeat run together; the execution
	// finishing stops the rest.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.Metrics.Enabled {
		server := metrics.NewServer(metrics.ServerConfig{
			Port:        cfg.Metrics.Port,
			MetricsPath: cfg.Metrics.Path,
			HealthPath:  "/health",
		}, logger)
		server.RegisterHealthCheck("provider", metrics.ConnectionCheck(brk))
		server.RegisterHealthCheck("market_data", metrics.ReadyCheck(brk.Ready()))

		g.Go(func() error {
			if err := server.Run(gctx); err != nil {
				logger.Error("metrics server failed", "err", err)
			}
			return nil
		})
	}

	if cfg.Broker.BookFile != "" {
		obs := observer.NewObserver(
			observer.NewReplayFeed(cfg.Broker.BookFile, req.Symbol),
			brk, cfg.Broker.ReplaySpeed, logger.With("component", "observer"))
		g.Go(func() error {
			defer obs.Close()
			if _, err := obs.Run(gctx, req.Symbol); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("market data replay failed", "file", cfg.Broker.BookFile, "err", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		recorder := metrics.NewRecorder()
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			recorder.RecordHeartbeat()
			recorder.RecordProviderStatus(brk.IsConnected())
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	var report *types.ExecutionReport
	g.Go(func() error {
		defer cancelRun()
		var err error
		report, err = controller.Run(gctx, req)
		return err
	})

	runErr := g.Wait()

	if report != nil {
		if flags.jsonReport {
			printJSON(report)
		} else {
			ui.NewStdoutPrinter().Print(report)
		}
		sendSummaries(telegrams, report, logger)
	}
	if runErr != nil {
		logger.Error("execution failed", "err", runErr)
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = alerting.Notify(shutdownCtx, alerter, alerting.EventBotStopped, "Execution bot stopped")
	if err := shutdown(shutdownCtx, brk, closeJournal); err != nil {
		logger.Error("shutdown error", "err", err)
	}
	logger.Info("execbot shutdown complete")

	if runErr != nil {
		return 1
	}
	return 0
}

func parentRequest(cfg *config.Config) (engine.ParentRequest, error) {
	side, err := cfg.Side()
	if err != nil {
		return engine.ParentRequest{}, err
	}
	req := engine.ParentRequest{
		Strategy:   strings.ToUpper(cfg.Order.Strategy),
		Symbol:     cfg.Order.Symbol,
		Side:       side,
		Qty:        cfg.Order.Size,
		TimeBudget: cfg.MaxTime(),
		Slices:     cfg.Order.Slices,
	}
	return req, req.Validate()
}

func newPaperBroker(cfg *config.Config, logger *slog.Logger) *paper.Broker {
	return paper.NewBroker(paper.Config{
		BookLevels:        cfg.Market.BookLevels,
		ConfirmDelay:      time.Duration(cfg.Broker.ConfirmDelayMs) * time.Millisecond,
		ReplenishInterval: time.Duration(cfg.Broker.ReplenishIntervalMs) * time.Millisecond,
		SubmitsPerSecond:  cfg.Broker.SubmitsPerSecond,
	}, logger.With("component", "paper"))
}

// seedPaperBook gives the paper venue a book and one print so the VWAP is
// defined before the first child order.
func seedPaperBook(brk *paper.Broker, cfg *config.Config, symbol string) {
	mid := decimal.NewFromFloat(cfg.Broker.MidPrice)
	tick := decimal.NewFromFloat(cfg.Broker.TickSize)
	brk.SimulateDepth(symbol, paper.SyntheticDepth(cfg.Market.BookLevels, mid, tick, cfg.Broker.LevelSize))
	brk.SimulateTrade(symbol, mid, cfg.Broker.LevelSize)
}

func newPricer(cfg *config.Config, logger *slog.Logger) pricing.Pricer {
	if cfg.Pricing.Type == "http" {
		return pricing.NewHTTPClient(pricing.HTTPConfig{
			BaseURL:           cfg.Pricing.BaseURL,
			AggressivePath:    cfg.Pricing.AggressivePath,
			SlicedPath:        cfg.Pricing.SlicedPath,
			Timeout:           cfg.PricingTimeout(),
			RequestsPerSecond: cfg.Pricing.RequestsPerSecond,
		}, logger.With("component", "pricing"))
	}
	return pricing.NewDepthWalker()
}

// newAlerter builds the configured channels. Telegram alerters are also
// returned so they can receive the execution summary.
func newAlerter(cfg *config.Config, logger *slog.Logger) (alerting.Alerter, []*alerting.TelegramAlerter) {
	if !cfg.Alerting.Enabled {
		return nil, nil
	}

	multi := alerting.NewMultiAlerter(logger)
	var telegrams []*alerting.TelegramAlerter
	for _, ch := range cfg.Alerting.Channels {
		switch ch.Type {
		case "console":
			multi.AddAlerter(alerting.NewConsoleAlerter(logger))
		case "telegram":
			t := alerting.NewTelegramAlerter(alerting.TelegramConfig{
				BotToken: ch.BotToken,
				ChatID:   ch.ChatID,
				APIBase:  ch.APIBase,
			})
			multi.AddAlerter(t)
			telegrams = append(telegrams, t)
		}
	}
	if multi.Len() == 0 {
		multi.AddAlerter(alerting.NewConsoleAlerter(logger))
	}

	return alerting.NewFilterAlerter(multi, cfg.IsAlertEventEnabled), telegrams
}

func sendSummaries(telegrams []*alerting.TelegramAlerter, report *types.ExecutionReport, logger *slog.Logger) {
	if len(telegrams) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	summary := alerting.NewExecutionSummary(report)
	for _, t := range telegrams {
		if err := t.SendExecutionSummary(ctx, summary); err != nil {
			logger.Warn("failed to send execution summary", "alerter", t.Name(), "err", err)
		}
	}
}

func printJSON(report *types.ExecutionReport) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
	}
}

func shutdown(ctx context.Context, brk *paper.Broker, closeJournal func() error) error {
	var errs error
	if err := brk.Shutdown(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("provider: %w", err))
	}
	if closeJournal != nil {
		if err := closeJournal(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("journal: %w", err))
		}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		errs = multierr.Append(errs, errors.New("shutdown timed out"))
	}
	return errs
}
