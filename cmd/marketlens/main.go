package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"MarketLens/internal/config"
	"MarketLens/internal/logger"
	"MarketLens/internal/scheduler"
)

const usage = `usage: marketlens <command> [flags]

commands:
  markets [-category us,crypto,...]        market overview
  ticker SYMBOL[,SYMBOL...] [SYMBOL...]    per-symbol detail
  options [-expiration nearest|YYYY-MM-DD] [-greeks] SYMBOL
  daemon                                   keep caches warm on a schedule
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// Load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	a, err := newApp(cfg, log)
	if err != nil {
		log.Fatal("init", zap.Error(err))
	}
	defer a.Close()

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "markets":
		err = runMarkets(ctx, a, args)
	case "ticker", "tickers":
		err = runTicker(ctx, a, args)
	case "options":
		err = runOptions(ctx, a, args)
	case "daemon":
		err = runDaemon(ctx, a)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Error(cmd+" failed", zap.Error(err))
		a.Close()
		os.Exit(1)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runMarkets(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("markets", flag.ContinueOnError)
	category := fs.String("category", "", "comma-separated categories (default all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var categories []string
	if *category != "" {
		categories = strings.Split(*category, ",")
	}
	return printJSON(a.collector.Markets(ctx, time.Now(), categories...))
}

func runTicker(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("ticker: at least one symbol required")
	}
	return printJSON(a.collector.Tickers(ctx, args, time.Now()))
}

func runOptions(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("options", flag.ContinueOnError)
	expiration := fs.String("expiration", "nearest", "nearest or YYYY-MM-DD")
	greeks := fs.Bool("greeks", false, "include per-contract Greeks")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("options: exactly one symbol required")
	}
	report, err := a.collector.Options(ctx, fs.Arg(0), *expiration, time.Now(), *greeks)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runDaemon(ctx context.Context, a *app) error {
	sched := scheduler.NewScheduler(ctx, a.collector, a.recorder, a.logger)
	if err := sched.RegisterAll(a.cfg.Schedule.WarmCron, a.cfg.Schedule.StatsCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	// Optional: warm immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		a.logger.Info("RUN_ON_START enabled, warming caches now")
		go sched.RunWarmNow()
	}

	a.logger.Info("MarketLens daemon is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	a.logger.Info("shutdown signal received, stopping...")
	return nil
}
