package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"MarketPulse/internal/broker"
	"MarketPulse/internal/chart"
	"MarketPulse/internal/collector"
	"MarketPulse/internal/config"
	"MarketPulse/internal/logger"
	"MarketPulse/internal/notifier"
	"MarketPulse/internal/observability"
	"MarketPulse/internal/recorder"
	"MarketPulse/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

func main() {
	lg, _ := logger.New("info", false)
	lg.Info().Msg("MarketPulse starting...")
	if err := run(lg); err != nil {
		lg.Error().Err(err).Msg("MarketPulse aborted")
		os.Exit(1)
	}
	lg.Info().Msg("MarketPulse stopped")
}

func run(lg zerolog.Logger) error {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if l, err := logger.New(cfg.Log.Level, cfg.Log.JSON); err != nil {
		lg.Warn().Err(err).Str("level", cfg.Log.Level).Msg("invalid log level, keeping info")
	} else {
		lg = l
	}

	// Init Telegram notifier
	if !cfg.Telegram.Enabled() && (cfg.Telegram.BotToken != "" || cfg.Telegram.ChatID != "") {
		lg.Warn().Msg("telegram needs both bot token and chat id, notifications disabled")
	}
	tn, err := notifier.NewTelegramNotifier(cfg.Telegram, cfg.Proxy, "")
	if err != nil {
		return fmt.Errorf("init telegram notifier: %w", err)
	}
	defer tn.Close()

	// Init broker
	client := broker.NewClient(cfg.Broker.BaseURL, cfg.Broker.APIKey, cfg.Proxy)
	sessions := broker.NewSessionManager(client, cfg.Broker, lg)
	col := collector.NewCollector(client, cfg.Instrument, cfg.Poll.Lookback)
	renderer := chart.NewRenderer(cfg.Chart.Dir)
	renderer.Location = broker.IST
	renderer.HalfWidth = cfg.Instrument.Interval.Duration() / 5

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, lg)
		if err != nil {
			lg.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := observability.Serve(ctx, cfg.Metrics.Addr, reg, lg); err != nil {
				lg.Error().Err(err).Msg("metrics server")
			}
		}()
	}

	sched, err := scheduler.NewScheduler(cfg.Poll, cfg.Instrument.Label, col, renderer, tn, rec, metrics, lg)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	logStartup(lg, cfg)
	return sched.Run(ctx, sessions)
}

func logStartup(lg zerolog.Logger, cfg *config.Config) {
	lg.Info().
		Str("exchange", cfg.Instrument.Exchange).
		Str("token", cfg.Instrument.SymbolToken).
		Str("interval", string(cfg.Instrument.Interval)).
		Dur("every", cfg.Poll.Interval()).
		Str("cron", cfg.Poll.Cron).
		Dur("lookback", cfg.Poll.Lookback).
		Int("window", cfg.Poll.Window).
		Bool("telegram", cfg.Telegram.Enabled()).
		Msg("MarketPulse is running. Press Ctrl+C to stop.")
}
