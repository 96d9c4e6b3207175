package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mkurimoto/seminar-relay/internal/classify"
	"github.com/mkurimoto/seminar-relay/internal/clock/system"
	"github.com/mkurimoto/seminar-relay/internal/config"
	"github.com/mkurimoto/seminar-relay/internal/logging"
	"github.com/mkurimoto/seminar-relay/internal/metrics"
	"github.com/mkurimoto/seminar-relay/internal/notify"
	"github.com/mkurimoto/seminar-relay/internal/run"
	"github.com/mkurimoto/seminar-relay/internal/scheduler"
	"github.com/mkurimoto/seminar-relay/internal/seminar"
	"github.com/mkurimoto/seminar-relay/internal/source"
	"github.com/mkurimoto/seminar-relay/internal/store"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	once := flag.Bool("once", false, "Run one pipeline pass and exit")
	dryRun := flag.Bool("dry-run", false, "Log would-be notifications without sending")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	st, err := store.New(ctx, store.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        int32(cfg.DB.MaxConns),
		MinConns:        int32(cfg.DB.MinConns),
		MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifetimeMin) * time.Minute,
	})
	if err != nil {
		logger.Fatal("connect store failed", zap.Error(err))
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx, cfg.Regions()); err != nil {
		logger.Fatal("schema bootstrap failed", zap.Error(err))
	}

	loc := cfg.Location()
	clk := system.New(loc)
	classifier := classify.New(classify.Config{Location: loc})

	readerCfg := source.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
	}
	readers := map[seminar.SourceKind]seminar.Reader{
		seminar.SourceKindPage: source.NewPageReader(readerCfg),
		seminar.SourceKindFeed: source.NewFeedReader(readerCfg),
	}

	senders := []seminar.Sender{
		notify.NewChatSender(notify.ChatConfig{
			Timeout: time.Duration(cfg.Chat.TimeoutSeconds) * time.Second,
		}),
	}
	if cfg.SMTP.Host != "" {
		emailSender, err := notify.NewEmailSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Timeout:  time.Duration(cfg.SMTP.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			logger.Fatal("email sender init failed", zap.Error(err))
		}
		senders = append(senders, emailSender)
	} else {
		logger.Warn("smtp.host not set, email routes will fail")
	}

	router := notify.NewRouter(st, senders, classifier, clk, cfg.DedupWindow(), logger)
	runner := run.New(cfg.Sources, readers, st, classifier, router, clk, cfg.DedupWindow(), logger)

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	runDry := cfg.Pipeline.DryRun || *dryRun

	if *once {
		counters, err := runner.Run(ctx, runDry)
		if err != nil {
			logger.Error("run failed", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("single run complete",
			zap.Int("collected", counters.Collected),
			zap.Int("new_important", counters.NewImportant),
			zap.Int("sent", counters.Sent),
			zap.Int("failed", counters.Failed))
		return
	}

	sched, err := scheduler.New(scheduler.Config{
		Cron:          cfg.Scheduler.Cron,
		Location:      loc,
		RetryAttempts: cfg.Scheduler.RetryAttempts,
		RetryDelay:    time.Duration(cfg.Scheduler.RetryDelayMinutes) * time.Minute,
		DryRun:        runDry,
	}, runner.Run, logger)
	if err != nil {
		logger.Fatal("scheduler init failed", zap.Error(err))
	}
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("scheduler start failed", zap.Error(err))
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	sched.Stop()
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics listener starting", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics listener failed", zap.Error(err))
	}
}
