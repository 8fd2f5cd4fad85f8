package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"recruit-comms/internal/app"
	"recruit-comms/internal/config"
	"recruit-comms/internal/jobs"
	"recruit-comms/internal/queue"
	"recruit-comms/pkg/logger"
	"recruit-comms/pkg/observability"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "worker")
	slog.SetDefault(log)

	shutdownTracer, err := observability.InitTracer(rootCtx, observability.TracerConfig{
		ServiceName: cfg.Telemetry.ServiceName + "-worker",
		Environment: cfg.App.Env,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
	}, log)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	a, err := app.New(rootCtx, cfg, log, nil)
	if err != nil {
		log.Error("app init failed", "err", err)
		os.Exit(1)
	}

	voice := jobs.NewVoiceCallHandler(a.Calls, jobs.VoiceCallOptions{
		Redis:    a.Redis,
		OrgLimit: cfg.Voice.OrgConcurrency,
		Logger:   log,
	})
	handlers := jobs.Handlers(
		voice,
		jobs.NewReminderHandler(a.Notify, voice, log),
		jobs.NewResendEmailHandler(cfg.Email.ResendAPIKey, cfg.Email.From, log),
	)

	var wg sync.WaitGroup
	for name, h := range handlers {
		q, err := a.Queues.Queue(name)
		if err != nil {
			log.Error("unknown queue", "queue", name, "err", err)
			os.Exit(1)
		}
		w := queue.NewWorker(q, h, queue.WorkerOptions{
			Concurrency:  cfg.Queue.WorkerConcurrency,
			PollInterval: cfg.Queue.PollInterval,
			StalledAfter: cfg.Queue.StalledAfter,
			Logger:       log,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(rootCtx)
		}()
	}
	log.Info("worker running", "queues", len(handlers), "concurrency", cfg.Queue.WorkerConcurrency)

	// Metrics only; the worker serves no API.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.HTTPAddr(), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "err", err)
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated; draining in-flight jobs")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown failed", "err", err)
	}
	if err := a.Close(); err != nil {
		log.Error("shutdown close failed", "err", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", "err", err)
	}
}
