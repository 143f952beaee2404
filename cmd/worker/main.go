package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/admission-portal/internal/bootstrap"
	"github.com/kirillkom/admission-portal/internal/config"
	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/observability/logging"
	"github.com/kirillkom/admission-portal/internal/observability/metrics"
)

const purgeInterval = time.Hour

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stdout, "worker", cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Observers{Resilience: workerMetrics})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()
	if app.Queue == nil {
		slog.Error("worker_requires_nats", "reason", "NATS_URL is empty")
		os.Exit(1)
	}

	metricsServer := startMetricsServer(cfg.WorkerMetricsPort, workerMetrics)
	if app.Expirer != nil {
		go purgeExpired(ctx, app.Expirer)
	}

	slog.Info("worker_subscribed", "subject", cfg.PaymentsSubject)
	err = app.Queue.SubscribePaymentCompleted(ctx, func(handlerCtx context.Context, event domain.PaymentEvent) error {
		if !event.OccurredAt.IsZero() {
			workerMetrics.ObserveEventLag(time.Since(event.OccurredAt))
		}
		workerMetrics.StartEvent()
		start := time.Now()

		processCtx, cancel := context.WithTimeout(handlerCtx, cfg.WorkerProcessTimeout)
		defer cancel()
		err := app.Processor.Process(processCtx, event)
		workerMetrics.FinishEvent(string(event.Kind), time.Since(start), err)
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("worker_metrics_shutdown_failed", "error", err)
	}
}

func startMetricsServer(port string, workerMetrics *metrics.WorkerMetrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", workerMetrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	return server
}

func purgeExpired(ctx context.Context, expirer interface {
	PurgeExpired(ctx context.Context) (int64, error)
}) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := expirer.PurgeExpired(ctx)
			if err != nil {
				slog.Warn("state_purge_failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("state_purged", "rows", n)
			}
		}
	}
}
