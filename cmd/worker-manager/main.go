// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"loan-workers/internal/bootstrap"
	"loan-workers/internal/common/camunda"
	"loan-workers/internal/common/config"
	"loan-workers/internal/common/logger"
	createloan "loan-workers/internal/workers/loan/create-loan"
	deleteloan "loan-workers/internal/workers/loan/delete-loan"
	fetchloan "loan-workers/internal/workers/loan/fetch-loan"
	"loan-workers/internal/workers/loan/loanjob"
	updateloan "loan-workers/internal/workers/loan/update-loan"
	updateloanstatus "loan-workers/internal/workers/loan/update-loan-status"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}
	if err := cfg.RequireBroker(); err != nil {
		zap.NewExample().Fatal("invalid config", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format).With(
		zap.String("service", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting loan worker manager...")

	ctx := context.Background()

	// --- Store, caches, audit, notifications ---
	var rt *bootstrap.Runtime
	err = retryWithBackoff(func() error {
		var err error
		rt, err = bootstrap.Open(ctx, cfg, log)
		return err
	}, 15, 2*time.Second, zapLog, "Runtime initialization")
	if err != nil {
		zapLog.Fatal("runtime failed after retries", zap.Error(err))
	}
	defer rt.Close()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(camunda.ConfigFrom(cfg.Camunda))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully", zap.String("gateway", cfg.Camunda.BrokerAddress))

	workers := startWorkers(cfg, rt, zeebe, log)
	zapLog.Info("Workers started", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := zeebe.HealthCheck(checkCtx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Server.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorkers(cfg *config.Config, rt *bootstrap.Runtime, zeebe *camunda.Client, log logger.Logger) []*camunda.CamundaWorker {
	handlers := map[string]camunda.JobHandler{
		createloan.TaskType: createloan.NewHandler(
			loanjob.LoadConfig(cfg, rt.Registry, createloan.TaskType), rt.Service, log),
		updateloanstatus.TaskType: updateloanstatus.NewHandler(
			loanjob.LoadConfig(cfg, rt.Registry, updateloanstatus.TaskType), rt.Service, log),
		updateloan.TaskType: updateloan.NewHandler(
			loanjob.LoadConfig(cfg, rt.Registry, updateloan.TaskType), rt.Service, log),
		fetchloan.TaskType: fetchloan.NewHandler(
			loanjob.LoadConfig(cfg, rt.Registry, fetchloan.TaskType), rt.Service, log),
		deleteloan.TaskType: deleteloan.NewHandler(
			loanjob.LoadConfig(cfg, rt.Registry, deleteloan.TaskType), rt.Service, log),
	}

	var workers []*camunda.CamundaWorker
	for taskType, handler := range handlers {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		if !wcfg.Enabled {
			log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
			continue
		}
		maxJobs := wcfg.MaxJobsActive
		if maxJobs <= 0 {
			maxJobs = cfg.Camunda.MaxJobsActive
		}
		workers = append(workers, camunda.NewWorker(
			zeebe.GetClient(),
			taskType,
			maxJobs,
			config.GetDuration(wcfg.Timeout),
			handler,
			rt.Obs,
			log,
		))
	}
	return workers
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
