// Command scheduler runs the Scheduler: node registry, placement, health
// monitoring, recovery, and state persistence.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/procflow/control-plane/internal/config"
	"github.com/procflow/control-plane/internal/obs"
	"github.com/procflow/control-plane/internal/scheduler"
)

func main() {
	rootCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadScheduler()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := obs.Build(obs.Config{Level: cfg.Logger.Level, Encoding: cfg.Logger.Encoding})
	defer log.Sync()
	log = log.With(zap.String("service", "scheduler"))

	sched := scheduler.New(cfg, log)
	if err := sched.Load(cfg.StateFilePath); err != nil {
		log.Error("failed to load prior state, starting empty", zap.Error(err))
	}

	monitor := scheduler.NewHealthMonitor(sched)
	recovery := scheduler.NewRecoveryEngine(sched)
	persister := scheduler.NewStatePersister(sched)

	var persisterDone sync.WaitGroup
	persisterDone.Add(1)

	go monitor.Run(rootCtx)
	go recovery.Run(rootCtx)
	go func() {
		defer persisterDone.Done()
		persister.Run(rootCtx)
	}()

	srv := scheduler.NewServer(sched, monitor, log)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: srv.Router(),
	}

	go func() {
		log.Info("scheduler listening", zap.Int("port", cfg.Port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("scheduler http server failed", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down scheduler")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("scheduler shutdown error", zap.Error(err))
	}
	persisterDone.Wait()

	log.Info("scheduler shutdown complete")
}
