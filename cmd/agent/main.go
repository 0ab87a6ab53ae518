// Command agent runs the Node Agent: a per-host process supervisor that
// spawns, tracks, and terminates workloads while exporting CPU/memory
// metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/procflow/control-plane/internal/agent"
	"github.com/procflow/control-plane/internal/config"
	"github.com/procflow/control-plane/internal/obs"
)

func main() {
	rootCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadAgent()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := obs.Build(obs.Config{Level: cfg.Logger.Level, Encoding: cfg.Logger.Encoding})
	defer log.Sync()
	log = log.With(zap.String("service", "agent"))

	sup := agent.NewSupervisor(log)
	sampler := agent.NewSampler()
	srv := agent.NewServer(sup, sampler, log)

	go sup.Reap(rootCtx)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Router(),
	}

	go func() {
		log.Info("agent listening", zap.Int("port", cfg.Port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("agent http server failed", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down agent")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("agent shutdown error", zap.Error(err))
	}

	log.Info("agent shutdown complete")
}
