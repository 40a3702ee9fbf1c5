package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/contentflow/internal/adapter/ingress"
	"github.com/xiaot623/gogo/contentflow/internal/logging"
	"github.com/xiaot623/gogo/contentflow/internal/notify"
	"github.com/xiaot623/gogo/contentflow/internal/planner"
	httpserver "github.com/xiaot623/gogo/contentflow/internal/transport/http"
	"github.com/xiaot623/gogo/contentflow/internal/transport/rpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP and JSON-RPC APIs",
	Long: `Serves the run API over HTTP and JSON-RPC, streams progress over websocket
and, when TRIGGER_INTERVAL is set, starts a run on every tick.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logging.Info("starting contentflow",
		"http_port", cfg.HTTPPort,
		"rpc_port", cfg.RPCPort,
		"database", cfg.DatabaseURL,
		"litellm_url", cfg.LiteLLMURL,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := notify.NewHub()
	defer hub.Close()
	sink := notify.Multi{hub, ingress.NewClient(cfg.IngressURL, cfg.NotifyChannel)}

	a, err := newApp(ctx, cfg, sink)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.CatalogWatch && cfg.CatalogPath != "" {
		err := planner.WatchCatalog(ctx, cfg.CatalogPath, a.classifier.SetCatalog)
		if err != nil {
			return err
		}
	}

	if cfg.TriggerInterval > 0 {
		logging.Info("periodic trigger enabled", "interval", cfg.TriggerInterval, "context", cfg.TriggerContext)
		go a.service.RunTrigger(ctx, cfg.TriggerInterval, cfg.TriggerContext)
	}

	httpServer := httpserver.NewServer(a.service, hub)
	rpcServer, err := rpc.NewServer(a.service)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := httpServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		addr := fmt.Sprintf(":%d", cfg.RPCPort)
		if err := rpcServer.Start(addr); err != nil {
			errCh <- fmt.Errorf("rpc server: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	logging.Info("shutting down contentflow")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if resp := a.service.Stop(); resp.Stopped {
		logging.Info("active run stopped", "run_id", resp.RunID)
	}
	if err := a.service.Wait(shutdownCtx); err != nil {
		logging.Warn("run did not exit before shutdown deadline", "err", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn("failed to shutdown http server gracefully", "err", err)
	}
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn("failed to shutdown rpc server gracefully", "err", err)
	}

	logging.Info("contentflow stopped")
	return serveErr
}
