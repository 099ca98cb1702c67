package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ppastore/dayflow/internal/agents"
	"github.com/ppastore/dayflow/internal/channel"
	"github.com/ppastore/dayflow/internal/config"
	"github.com/ppastore/dayflow/internal/history"
	"github.com/ppastore/dayflow/internal/httpapi"
	"github.com/ppastore/dayflow/internal/notify"
	"github.com/ppastore/dayflow/internal/observability"
	"github.com/ppastore/dayflow/internal/task"
	"github.com/ppastore/dayflow/internal/wellness"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, using environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	store, err := history.NewStore(runCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("history store init failed: %v", err)
	}
	defer store.Close()

	hist := history.New()
	hist.SetStore(store)
	if err := hist.Restore(runCtx); err != nil {
		log.Printf("history restore failed, starting empty: %v", err)
	}

	catalogCtx, catalogCancel := context.WithTimeout(runCtx, 10*time.Second)
	catalog, err := agents.Fetch(catalogCtx, cfg.HubAPIBaseURL)
	catalogCancel()
	if err != nil {
		log.Printf("agent catalog unavailable, task submission disabled: %v", err)
		catalog = agents.NewCatalog(nil)
	} else {
		log.Printf("agent catalog loaded: %d agents", catalog.Len())
	}

	ch := channel.NewManager(channel.Config{
		URL:         cfg.HubWSURL,
		RetryDelay:  cfg.ReconnectDelay,
		MaxAttempts: cfg.ReconnectMaxAttempts,
	})

	coordinator := task.NewCoordinator(ch, catalog, hist, metrics)
	queue := notify.NewQueue(cfg.NotificationDedupWindow, metrics)
	sessions := wellness.NewCoordinator(wellness.NewClient(cfg.HubAPIBaseURL, cfg.SessionHTTPTimeout), metrics)

	ch.OnEvent(func(evt any) {
		if _, ok := queue.Receive(evt); ok {
			return
		}
		coordinator.HandleEvent(evt)
	})
	ch.OnStateChange(func(state channel.State) {
		switch state {
		case channel.StateConnected:
			metrics.ChannelConnected.Set(1)
		case channel.StateReconnecting:
			metrics.ChannelConnected.Set(0)
			metrics.ChannelReconnects.Inc()
			coordinator.HandleDisconnect()
		default:
			metrics.ChannelConnected.Set(0)
			coordinator.HandleDisconnect()
		}
	})
	ch.Start(runCtx)
	defer ch.Close()

	api := httpapi.New(ch, coordinator, hist, queue, sessions, catalog)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
