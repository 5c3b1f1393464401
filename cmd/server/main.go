package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docoutline/internal/api"
	"github.com/dgallion1/docoutline/internal/classifier"
	"github.com/dgallion1/docoutline/internal/config"
	"github.com/dgallion1/docoutline/internal/outliner"
	"github.com/dgallion1/docoutline/internal/pipeline"
	"github.com/dgallion1/docoutline/internal/postprocess"
	"github.com/dgallion1/docoutline/internal/sink"
)

func main() {
	cfgFile := flag.String("config", "", "path to config file")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A missing or broken bundle is not fatal: the server answers with
	// all-NONE labels until a valid bundle appears.
	models := classifier.NewStore(cfg.BundleDir, log)
	_ = models.Load()
	if cfg.WatchBundle {
		if err := os.MkdirAll(cfg.BundleDir, 0o755); err != nil {
			log.Error("create bundle dir", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := models.Watch(ctx); err != nil {
				log.Error("bundle watcher stopped", "error", err)
			}
		}()
	}

	var pub pipeline.Publisher
	var sinkClient *sink.Client
	if cfg.SinkURL != "" {
		sinkClient = sink.NewClient(cfg.SinkURL, cfg.SinkAPIKey)
		pub = sinkClient
	}

	proc := postprocess.New(log, cfg.Postprocess())
	o := outliner.New(models, proc, log)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, o, pub, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, o, models, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if sinkClient != nil {
			sinkClient.Close()
		}
	}()

	log.Info("starting outliner", "port", cfg.Port, "has_model", models.Current() != nil, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
