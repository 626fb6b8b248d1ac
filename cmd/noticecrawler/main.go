// Package main wires together the notice crawler service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nrs-project/notice-crawler/internal/api"
	"github.com/nrs-project/notice-crawler/internal/clock/system"
	"github.com/nrs-project/notice-crawler/internal/config"
	"github.com/nrs-project/notice-crawler/internal/detail"
	collyfetcher "github.com/nrs-project/notice-crawler/internal/fetcher/colly"
	"github.com/nrs-project/notice-crawler/internal/index"
	"github.com/nrs-project/notice-crawler/internal/logging"
	"github.com/nrs-project/notice-crawler/internal/metrics"
	"github.com/nrs-project/notice-crawler/internal/pipeline"
	"github.com/nrs-project/notice-crawler/internal/scheduler"
	"github.com/nrs-project/notice-crawler/internal/storage/sqlite"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
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
		_ = logger.Sync()
	}()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	metrics.Init()

	store, err := sqlite.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("close record store", zap.Error(cerr))
		}
	}()

	fetcher := collyfetcher.New(collyfetcher.Config{
		Timeout:    cfg.FetchTimeout(),
		MaxRetries: cfg.HTTP.MaxRetries,
	}, logger)

	ocr := detail.NewOCR(cfg.OCR.TesseractCmd, cfg.OCR.TessdataDir, cfg.OCR.Languages)
	if !ocr.Enabled() {
		logger.Info("ocr disabled: no tesseract executable configured")
	}
	extractor := detail.New(fetcher, ocr, runtime.NumCPU(), logger)

	var indexer *index.Client
	if cfg.Index.Enabled {
		indexer = index.NewClient(cfg.Index.BaseURL, time.Duration(cfg.Index.TimeoutSeconds)*time.Second)
	} else {
		indexer = index.NewClient("", 0)
	}

	orchestrator := pipeline.New(
		cfg.Sources,
		fetcher,
		extractor,
		store,
		indexer,
		system.New(),
		cfg.Crawler.Concurrency,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Crawler.AutoCrawl && cfg.Crawler.IntervalSeconds > 0 {
		sched := scheduler.Start(ctx, orchestrator, cfg.CrawlInterval(), logger)
		defer sched.Stop()
	}

	server := api.NewServer(orchestrator, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
