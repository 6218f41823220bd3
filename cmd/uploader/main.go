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

	"go.uber.org/zap"

	"github.com/sir_venger/chunk_lite/internal/app/uploadhttp"
	"github.com/sir_venger/chunk_lite/internal/assembler"
	"github.com/sir_venger/chunk_lite/internal/chunkstore"
	"github.com/sir_venger/chunk_lite/internal/config"
	"github.com/sir_venger/chunk_lite/internal/logging"
	"github.com/sir_venger/chunk_lite/internal/metrics"
	"github.com/sir_venger/chunk_lite/internal/retention"
	"github.com/sir_venger/chunk_lite/internal/usecase/uploadsvc"
)

// main инициализирует HTTP-сервис загрузок и обеспечивает корректное завершение по сигналу.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	store, err := chunkstore.New(cfg.UploadDir, logger)
	if err != nil {
		logger.Fatal("init chunk store", zap.Error(err))
	}
	asm := assembler.New(store, logger)
	m := metrics.New()

	uploads := uploadsvc.New(uploadsvc.Deps{
		Store:     store,
		Assembler: asm,
		Logger:    logger,
		Metrics:   m,
	})

	// Очистка брошенных загрузок включается только расписанием в конфиге.
	sweeper := retention.New(store.ChunksDir(), cfg.Retention.TTLDuration(), asm, uploads, logger, m)
	stopSweeper, err := sweeper.Start(cfg.Retention.Schedule)
	if err != nil {
		logger.Fatal("start retention", zap.Error(err))
	}
	defer stopSweeper()

	handler := uploadhttp.New(uploadhttp.Deps{
		Uploads:       uploads,
		Sweeper:       sweeper,
		Metrics:       m,
		Logger:        logger,
		DataDir:       store.Root(),
		MaxChunkBytes: cfg.MaxChunkBytes,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Сценарий graceful shutdown при получении SIGTERM/SIGINT.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("upload service listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("upload_dir", store.Root()),
		zap.String("retention_schedule", cfg.Retention.Schedule),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("listen", zap.Error(err))
	}
	<-shutdownDone
}
