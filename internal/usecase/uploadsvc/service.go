package uploadsvc

import (
	"context"
	"io"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sir_venger/chunk_lite/internal/logging"
	"github.com/sir_venger/chunk_lite/internal/metrics"
	"github.com/sir_venger/chunk_lite/internal/models"
)

type (
	// ChunkStore хранилище частей и метаданных загрузок
	ChunkStore interface {
		StoreChunk(ctx context.Context, uploadID string, idx int, r io.Reader) (int, error)
		ChunkIndexes(uploadID string) ([]int, error)
		EnsureMetadata(uploadID, fileName string, totalChunks int) (models.Upload, bool, error)
		ReadMetadata(uploadID string) (models.Upload, error)
	}

	// Assembler склейка частей в итоговый файл
	Assembler interface {
		Combine(ctx context.Context, uploadID, fileName string, totalChunks int) (models.CombineResult, error)
		Completed(uploadID string) (models.CombineResult, bool)
		Result(uploadID string) (models.CombineResult, bool, error)
	}

	// Service объединяет приём частей, запуск сборки и запрос статуса.
	Service interface {
		UploadChunk(ctx context.Context, req models.ChunkUpload, payload io.Reader) (models.ChunkResult, error)
		Status(ctx context.Context, uploadID string) (models.UploadStatus, error)
		Combine(ctx context.Context, uploadID string) (models.CombineResult, error)
	}
)

type Deps struct {
	Store     ChunkStore
	Assembler Assembler
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Validate  *validator.Validate
}

type Uploads struct {
	Deps

	locks   *keyedMutex
	flights singleflight.Group

	mu      sync.Mutex
	running map[string]struct{}
}

// New конструирует сервис загрузок с заданными зависимостями.
func New(deps Deps) *Uploads {
	deps.Logger = logging.OrNop(deps.Logger)
	if deps.Validate == nil {
		deps.Validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	return &Uploads{
		Deps:    deps,
		locks:   newKeyedMutex(),
		running: make(map[string]struct{}),
	}
}

var _ Service = (*Uploads)(nil)

// LockUpload эксклюзивно блокирует загрузку: пока блокировка держится, части не
// принимаются и сборка не идёт. Нужна sweeper'у для удаления каталога.
func (s *Uploads) LockUpload(uploadID string) (unlock func()) {
	return s.locks.Lock(uploadID)
}
