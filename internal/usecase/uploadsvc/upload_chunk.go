package uploadsvc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sir_venger/chunk_lite/internal/models"
)

// UploadChunk сохраняет часть, гарантирует наличие метаданных и, если на диске
// лежат все части, запускает сборку. Сборка по одной загрузке выполняется не
// более одного раза; конкурирующие вызовы дожидаются её результата.
func (s *Uploads) UploadChunk(ctx context.Context, req models.ChunkUpload, payload io.Reader) (models.ChunkResult, error) {
	if err := s.validate(req); err != nil {
		return models.ChunkResult{}, err
	}
	up, stored, err := s.storeChunk(ctx, req, payload)
	if err != nil {
		return models.ChunkResult{}, err
	}
	s.Metrics.ChunksStored.Inc()

	res := models.ChunkResult{
		ChunkIndex:     req.ChunkIndex,
		UploadedChunks: stored,
	}
	if stored != up.TotalChunks {
		return res, nil
	}

	combined, err := s.complete(ctx, up)
	if err != nil {
		return models.ChunkResult{}, err
	}

	res.IsComplete = true
	res.OutputPath = combined.OutputPath

	return res, nil
}

// storeChunk пишет метаданные и часть под разделяемой блокировкой загрузки,
// чтобы sweeper не удалил каталог посреди записи.
func (s *Uploads) storeChunk(ctx context.Context, req models.ChunkUpload, payload io.Reader) (models.Upload, int, error) {
	unlock := s.locks.RLock(req.UploadID)
	defer unlock()

	// Заявленный total проверяется только для новой загрузки: у существующей
	// действует сохранённая форма, а отличающаяся декларация игнорируется.
	if _, err := s.Store.ReadMetadata(req.UploadID); errors.Is(err, models.ErrNotFound) && req.ChunkIndex >= req.TotalChunks {
		return models.Upload{}, 0, models.Invalid("chunk index %d out of range [0, %d)", req.ChunkIndex, req.TotalChunks)
	}

	up, _, err := s.Store.EnsureMetadata(req.UploadID, req.FileName, req.TotalChunks)
	if err != nil {
		return models.Upload{}, 0, err
	}
	if req.ChunkIndex >= up.TotalChunks {
		return models.Upload{}, 0, models.Invalid("chunk index %d out of range [0, %d)", req.ChunkIndex, up.TotalChunks)
	}

	stored, err := s.Store.StoreChunk(ctx, req.UploadID, req.ChunkIndex, payload)
	if err != nil {
		if errors.Is(err, models.ErrStorage) {
			s.Logger.Error("chunk write failed",
				zap.String("upload_id", req.UploadID),
				zap.Int("chunk_index", req.ChunkIndex),
				zap.Error(err),
			)
		}
		return models.Upload{}, 0, err
	}
	return up, stored, nil
}

func (s *Uploads) validate(req models.ChunkUpload) error {
	err := s.Validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return models.Invalid("%s failed %q check", fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %w", models.ErrInvalidRequest, err)
}
