package uploadsvc

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sir_venger/chunk_lite/internal/metrics"
	"github.com/sir_venger/chunk_lite/internal/models"
)

// Combine принудительно запускает сборку по сохранённым метаданным.
func (s *Uploads) Combine(ctx context.Context, uploadID string) (models.CombineResult, error) {
	up, err := s.Store.ReadMetadata(uploadID)
	if err != nil {
		return models.CombineResult{}, err
	}
	return s.complete(ctx, up)
}

// complete переводит загрузку pending -> running -> done.
//
// Одновременные триггеры одной загрузки схлопываются singleflight'ом, а
// последовательные сериализуются мьютексом загрузки и видят маркер done,
// поэтому физическая склейка выполняется один раз.
func (s *Uploads) complete(ctx context.Context, up models.Upload) (models.CombineResult, error) {
	// Сборка общая для всех ждущих, отмена одного запроса её не прерывает.
	combineCtx := context.WithoutCancel(ctx)

	v, err, shared := s.flights.Do(up.UploadID, func() (any, error) {
		unlock := s.locks.Lock(up.UploadID)
		defer unlock()

		if res, ok := s.Assembler.Completed(up.UploadID); ok {
			s.Metrics.Combines.WithLabelValues(metrics.ResultSkipped).Inc()
			return res, nil
		}

		s.setRunning(up.UploadID, true)
		defer s.setRunning(up.UploadID, false)

		started := time.Now()
		res, err := s.Assembler.Combine(combineCtx, up.UploadID, up.FileName, up.TotalChunks)
		s.Metrics.CombineDuration.Observe(time.Since(started).Seconds())
		if err != nil {
			s.recordFailure(up, err)
			return nil, err
		}

		s.Metrics.Combines.WithLabelValues(metrics.ResultOK).Inc()
		return res, nil
	})
	if err != nil {
		return models.CombineResult{}, err
	}
	if shared {
		s.Logger.Debug("combine result shared with concurrent trigger", zap.String("upload_id", up.UploadID))
	}

	return v.(models.CombineResult), nil
}

func (s *Uploads) recordFailure(up models.Upload, err error) {
	var missing *models.MissingChunkError
	if errors.As(err, &missing) {
		// Счётчик частей уже совпал с total, значит на диске рассогласование.
		s.Metrics.Combines.WithLabelValues(metrics.ResultMissing).Inc()
		s.Logger.Error("combine aborted: chunk missing after completion check",
			zap.String("upload_id", up.UploadID),
			zap.Int("chunk_index", missing.Index),
			zap.Int("total_chunks", up.TotalChunks),
		)
		return
	}

	s.Metrics.Combines.WithLabelValues(metrics.ResultError).Inc()
	s.Logger.Error("combine failed",
		zap.String("upload_id", up.UploadID),
		zap.String("file_name", up.FileName),
		zap.Error(err),
	)
}

func (s *Uploads) setRunning(uploadID string, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if running {
		s.running[uploadID] = struct{}{}
		return
	}
	delete(s.running, uploadID)
}

func (s *Uploads) isRunning(uploadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[uploadID]
	return ok
}
