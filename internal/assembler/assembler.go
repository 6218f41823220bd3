// Package assembler склеивает сохранённые части загрузки в итоговый файл.
package assembler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sir_venger/chunk_lite/internal/chunkstore"
	"github.com/sir_venger/chunk_lite/internal/logging"
	"github.com/sir_venger/chunk_lite/internal/models"
)

const (
	markerFileName = ".combined"
	copyBufferSize = 1 << 20
)

// Assembler читает части из chunkstore и владеет собранными файлами.
type Assembler struct {
	store  *chunkstore.Store
	logger *zap.Logger
}

// New создаёт сборщик поверх хранилища частей.
func New(store *chunkstore.Store, logger *zap.Logger) *Assembler {
	return &Assembler{
		store:  store,
		logger: logging.OrNop(logger),
	}
}

// OutputPath возвращает итоговый путь для fileName.
func (a *Assembler) OutputPath(fileName string) string {
	return filepath.Join(a.store.Root(), fileName)
}

func (a *Assembler) markerPath(uploadID string) string {
	return filepath.Join(a.store.UploadDir(uploadID), markerFileName)
}

// Result читает маркер завершённой сборки. ok=false, если сборки не было.
func (a *Assembler) Result(uploadID string) (res models.CombineResult, ok bool, err error) {
	b, err := os.ReadFile(a.markerPath(uploadID))
	if errors.Is(err, os.ErrNotExist) {
		return models.CombineResult{}, false, nil
	}
	if err != nil {
		return models.CombineResult{}, false, fmt.Errorf("%w: read combine marker: %w", models.ErrStorage, err)
	}
	if err := json.Unmarshal(b, &res); err != nil {
		return models.CombineResult{}, false, fmt.Errorf("%w: decode combine marker: %w", models.ErrStorage, err)
	}
	return res, true, nil
}

// Combine собирает части 0..totalChunks-1 строго по возрастанию индекса.
//
// Файл пишется во временный путь и переименовывается в итоговый только после
// полной записи, поэтому обрезанный файл под итоговым именем не появляется.
// Если сборка уже была и итоговый файл на месте, повторной склейки нет.
func (a *Assembler) Combine(ctx context.Context, uploadID, fileName string, totalChunks int) (models.CombineResult, error) {
	if err := chunkstore.ValidateUploadID(uploadID); err != nil {
		return models.CombineResult{}, err
	}
	if err := chunkstore.ValidateFileName(fileName); err != nil {
		return models.CombineResult{}, err
	}
	if totalChunks < 1 {
		return models.CombineResult{}, models.Invalid("total chunks must be > 0")
	}

	log := a.logger.With(zap.String("upload_id", uploadID), zap.String("file_name", fileName))

	if res, ok := a.Completed(uploadID); ok {
		log.Debug("upload already combined, skipping merge", zap.String("output_path", res.OutputPath))
		return res, nil
	}

	if err := a.checkChunks(uploadID, totalChunks); err != nil {
		return models.CombineResult{}, err
	}

	log.Info("combine started", zap.Int("total_chunks", totalChunks))
	started := time.Now()

	out := a.OutputPath(fileName)
	size, err := a.merge(ctx, uploadID, out, totalChunks)
	if err != nil {
		return models.CombineResult{}, err
	}

	res := models.CombineResult{
		UploadID:    uploadID,
		FileName:    fileName,
		OutputPath:  out,
		Size:        size,
		TotalChunks: totalChunks,
		CompletedAt: time.Now().UTC(),
	}
	if err := a.writeMarker(res); err != nil {
		return models.CombineResult{}, err
	}

	log.Info("combine finished",
		zap.String("output_path", out),
		zap.Int64("size", size),
		zap.Duration("took", time.Since(started)),
	)

	return res, nil
}

// Completed возвращает результат прошлой сборки, если итоговый файл на месте и его размер не менялся.
func (a *Assembler) Completed(uploadID string) (models.CombineResult, bool) {
	log := a.logger.With(zap.String("upload_id", uploadID))
	res, ok, err := a.Result(uploadID)
	if err != nil {
		log.Warn("combine marker unreadable, combining again", zap.Error(err))
		return models.CombineResult{}, false
	}
	if !ok {
		return models.CombineResult{}, false
	}

	fi, err := os.Stat(res.OutputPath)
	if err != nil || fi.Size() != res.Size {
		log.Warn("combined file missing or changed, combining again", zap.String("output_path", res.OutputPath))
		return models.CombineResult{}, false
	}
	return res, true
}

// checkChunks проверяет наличие всех частей до открытия выходного файла.
func (a *Assembler) checkChunks(uploadID string, totalChunks int) error {
	idxs, err := a.store.ChunkIndexes(uploadID)
	if err != nil {
		return err
	}

	present := make(map[int]struct{}, len(idxs))
	for _, idx := range idxs {
		present[idx] = struct{}{}
	}
	for i := 0; i < totalChunks; i++ {
		if _, ok := present[i]; !ok {
			return &models.MissingChunkError{UploadID: uploadID, Index: i}
		}
	}
	return nil
}

func (a *Assembler) merge(ctx context.Context, uploadID, out string, totalChunks int) (size int64, err error) {
	dir, name := filepath.Split(out)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.part", name, uuid.NewString()))

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("%w: create output: %w", models.ErrStorage, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		_ = f.Close()
		_ = os.Remove(tmp)
	}()

	bw := bufio.NewWriterSize(f, copyBufferSize)
	for i := 0; i < totalChunks; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		n, err := a.appendChunk(bw, uploadID, i)
		if err != nil {
			return 0, err
		}
		size += n
	}

	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("%w: flush output: %w", models.ErrStorage, err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("%w: sync output: %w", models.ErrStorage, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("%w: close output: %w", models.ErrStorage, err)
	}
	if err := os.Rename(tmp, out); err != nil {
		return 0, fmt.Errorf("%w: publish output: %w", models.ErrStorage, err)
	}
	committed = true

	return size, nil
}

func (a *Assembler) appendChunk(w io.Writer, uploadID string, idx int) (int64, error) {
	rc, err := a.store.OpenChunk(uploadID, idx)
	if errors.Is(err, models.ErrNotFound) {
		return 0, &models.MissingChunkError{UploadID: uploadID, Index: idx}
	}
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	n, err := io.Copy(w, rc)
	if err != nil {
		return n, fmt.Errorf("%w: append chunk %d: %w", models.ErrStorage, idx, err)
	}
	return n, nil
}

func (a *Assembler) writeMarker(res models.CombineResult) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if err := chunkstore.WriteFileAtomic(a.markerPath(res.UploadID), b); err != nil {
		return fmt.Errorf("%w: write combine marker: %w", models.ErrStorage, err)
	}
	return nil
}
