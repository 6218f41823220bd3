package chunkstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sir_venger/chunk_lite/internal/models"
)

const metaFileName = "metadata.json"

func (s *Store) metaPath(uploadID string) string {
	return filepath.Join(s.UploadDir(uploadID), metaFileName)
}

// EnsureMetadata записывает метаданные загрузки, если их ещё нет, и возвращает действующую запись.
// Первый писатель побеждает: последующие вызовы ничего не меняют, даже если
// fileName или totalChunks отличаются. created сообщает, чья запись стала действующей.
func (s *Store) EnsureMetadata(uploadID, fileName string, totalChunks int) (up models.Upload, created bool, err error) {
	if err := ValidateUploadID(uploadID); err != nil {
		return models.Upload{}, false, err
	}
	if err := ValidateFileName(fileName); err != nil {
		return models.Upload{}, false, err
	}
	if totalChunks < 1 {
		return models.Upload{}, false, models.Invalid("total chunks must be > 0")
	}

	if existing, err := s.ReadMetadata(uploadID); err == nil {
		s.checkRedeclaration(existing, fileName, totalChunks)
		return existing, false, nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return models.Upload{}, false, err
	}

	dir := s.UploadDir(uploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.Upload{}, false, fmt.Errorf("%w: create upload dir: %w", models.ErrStorage, err)
	}

	up = models.Upload{
		FileName:    fileName,
		TotalChunks: totalChunks,
		UploadID:    uploadID,
		CreatedAt:   time.Now().UTC(),
	}
	b, err := json.MarshalIndent(up, "", "  ")
	if err != nil {
		return models.Upload{}, false, err
	}

	// Пишем полностью во временный файл и публикуем его через link:
	// link не перезаписывает существующий metadata.json, поэтому из
	// одновременных первых писателей выигрывает ровно один.
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", metaFileName, uuid.NewString()))
	defer os.Remove(tmp)

	if _, err := writeSynced(tmp, bytes.NewReader(b)); err != nil {
		return models.Upload{}, false, fmt.Errorf("%w: write metadata: %w", models.ErrStorage, err)
	}

	err = os.Link(tmp, s.metaPath(uploadID))
	switch {
	case err == nil:
		s.logger.Info("upload metadata created",
			zap.String("upload_id", uploadID),
			zap.String("file_name", fileName),
			zap.Int("total_chunks", totalChunks),
		)
		return up, true, nil
	case errors.Is(err, os.ErrExist):
		existing, rerr := s.ReadMetadata(uploadID)
		if rerr != nil {
			return models.Upload{}, false, rerr
		}
		s.checkRedeclaration(existing, fileName, totalChunks)
		return existing, false, nil
	default:
		return models.Upload{}, false, fmt.Errorf("%w: publish metadata: %w", models.ErrStorage, err)
	}
}

// ReadMetadata читает metadata.json. Нет каталога или файла — ErrNotFound.
func (s *Store) ReadMetadata(uploadID string) (models.Upload, error) {
	if err := ValidateUploadID(uploadID); err != nil {
		return models.Upload{}, err
	}

	// meta маленький, ReadFile достаточно.
	b, err := os.ReadFile(s.metaPath(uploadID))
	if errors.Is(err, os.ErrNotExist) {
		return models.Upload{}, fmt.Errorf("%w: %s", models.ErrNotFound, uploadID)
	}
	if err != nil {
		return models.Upload{}, fmt.Errorf("%w: read metadata: %w", models.ErrStorage, err)
	}

	var up models.Upload
	if err := json.Unmarshal(b, &up); err != nil {
		return models.Upload{}, fmt.Errorf("%w: decode metadata: %w", models.ErrStorage, err)
	}
	if up.UploadID == "" {
		up.UploadID = uploadID
	}

	return up, nil
}

func (s *Store) checkRedeclaration(existing models.Upload, fileName string, totalChunks int) {
	if existing.FileName == fileName && existing.TotalChunks == totalChunks {
		return
	}
	s.logger.Warn("upload re-declared with different shape, keeping first metadata",
		zap.String("upload_id", existing.UploadID),
		zap.String("stored_file_name", existing.FileName),
		zap.Int("stored_total_chunks", existing.TotalChunks),
		zap.String("file_name", fileName),
		zap.Int("total_chunks", totalChunks),
	)
}
