// Package chunkstore хранит части загрузок и их метаданные на локальном диске.
//
// Раскладка каталога:
//
//	<root>/chunks/<uploadId>/chunk-<idx>    — содержимое части
//	<root>/chunks/<uploadId>/metadata.json  — метаданные, пишутся один раз
//	<root>/<fileName>                       — собранные файлы
package chunkstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sir_venger/chunk_lite/internal/logging"
	"github.com/sir_venger/chunk_lite/internal/models"
)

const (
	chunksDirName       = "chunks"
	chunkFilePrefix     = "chunk-"
	chunkFilenameFormat = chunkFilePrefix + "%d"
)

// Store — файловое хранилище частей. Состояния между вызовами не держит.
type Store struct {
	root      string
	chunksDir string
	logger    *zap.Logger
}

// New создаёт хранилище поверх root и гарантирует наличие каталога chunks.
func New(root string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root is empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	chunksDir := filepath.Join(abs, chunksDirName)
	if err := os.MkdirAll(chunksDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", models.ErrStorage, chunksDir, err)
	}

	return &Store{
		root:      abs,
		chunksDir: chunksDir,
		logger:    logging.OrNop(logger),
	}, nil
}

// Root возвращает корень, в котором лежат собранные файлы.
func (s *Store) Root() string { return s.root }

// ChunksDir возвращает каталог с пространствами имён загрузок.
func (s *Store) ChunksDir() string { return s.chunksDir }

// UploadDir возвращает каталог конкретной загрузки.
func (s *Store) UploadDir(uploadID string) string {
	return filepath.Join(s.chunksDir, uploadID)
}

func (s *Store) chunkPath(uploadID string, idx int) string {
	return filepath.Join(s.UploadDir(uploadID), fmt.Sprintf(chunkFilenameFormat, idx))
}

// StoreChunk атомарно сохраняет часть idx загрузки uploadID и возвращает число частей на диске.
// Повторная запись того же индекса заменяет прежние байты (побеждает последний).
func (s *Store) StoreChunk(ctx context.Context, uploadID string, idx int, r io.Reader) (int, error) {
	if err := ValidateUploadID(uploadID); err != nil {
		return 0, err
	}
	if idx < 0 {
		return 0, models.Invalid("chunk index must be non-negative")
	}
	if r == nil {
		return 0, models.Invalid("chunk payload is missing")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	dir := s.UploadDir(uploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("%w: create upload dir: %w", models.ErrStorage, err)
	}

	// Временное имя начинается с точки и не попадает под подсчёт частей.
	tmp := filepath.Join(dir, fmt.Sprintf(".%s%d.%s.tmp", chunkFilePrefix, idx, uuid.NewString()))
	n, err := writeSynced(tmp, r)
	if err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("%w: write chunk %d: %w", models.ErrStorage, idx, err)
	}
	if n == 0 {
		_ = os.Remove(tmp)
		return 0, models.Invalid("chunk payload is empty")
	}

	if err := os.Rename(tmp, s.chunkPath(uploadID, idx)); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("%w: commit chunk %d: %w", models.ErrStorage, idx, err)
	}

	s.logger.Debug("chunk stored",
		zap.String("upload_id", uploadID),
		zap.Int("chunk_index", idx),
		zap.Int64("size", n),
	)

	return s.CountStoredChunks(uploadID)
}

// CountStoredChunks считает части по содержимому каталога, а не по счётчику в памяти.
// Для неизвестной загрузки возвращает 0.
func (s *Store) CountStoredChunks(uploadID string) (int, error) {
	idxs, err := s.ChunkIndexes(uploadID)
	if err != nil {
		return 0, err
	}
	return len(idxs), nil
}

// ChunkIndexes возвращает отсортированные индексы сохранённых частей.
func (s *Store) ChunkIndexes(uploadID string) ([]int, error) {
	if err := ValidateUploadID(uploadID); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.UploadDir(uploadID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list chunks: %w", models.ErrStorage, err)
	}

	idxs := make([]int, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if idx, ok := parseChunkName(e.Name()); ok {
			idxs = append(idxs, idx)
		}
	}
	sort.Ints(idxs)

	return idxs, nil
}

// OpenChunk открывает часть на чтение. Отсутствующая часть — ErrNotFound.
func (s *Store) OpenChunk(uploadID string, idx int) (io.ReadCloser, error) {
	f, err := os.Open(s.chunkPath(uploadID, idx))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: chunk %d", models.ErrNotFound, idx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open chunk %d: %w", models.ErrStorage, idx, err)
	}
	return f, nil
}

// parseChunkName принимает только каноничное имя chunk-<n>, без ведущих нулей и знаков.
func parseChunkName(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, chunkFilePrefix)
	if !ok || rest == "" {
		return 0, false
	}
	idx, err := strconv.Atoi(rest)
	if err != nil || idx < 0 || strconv.Itoa(idx) != rest {
		return 0, false
	}
	return idx, true
}

func writeSynced(path string, r io.Reader) (n int64, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if n, err = io.Copy(f, r); err != nil {
		return n, err
	}

	return n, f.Sync()
}

// WriteFileAtomic пишет data во временный файл рядом с path и переименовывает его.
// Читатель видит либо старое содержимое, либо новое целиком.
func WriteFileAtomic(path string, data []byte) error {
	dir, name := filepath.Split(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", name, uuid.NewString()))

	if _, err := writeSynced(tmp, bytes.NewReader(data)); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
