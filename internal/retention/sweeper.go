// Package retention удаляет брошенные незавершённые загрузки.
// Ядро загрузок само ничего не чистит: sweeper запускается вручную через
// /admin/gc или по расписанию cron, если оно задано в конфигурации.
package retention

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sir_venger/chunk_lite/internal/logging"
	"github.com/sir_venger/chunk_lite/internal/metrics"
	"github.com/sir_venger/chunk_lite/internal/models"
)

// CompletionSource сообщает, собрана ли загрузка.
type CompletionSource interface {
	Result(uploadID string) (models.CombineResult, bool, error)
}

// UploadLocker даёт эксклюзивную блокировку загрузки: пока она держится,
// части не пишутся и сборка не идёт.
type UploadLocker interface {
	LockUpload(uploadID string) (unlock func())
}

type Sweeper struct {
	chunksDir string
	ttl       time.Duration
	done      CompletionSource
	locks     UploadLocker
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New создаёт sweeper для каталога chunks. Загрузки без активности дольше ttl
// и без маркера сборки удаляются. locks может быть nil, если параллельных
// писателей нет.
func New(chunksDir string, ttl time.Duration, done CompletionSource, locks UploadLocker, logger *zap.Logger, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		chunksDir: chunksDir,
		ttl:       ttl,
		done:      done,
		locks:     locks,
		logger:    logging.OrNop(logger),
		metrics:   m,
	}
}

// SweepOnce проходит по каталогу chunks и возвращает число удалённых загрузок.
func (s *Sweeper) SweepOnce(now time.Time) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(s.chunksDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		uploadID := e.Name()
		pdir := filepath.Join(s.chunksDir, uploadID)
		if _, ok := s.stale(pdir, now); !ok {
			continue
		}

		ok, err := s.removeIfStale(uploadID, pdir, now)
		if err != nil {
			s.logger.Error("retention: remove stale upload failed",
				zap.String("upload_id", uploadID), zap.Error(err))
			continue
		}
		if ok {
			removed++
		}
	}

	if s.metrics != nil && removed > 0 {
		s.metrics.SweptUploads.Add(float64(removed))
	}

	return removed, nil
}

// Start запускает SweepOnce по cron-расписанию. Пустое расписание — no-op.
func (s *Sweeper) Start(schedule string) (stop func(), err error) {
	if schedule == "" {
		return func() {}, nil
	}

	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	_, err = c.AddFunc(schedule, func() {
		n, err := s.SweepOnce(time.Now())
		if err != nil {
			s.logger.Error("retention sweep failed", zap.Error(err))
			return
		}
		s.logger.Info("retention sweep finished", zap.Int("removed", n))
	})
	if err != nil {
		return nil, err
	}
	c.Start()

	return func() {
		<-c.Stop().Done()
	}, nil
}

// removeIfStale перепроверяет загрузку под её блокировкой и удаляет каталог.
// Часть, записанная между первым взглядом и блокировкой, обновит время активности.
func (s *Sweeper) removeIfStale(uploadID, pdir string, now time.Time) (bool, error) {
	if s.locks != nil {
		unlock := s.locks.LockUpload(uploadID)
		defer unlock()
	}

	lastActive, ok := s.stale(pdir, now)
	if !ok {
		return false, nil
	}

	if s.done != nil {
		_, combined, err := s.done.Result(uploadID)
		if err != nil {
			s.logger.Warn("retention: cannot read combine marker, keeping upload",
				zap.String("upload_id", uploadID), zap.Error(err))
			return false, nil
		}
		if combined {
			return false, nil
		}
	}

	if err := os.RemoveAll(pdir); err != nil {
		return false, err
	}
	s.logger.Info("retention: stale upload removed",
		zap.String("upload_id", uploadID), zap.Time("last_active", lastActive))

	return true, nil
}

func (s *Sweeper) stale(pdir string, now time.Time) (time.Time, bool) {
	lastActive, ok := lastActivity(pdir)
	if !ok {
		return time.Time{}, false
	}
	return lastActive, now.Sub(lastActive) >= s.ttl
}

// lastActivity — самое свежее mtime среди каталога загрузки и его файлов.
// metadata.json пишется один раз, поэтому активность видна по частям и по
// самому каталогу, mtime которого меняет каждый rename части.
func lastActivity(pdir string) (time.Time, bool) {
	fi, err := os.Stat(pdir)
	if err != nil {
		return time.Time{}, false
	}
	latest := fi.ModTime()

	entries, err := os.ReadDir(pdir)
	if err != nil {
		return time.Time{}, false
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			// файл могли удалить во время обхода
			continue
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest, true
}
