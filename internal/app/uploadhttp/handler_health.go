package uploadhttp

import (
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"

	"github.com/sir_venger/chunk_lite/pkg/httperrors"
)

// healthStats — payload ответа /health.
type healthStats struct {
	OK         bool  `json:"ok"`
	TotalBytes int64 `json:"total_bytes"`
}

// health возвращает суммарный размер каталога загрузок.
func (a *Server) health(w http.ResponseWriter, r *http.Request) {
	var total int64
	err := filepath.WalkDir(a.DataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// файл могли переименовать или удалить во время обхода
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		total += info.Size()

		return nil
	})

	if err != nil {
		httperrors.WriteJSON(w, http.StatusInternalServerError, healthStats{OK: false})
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, healthStats{
		OK:         true,
		TotalBytes: total,
	})
}
