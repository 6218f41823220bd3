package uploadsvc

import (
	"context"

	"github.com/sir_venger/chunk_lite/internal/models"
)

// Status собирает состояние загрузки только по диску, ничего не меняя.
func (s *Uploads) Status(_ context.Context, uploadID string) (models.UploadStatus, error) {
	up, err := s.Store.ReadMetadata(uploadID)
	if err != nil {
		return models.UploadStatus{}, err
	}

	idxs, err := s.Store.ChunkIndexes(uploadID)
	if err != nil {
		return models.UploadStatus{}, err
	}

	present := make(map[int]struct{}, len(idxs))
	for _, idx := range idxs {
		present[idx] = struct{}{}
	}
	missing := make([]int, 0)
	for i := 0; i < up.TotalChunks; i++ {
		if _, ok := present[i]; !ok {
			missing = append(missing, i)
		}
	}

	st := models.UploadStatus{
		UploadID:       uploadID,
		FileName:       up.FileName,
		TotalChunks:    up.TotalChunks,
		UploadedChunks: len(idxs),
		IsComplete:     len(idxs) == up.TotalChunks,
		MissingChunks:  missing,
		State:          models.StatePending,
	}

	res, ok, err := s.Assembler.Result(uploadID)
	switch {
	case err != nil:
		return models.UploadStatus{}, err
	case ok:
		st.State = models.StateDone
		st.OutputPath = res.OutputPath
	case s.isRunning(uploadID):
		st.State = models.StateRunning
	}

	return st, nil
}
