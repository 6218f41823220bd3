package uploadhttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sir_venger/chunk_lite/internal/models"
	"github.com/sir_venger/chunk_lite/pkg/httperrors"
	"github.com/sir_venger/chunk_lite/pkg/uploadproto"
)

// uploadStatus отдаёт состояние загрузки без побочных эффектов.
func (a *Server) uploadStatus(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadId")

	st, err := a.Uploads.Status(r.Context(), uploadID)
	if err != nil {
		a.writeError(w, r, err, uploadproto.MsgStatusServerError)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, uploadproto.StatusResponse{
		Success:        true,
		FileName:       st.FileName,
		TotalChunks:    st.TotalChunks,
		UploadedChunks: st.UploadedChunks,
		IsComplete:     st.IsComplete,
		UploadID:       st.UploadID,
		MissingChunks:  st.MissingChunks,
		Combined:       st.State == models.StateDone,
		State:          string(st.State),
	})
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
