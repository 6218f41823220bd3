package uploadhttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sir_venger/chunk_lite/pkg/httperrors"
	"github.com/sir_venger/chunk_lite/pkg/uploadproto"
)

// combine принудительно собирает загрузку. Повторный вызов после успешной сборки безопасен.
func (a *Server) combine(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadId")

	res, err := a.Uploads.Combine(r.Context(), uploadID)
	if err != nil {
		a.writeError(w, r, err, uploadproto.MsgCombineServerError)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, uploadproto.CombineResponse{
		Success:  true,
		UploadID: res.UploadID,
		FileName: res.FileName,
		Size:     res.Size,
		Message:  uploadproto.MsgUploadCombined,
	})
}
