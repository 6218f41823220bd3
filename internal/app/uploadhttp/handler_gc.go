package uploadhttp

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sir_venger/chunk_lite/pkg/httperrors"
	"github.com/sir_venger/chunk_lite/pkg/uploadproto"
)

type gcResponse struct {
	Removed int `json:"removed"`
}

// gcOnce вручную запускает сбор старых незавершённых загрузок.
func (a *Server) gcOnce(w http.ResponseWriter, r *http.Request) {
	if a.Sweeper == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	n, err := a.Sweeper.SweepOnce(time.Now())
	if err != nil {
		a.Logger.Error("manual gc failed", zap.String("request_id", requestID(r)), zap.Error(err))
		httperrors.WriteJSON(w, http.StatusInternalServerError, uploadproto.ErrorResponse{
			Success: false,
			Message: uploadproto.MsgGCServerError,
		})
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, gcResponse{Removed: n})
}
