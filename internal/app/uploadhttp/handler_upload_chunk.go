package uploadhttp

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/sir_venger/chunk_lite/pkg/httperrors"
	"github.com/sir_venger/chunk_lite/pkg/uploadproto"
)

// uploadChunk принимает одну часть и сообщает, собран ли файл.
func (a *Server) uploadChunk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxChunkBytes+multipartOverhead)

	req, err := newChunkRequest(r, multipartMemory)
	if err != nil {
		a.writeError(w, r, err, uploadproto.MsgChunkServerError)
		return
	}
	defer req.Close()
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	res, err := a.Uploads.UploadChunk(r.Context(), req.ChunkUpload, req.payload)
	if err != nil {
		a.writeError(w, r, err, uploadproto.MsgChunkServerError)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, uploadproto.ChunkResponse{
		Success:    true,
		ChunkIndex: res.ChunkIndex,
		IsComplete: res.IsComplete,
		Message:    uploadproto.MsgChunkUploaded,
	})
}

func (a *Server) writeError(w http.ResponseWriter, r *http.Request, err error, serverMsg string) {
	if httperrors.Status(err) >= http.StatusInternalServerError {
		a.Logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
			zap.Error(err),
		)
	}
	httperrors.Write(w, err, serverMsg)
}
