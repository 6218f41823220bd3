package uploadhttp

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/sir_venger/chunk_lite/internal/models"
	"github.com/sir_venger/chunk_lite/pkg/uploadproto"
)

// chunkRequest содержит разобранные параметры загрузки части и её содержимое.
type chunkRequest struct {
	models.ChunkUpload
	payload multipart.File
}

func (c *chunkRequest) Close() error {
	if c.payload == nil {
		return nil
	}
	return c.payload.Close()
}

var errMissingParams = models.Invalid(uploadproto.MsgMissingParams)

// newChunkRequest парсит query-параметры и multipart-тело.
// uploadId и chunkIndex приходят в query, fileName и totalChunks — полями формы.
func newChunkRequest(r *http.Request, maxMemory int64) (*chunkRequest, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, models.Invalid("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, models.Invalid("malformed multipart body: %v", err)
	}

	q := r.URL.Query()
	uploadID := strings.TrimSpace(q.Get(uploadproto.QueryUploadID))
	idxStr := strings.TrimSpace(q.Get(uploadproto.QueryChunkIndex))
	fileName := strings.TrimSpace(r.FormValue(uploadproto.FormFileName))
	totalStr := strings.TrimSpace(r.FormValue(uploadproto.FormTotalChunks))

	file, _, err := r.FormFile(uploadproto.FormFile)
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		return nil, models.Invalid("read file part: %v", err)
	}

	if uploadID == "" || idxStr == "" || fileName == "" || totalStr == "" || file == nil {
		if file != nil {
			_ = file.Close()
		}
		return nil, errMissingParams
	}

	req := &chunkRequest{payload: file}
	req.UploadID = uploadID
	req.FileName = fileName

	var ok bool
	if req.ChunkIndex, ok = parseDecimal(idxStr); !ok {
		_ = req.Close()
		return nil, models.Invalid("chunkIndex must be a non-negative integer")
	}
	if req.TotalChunks, ok = parseDecimal(totalStr); !ok || req.TotalChunks == 0 {
		_ = req.Close()
		return nil, models.Invalid("totalChunks must be a positive integer")
	}

	return req, nil
}

// parseDecimal принимает только каноничную запись: без знака и ведущих нулей.
func parseDecimal(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || strconv.Itoa(n) != s {
		return 0, false
	}
	return n, true
}
