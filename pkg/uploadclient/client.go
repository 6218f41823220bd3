// Package uploadclient — Go-клиент протокола загрузки файлов частями.
package uploadclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sir_venger/chunk_lite/pkg/uploadproto"
)

const (
	DefaultChunkSize = 5 << 20
	DefaultParallel  = 4
)

// ChunkRequest — одна часть загрузки.
type ChunkRequest struct {
	UploadID    string
	ChunkIndex  int
	FileName    string
	TotalChunks int
	Data        io.Reader
}

// FileUpload описывает загрузку целого файла частями.
type FileUpload struct {
	UploadID  string // пустой — сгенерировать
	FileName  string
	Reader    io.ReaderAt
	Size      int64
	ChunkSize int64
	Parallel  int
}

// FileResult — итог загрузки файла.
type FileResult struct {
	UploadID    string
	TotalChunks int
	IsComplete  bool
}

// APIError — ответ сервера с неуспешным статусом.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upload api: %d %s", e.StatusCode, e.Message)
}

type Client interface {
	// UploadChunk Отправить одну часть
	UploadChunk(ctx context.Context, req ChunkRequest) (uploadproto.ChunkResponse, error)
	// Status Запросить состояние загрузки
	Status(ctx context.Context, uploadID string) (uploadproto.StatusResponse, error)
	// Combine Принудительно собрать загрузку
	Combine(ctx context.Context, uploadID string) (uploadproto.CombineResponse, error)
	// UploadFile Разбить файл на части и загрузить их параллельно
	UploadFile(ctx context.Context, f FileUpload) (FileResult, error)
}

type Option func(*httpClient)

// WithHTTPClient подменяет http.Client, например на клиент httptest-сервера.
func WithHTTPClient(c *http.Client) Option {
	return func(h *httpClient) { h.c = c }
}

// WithProgress включает ASCII-прогресс загрузки файла в out.
func WithProgress(out io.Writer) Option {
	return func(h *httpClient) { h.progress = out }
}

type httpClient struct {
	base     string
	c        *http.Client
	progress io.Writer
}

// New создаёт HTTP-клиент для сервиса по адресу baseURL.
func New(baseURL string, opts ...Option) Client {
	h := &httpClient{
		base: strings.TrimRight(baseURL, "/"),
		c:    &http.Client{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// UploadChunk стримит часть multipart-формой, не буферизуя её целиком.
func (h *httpClient) UploadChunk(ctx context.Context, req ChunkRequest) (uploadproto.ChunkResponse, error) {
	q := url.Values{}
	q.Set(uploadproto.QueryUploadID, req.UploadID)
	q.Set(uploadproto.QueryChunkIndex, strconv.Itoa(req.ChunkIndex))
	u := h.base + uploadproto.UploadChunkPath + "?" + q.Encode()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		_ = pw.CloseWithError(writeChunkForm(mw, req))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return uploadproto.ChunkResponse{}, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var out uploadproto.ChunkResponse
	if err := h.do(httpReq, &out); err != nil {
		return uploadproto.ChunkResponse{}, err
	}
	return out, nil
}

func writeChunkForm(mw *multipart.Writer, req ChunkRequest) error {
	if err := mw.WriteField(uploadproto.FormFileName, req.FileName); err != nil {
		return err
	}
	if err := mw.WriteField(uploadproto.FormTotalChunks, strconv.Itoa(req.TotalChunks)); err != nil {
		return err
	}
	if req.Data != nil {
		part, err := mw.CreateFormFile(uploadproto.FormFile, req.FileName)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, req.Data); err != nil {
			return err
		}
	}
	return mw.Close()
}

// Status запрашивает состояние загрузки.
func (h *httpClient) Status(ctx context.Context, uploadID string) (uploadproto.StatusResponse, error) {
	u := h.base + fmt.Sprintf(uploadproto.UploadStatusPath, url.PathEscape(uploadID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return uploadproto.StatusResponse{}, err
	}

	var out uploadproto.StatusResponse
	if err := h.do(req, &out); err != nil {
		return uploadproto.StatusResponse{}, err
	}
	return out, nil
}

// Combine просит сервер собрать загрузку по сохранённым метаданным.
func (h *httpClient) Combine(ctx context.Context, uploadID string) (uploadproto.CombineResponse, error) {
	u := h.base + fmt.Sprintf(uploadproto.UploadCombinePath, url.PathEscape(uploadID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return uploadproto.CombineResponse{}, err
	}

	var out uploadproto.CombineResponse
	if err := h.do(req, &out); err != nil {
		return uploadproto.CombineResponse{}, err
	}
	return out, nil
}

// UploadFile режет файл на части по ChunkSize и отправляет их не более чем Parallel за раз.
func (h *httpClient) UploadFile(ctx context.Context, f FileUpload) (FileResult, error) {
	if f.Size <= 0 {
		return FileResult{}, fmt.Errorf("file size must be > 0")
	}
	if f.ChunkSize <= 0 {
		f.ChunkSize = DefaultChunkSize
	}
	if f.Parallel <= 0 {
		f.Parallel = DefaultParallel
	}
	if f.UploadID == "" {
		f.UploadID = uuid.NewString()
	}

	total := int((f.Size + f.ChunkSize - 1) / f.ChunkSize)
	progress := newUploadProgress(h.progress, f.FileName, f.Size, total)
	progress.Start()

	completed := make([]bool, total)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(f.Parallel)

	for idx := 0; idx < total; idx++ {
		off := int64(idx) * f.ChunkSize
		n := min(f.ChunkSize, f.Size-off)

		eg.Go(func() error {
			var data io.Reader = io.NewSectionReader(f.Reader, off, n)
			if progress != nil {
				data = io.TeeReader(data, progress)
			}
			res, err := h.UploadChunk(egCtx, ChunkRequest{
				UploadID:    f.UploadID,
				ChunkIndex:  idx,
				FileName:    f.FileName,
				TotalChunks: total,
				Data:        data,
			})
			if err != nil {
				return fmt.Errorf("chunk %d: %w", idx, err)
			}
			completed[idx] = res.IsComplete
			progress.ChunkDone()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		progress.Fail(err)
		return FileResult{}, err
	}

	out := FileResult{UploadID: f.UploadID, TotalChunks: total}
	for _, c := range completed {
		out.IsComplete = out.IsComplete || c
	}
	progress.Finish(out.IsComplete)
	return out, nil
}

func (h *httpClient) do(req *http.Request, out any) error {
	resp, err := h.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		var body uploadproto.ErrorResponse
		b, _ := io.ReadAll(resp.Body)
		if jerr := json.Unmarshal(b, &body); jerr != nil || body.Message == "" {
			body.Message = strings.TrimSpace(string(b))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: body.Message}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// IsNotFound сообщает, что сервер не знает такую загрузку.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
