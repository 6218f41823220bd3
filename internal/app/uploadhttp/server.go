package uploadhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sir_venger/chunk_lite/internal/logging"
	"github.com/sir_venger/chunk_lite/internal/metrics"
	"github.com/sir_venger/chunk_lite/internal/retention"
	"github.com/sir_venger/chunk_lite/internal/usecase/uploadsvc"
	"github.com/sir_venger/chunk_lite/pkg/uploadproto"
)

const (
	// multipartOverhead — запас на поля формы и заголовки частей сверх самой части.
	multipartOverhead = 1 << 20
	// multipartMemory — сколько тела держим в памяти, остальное multipart пишет во временные файлы.
	multipartMemory = 8 << 20
)

type Deps struct {
	Uploads       uploadsvc.Service
	Sweeper       *retention.Sweeper
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
	DataDir       string
	MaxChunkBytes int64
}

// Server serves the chunked upload HTTP API.
type Server struct {
	Deps
}

// New создаёт HTTP-обработчик загрузок.
func New(deps Deps) http.Handler {
	deps.Logger = logging.OrNop(deps.Logger)
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	srv := &Server{Deps: deps}

	return srv.routes()
}

// routes регистрирует обработчики загрузки, статуса, здоровья и GC.
func (a *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)

	r.Post(uploadproto.UploadChunkPath, a.uploadChunk)
	r.Get("/api/upload-status/{uploadId}", a.uploadStatus)
	r.Post("/api/upload-combine/{uploadId}", a.combine)

	r.Get("/health", a.health)
	r.Handle("/metrics", a.Metrics.Handler())
	r.Post("/admin/gc", a.gcOnce)

	return r
}

func (a *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()

		next.ServeHTTP(ww, r)

		a.Logger.Debug("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", time.Since(started)),
		)
	})
}
