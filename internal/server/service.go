// Package server exposes the jobs and feedback services over HTTP and a
// gRPC health endpoint.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/export"
	"github.com/joseph-ayodele/cv-autofill/internal/feedback"
	"github.com/joseph-ayodele/cv-autofill/internal/jobs"
	"github.com/joseph-ayodele/cv-autofill/internal/logger"
)

// Operator identity headers. Authentication happens in front of this service.
const (
	HeaderUserID   = "X-User-ID"
	HeaderTenantID = "X-Tenant-ID"
)

// Pinger is satisfied by *repository.DB.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

type Config struct {
	MaxUploadMB    int
	RequestTimeout time.Duration
	DefaultLocale  string
}

func ConfigFrom(cfg *common.Config) Config {
	return Config{
		MaxUploadMB:    cfg.Server.MaxUploadMB,
		RequestTimeout: cfg.Server.RequestTimeout,
		DefaultLocale:  cfg.Locale,
	}
}

type Server struct {
	jobs     *jobs.Service
	feedback *feedback.Service
	export   *export.Service
	db       Pinger
	cfg      Config
	logger   *zap.Logger
}

func New(js *jobs.Service, fb *feedback.Service, ex *export.Service, db Pinger, cfg Config, log *zap.Logger) *Server {
	return &Server{
		jobs:     js,
		feedback: fb,
		export:   ex,
		db:       db,
		cfg:      cfg,
		logger:   logger.OrNop(log).Named("http"),
	}
}

// Router builds the chi router with every route under /api/v1.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestContext)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		}
		r.Get("/healthz", s.handleHealth)

		r.Post("/jobs", s.handleSubmit)
		r.Get("/jobs/{id}", s.handleStatus)
		r.Post("/jobs/{id}/confirm", s.handleConfirm)

		r.Post("/corrections", s.handleCorrection)
		r.Post("/corrections/batch", s.handleCorrectionBatch)

		r.Post("/segments/assignments", s.handleAssignment)
		r.Post("/segments/suggestions", s.handleSuggestions)
		r.Post("/segments/assignments/{id}/use", s.handleSuggestionUsed)

		r.Get("/metrics/fields", s.handleFieldMetrics)
		r.Get("/metrics/problematic", s.handleProblematic)

		r.Post("/dictionary/synonyms", s.handleSynonym)
		r.Post("/dictionary/aliases", s.handleAlias)
		r.Post("/dictionary/import", s.handleDictionaryImport)

		r.Get("/export/feedback.xlsx", s.handleExport)
	})
	return r
}

// requestContext moves request id, operator and locale into the context.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = common.WithRequestID(ctx, middleware.GetReqID(ctx))
		ctx = common.WithLocale(ctx, common.ResolveLocale(r.Header.Get("Accept-Language"), s.cfg.DefaultLocale))
		ctx = common.WithOperator(ctx, common.Operator{
			UserID:   r.Header.Get(HeaderUserID),
			TenantID: r.Header.Get(HeaderTenantID),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http.request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.HealthCheck(r.Context(), 2*time.Second); err != nil {
			s.logger.Warn("http.health.db_failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
