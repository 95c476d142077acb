package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quicksheet-ai/quicksheet/internal/common"
	"github.com/quicksheet-ai/quicksheet/internal/llm"
	"github.com/quicksheet-ai/quicksheet/internal/pipeline"
	"github.com/quicksheet-ai/quicksheet/internal/repository"
)

// Server exposes the extraction pipeline and the account ledger over HTTP.
type Server struct {
	cfg       common.ServerConfig
	accounts  repository.AccountRepository
	processor *pipeline.Processor
	editAgent *llm.EditAgent
	logger    *slog.Logger
	mux       *http.ServeMux
}

func New(
	cfg common.ServerConfig,
	accounts repository.AccountRepository,
	processor *pipeline.Processor,
	editAgent *llm.EditAgent,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		accounts:  accounts,
		processor: processor,
		editAgent: editAgent,
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /v1/signin", s.withRequestID(s.handleSignIn))
	s.mux.HandleFunc("GET /v1/account", s.withRequestID(s.handleGetAccount))
	s.mux.HandleFunc("POST /v1/extract", s.withRequestID(s.handleExtract))
	s.mux.HandleFunc("POST /v1/payment/confirm", s.withRequestID(s.handlePaymentConfirm))
	s.mux.HandleFunc("POST /v1/payment/receipt", s.withRequestID(s.handlePaymentReceipt))
	s.mux.HandleFunc("GET /v1/admin/receipts", s.withRequestID(s.requireAdmin(s.handleListPendingReceipts)))
	s.mux.HandleFunc("POST /v1/admin/receipts/approve", s.withRequestID(s.requireAdmin(s.handleApproveReceipt)))
	s.mux.HandleFunc("POST /v1/tables/edit", s.withRequestID(s.handleTableEdit))
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// withRequestID threads a request ID through the context and logs the
// request outcome.
func (s *Server) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := uuid.New().String()
		start := time.Now()
		ctx := common.WithRequestID(r.Context(), rid)
		next(w, r.WithContext(ctx))
		s.logger.Info("http.request",
			"req_id", rid,
			"method", r.Method,
			"path", r.URL.Path,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

// requireAdmin guards the receipt-review endpoints with basic auth when
// credentials are configured.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminUser == "" && s.cfg.AdminPass == "" {
			next(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Basic ") {
			s.unauthorized(w)
			return
		}
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
		if err != nil {
			s.unauthorized(w)
			return
		}
		creds := strings.SplitN(string(decoded), ":", 2)
		if len(creds) != 2 || creds[0] != s.cfg.AdminUser || creds[1] != s.cfg.AdminPass {
			s.unauthorized(w)
			return
		}
		next(w, r)
	}
}

func (s *Server) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="QuickSheet Admin"`)
	s.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "admin credentials required")
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("http.encode_error", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorBody{Code: code, Message: message})
}

// writeTaxonomyError maps the pipeline error taxonomy onto HTTP statuses.
func (s *Server) writeTaxonomyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrTrialExhausted):
		s.writeError(w, http.StatusForbidden, "TRIAL_EXHAUSTED", "free trial ended; upgrade to continue")
	case errors.Is(err, common.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, common.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, common.ErrUpstream):
		s.writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "the extraction model is unavailable; try again")
	case errors.Is(err, common.ErrMalformedJSON), errors.Is(err, common.ErrNoJSONFound):
		s.writeError(w, http.StatusUnprocessableEntity, "UNPARSEABLE", err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.mux,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http.serving", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http.shutdown")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
