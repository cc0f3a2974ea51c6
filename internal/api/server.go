// Package api exposes the HTTP interface for the statements service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/LaazAlae/alaeautomates-backend/internal/config"
	"github.com/LaazAlae/alaeautomates-backend/internal/metrics"
	"github.com/LaazAlae/alaeautomates-backend/internal/review"
	"github.com/LaazAlae/alaeautomates-backend/internal/statements"
)

// Server wires HTTP handlers to the session store, queue and review registry.
type Server struct {
	router  chi.Router
	store   statements.SessionStore
	queue   statements.Queue
	reviews *review.Registry
	blobs   statements.BlobStore
	idGen   statements.IDGenerator
	hasher  statements.Hasher
	clock   statements.Clock
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	store statements.SessionStore,
	queue statements.Queue,
	reviews *review.Registry,
	blobs statements.BlobStore,
	idGen statements.IDGenerator,
	hasher statements.Hasher,
	clock statements.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		store:   store,
		queue:   queue,
		reviews: reviews,
		blobs:   blobs,
		idGen:   idGen,
		hasher:  hasher,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(cfg.RequestTimeout()))
	r.Use(metrics.Middleware)
	if cfg.RateLimit.Enabled {
		r.Use(rateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	r.Get("/", s.index)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/monthly-statements", func(r chi.Router) {
			r.Post("/process", s.submitSession)
			r.Route("/{session_id}", func(r chi.Router) {
				r.Get("/status", s.getStatus)
				r.Get("/questions", s.getQuestions)
				r.Post("/questions/answer", s.answerQuestion)
				r.Get("/results", s.getResults)
				r.Get("/download", s.downloadArchive)
			})
		})
		r.Route("/cc-batch", func(r chi.Router) {
			r.Post("/parse-excel-text", s.parseExcelText)
			r.Post("/process-batch", s.processBatch)
			r.Post("/download-code", s.downloadCode)
		})
		r.Route("/excel-macros", func(r chi.Router) {
			r.Get("/cleanup", s.cleanupMacro)
			r.Get("/sort", s.sortMacro)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "alaeautomates-backend",
		"endpoints": []string{
			"/api/v1/monthly-statements",
			"/api/v1/cc-batch",
			"/api/v1/excel-macros",
		},
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The store is the only hard dependency; a probe read verifies it.
	if _, err := s.store.GetSession(r.Context(), "readiness-probe"); err != nil &&
		!errors.Is(err, statements.ErrNotFound) {
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) submitSession(w http.ResponseWriter, r *http.Request) {
	var params statements.SubmissionParameters
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(params.Records) == 0 {
		writeError(w, http.StatusBadRequest, "statements required")
		return
	}
	if max := s.cfg.Processing.MaxStatements; max > 0 && len(params.Records) > max {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("too many statements: %d exceeds limit of %d", len(params.Records), max))
		return
	}

	sessionID, err := s.enqueueSession(r.Context(), params)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"session_id": sessionID,
		"status":     string(statements.StatusPending),
	})
}

func (s *Server) enqueueSession(ctx context.Context, params statements.SubmissionParameters) (string, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal submission: %w", err)
	}
	digest, err := s.hasher.Hash(payload)
	if err != nil {
		return "", fmt.Errorf("hash submission: %w", err)
	}
	sessionID, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	now := s.clock.Now()
	session := statements.Session{
		ID:          sessionID,
		Status:      statements.StatusPending,
		Submitted:   now,
		PayloadHash: digest,
		Progress:    statements.Progress{Total: len(params.Records)},
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	item := statements.QueueItem{
		SessionID: sessionID,
		Phase:     statements.PhaseClassify,
		Params:    params,
		Submitted: now.Unix(),
	}
	if err := s.queue.Enqueue(queueCtx, item); err != nil {
		return "", fmt.Errorf("enqueue session: %w", err)
	}
	return sessionID, nil
}

type statusResponse struct {
	SessionID         string               `json:"session_id"`
	Status            string               `json:"status"`
	Error             string               `json:"error,omitempty"`
	RequiresQuestions bool                 `json:"requires_questions"`
	QuestionsCount    int                  `json:"questions_count"`
	Progress          *statements.Progress `json:"progress,omitempty"`
	ArchiveURI        string               `json:"archive_uri,omitempty"`
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	session, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	resp := statusResponse{
		SessionID:         session.ID,
		Status:            string(session.Status),
		Error:             session.ErrorText,
		RequiresQuestions: session.RequiresQuestions,
		QuestionsCount:    session.QuestionsCount,
		ArchiveURI:        session.ArchiveURI,
	}
	if session.Progress.Total > 0 {
		progress := session.Progress
		resp.Progress = &progress
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getQuestions(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	state, err := s.reviews.State(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "no questions for session")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (s *Server) answerQuestion(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	state, err := s.reviews.Answer(sessionID, req.Answer)
	switch {
	case errors.Is(err, review.ErrUnknownSession):
		writeError(w, http.StatusNotFound, "no questions for session")
		return
	case errors.Is(err, review.ErrCompleted):
		writeError(w, http.StatusConflict, "questions already completed")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if state.Completed {
		if err := s.startResultsPhase(r.Context(), sessionID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, state)
}

// startResultsPhase hands the session back to the workers once the operator
// has resolved the last question.
func (s *Server) startResultsPhase(ctx context.Context, sessionID string) error {
	queueCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	item := statements.QueueItem{
		SessionID: sessionID,
		Phase:     statements.PhaseResults,
		Submitted: s.clock.Now().Unix(),
	}
	if err := s.queue.Enqueue(queueCtx, item); err != nil {
		return fmt.Errorf("enqueue results: %w", err)
	}
	return nil
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	session, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if session.Status == statements.StatusError {
		writeError(w, http.StatusConflict, session.ErrorText)
		return
	}
	if session.ArchiveURI == "" {
		writeError(w, http.StatusConflict, "results not ready")
		return
	}
	items, err := s.store.ListStatements(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load statements")
		return
	}
	createdAt := session.Submitted
	if session.Finished != nil {
		createdAt = *session.Finished
	}
	writeJSON(w, http.StatusOK, statements.Results{
		SessionID:  session.ID,
		Statistics: statements.ComputeStatistics(items),
		ArchiveURI: session.ArchiveURI,
		CreatedAt:  createdAt,
	})
}

func (s *Server) downloadArchive(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	session, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if session.ArchiveURI == "" {
		writeError(w, http.StatusConflict, "results not ready")
		return
	}
	rc, err := s.blobs.GetObject(r.Context(), session.ArchiveURI)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open archive")
		return
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			s.logger.Warn("close archive reader", zap.Error(cerr))
		}
	}()
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "statements_"+session.ID+".zip"))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("stream archive", zap.String("session_id", sessionID), zap.Error(err))
	}
}
