// Package httpapi serves the webhook endpoint and a small read-only view of sessions.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/glebk/match-quiz/internal/domain"
	"github.com/glebk/match-quiz/internal/matching"
)

// Quiz is the read side of the quiz service
type Quiz interface {
	GetSession(ctx context.Context, code string) (*domain.Session, error)
	GetReport(ctx context.Context, code string) (*matching.Report, error)
	Questions() *domain.QuestionSet
}

// UpdateHandler consumes Telegram updates posted to the webhook
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// QRRenderer draws the join QR code for a pairing code
type QRRenderer interface {
	QRCode(code string) ([]byte, error)
}

// Handler provides common handler utilities.
type Handler struct {
	quiz    Quiz
	updates UpdateHandler
	qr      QRRenderer
	version string
	logger  *slog.Logger
}

// NewHandler creates a new Handler. updates and qr may be nil; their routes then answer 404.
func NewHandler(quiz Quiz, updates UpdateHandler, qr QRRenderer, version string, logger *slog.Logger) *Handler {
	return &Handler{
		quiz:    quiz,
		updates: updates,
		qr:      qr,
		version: version,
		logger:  logger,
	}
}

// Router builds the chi router with every route registered
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/healthz"))

	r.Get("/version", h.GetVersion)
	if h.updates != nil {
		r.Post("/webhook", h.Webhook)
	}
	h.RegisterSessionRoutes(r)

	return r
}

// NewServer wraps handler with the timeouts used in production
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      70 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// GetVersion reports the running release
func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"version": h.version})
}

// Webhook decodes a Telegram update and hands it to the bot
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		Error(w, http.StatusBadRequest, "invalid update")
		return
	}

	h.updates.HandleUpdate(r.Context(), update)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chiMiddleware.GetReqID(r.Context()),
		)
	})
}
