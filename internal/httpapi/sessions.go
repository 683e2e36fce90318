package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/glebk/match-quiz/internal/domain"
)

type participantView struct {
	Name     string `json:"name"`
	Answered int    `json:"answered"`
	Complete bool   `json:"complete"`
}

type sessionView struct {
	Code      string           `json:"code"`
	State     string           `json:"state"`
	Total     int              `json:"total"`
	A         participantView  `json:"a"`
	B         *participantView `json:"b"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func newParticipantView(p *domain.Participant, total int) participantView {
	return participantView{
		Name:     p.Name,
		Answered: p.CurrentIndex,
		Complete: p.Completed(total),
	}
}

// RegisterSessionRoutes registers the read-only session routes.
func (h *Handler) RegisterSessionRoutes(r chi.Router) {
	r.Route("/sessions/{code}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Get("/report", h.GetReport)
		r.Get("/qr.png", h.GetQRCode)
	})
}

// GetSession returns progress without answers or chat IDs
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	session, err := h.quiz.GetSession(r.Context(), code)
	if err != nil {
		h.writeError(w, err)
		return
	}

	total := h.quiz.Questions().Len()
	view := sessionView{
		Code:      session.Code,
		State:     string(session.State(total)),
		Total:     total,
		A:         newParticipantView(&session.A, total),
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}
	if session.B != nil {
		b := newParticipantView(session.B, total)
		view.B = &b
	}

	JSON(w, http.StatusOK, view)
}

// GetReport returns the match report, 409 while someone is still answering
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.quiz.GetReport(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, report)
}

// GetQRCode serves the join QR code of an open session
func (h *Handler) GetQRCode(w http.ResponseWriter, r *http.Request) {
	if h.qr == nil {
		Error(w, http.StatusNotFound, "qr codes are not available")
		return
	}

	code := chi.URLParam(r, "code")
	if _, err := h.quiz.GetSession(r.Context(), code); err != nil {
		h.writeError(w, err)
		return
	}

	png, err := h.qr.QRCode(code)
	if err != nil {
		h.logger.Error("error rendering QR code", "code", code, "error", err)
		Error(w, http.StatusInternalServerError, "failed to render qr code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		Error(w, http.StatusNotFound, "session not found")
	case errors.Is(err, domain.ErrNotReady):
		Error(w, http.StatusConflict, "both participants have not finished yet")
	default:
		h.logger.Error("request failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
