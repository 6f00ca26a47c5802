// Package handler is the thin HTTP layer over the identity registry. It
// parses requests, delegates to the service, and translates coded errors;
// business rules stay out of transport.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"supplytrace/internal/identity/models"
	"supplytrace/internal/transport/http/shared"
	"supplytrace/pkg/domain"
	dErrors "supplytrace/pkg/domain-errors"
	"supplytrace/pkg/requestcontext"
)

// Service defines the identity operations the handler needs.
type Service interface {
	Register(ctx context.Context, addr domain.Address, name string, role models.Role) (models.Participant, error)
	Verify(ctx context.Context, caller, target domain.Address) (models.Participant, error)
	Lookup(ctx context.Context, addr domain.Address) (models.Participant, error)
	List(ctx context.Context) ([]models.Participant, error)
}

type Handler struct {
	identity Service
	logger   *slog.Logger
}

func New(identity Service, logger *slog.Logger) *Handler {
	return &Handler{identity: identity, logger: logger}
}

// Register mounts the participant routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/participants", h.handleRegister)
	r.Post("/participants/verify", h.handleVerify)
	r.Get("/participants", h.handleList)
	r.Get("/participants/{address}", h.handleLookup)
}

type registerRequest struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Role    uint8  `json:"role"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	addr, err := domain.ParseAddress(req.Address)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid address"))
		return
	}

	participant, err := h.identity.Register(r.Context(), addr, req.Name, models.Role(req.Role))
	if err != nil {
		h.warn(r, "participant registration rejected", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, participant)
}

type verifyRequest struct {
	CallerAddress string `json:"caller_address"`
	TargetAddress string `json:"target_address"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	caller, err := domain.ParseAddress(req.CallerAddress)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid caller address"))
		return
	}
	target, err := domain.ParseAddress(req.TargetAddress)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid target address"))
		return
	}

	participant, err := h.identity.Verify(r.Context(), caller, target)
	if err != nil {
		h.warn(r, "participant verification rejected", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, participant)
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid address"))
		return
	}
	participant, err := h.identity.Lookup(r.Context(), addr)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, participant)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	participants, err := h.identity.List(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if participants == nil {
		participants = []models.Participant{}
	}
	shared.WriteJSON(w, http.StatusOK, participants)
}

func (h *Handler) warn(r *http.Request, msg string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.WarnContext(r.Context(), msg,
		"request_id", requestcontext.RequestID(r.Context()),
		"error", err.Error(),
	)
}
