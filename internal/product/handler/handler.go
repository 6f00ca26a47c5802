// Package handler is the thin HTTP layer over the product registry.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"supplytrace/internal/product/models"
	"supplytrace/internal/product/service"
	"supplytrace/internal/transport/http/shared"
	"supplytrace/pkg/domain"
	dErrors "supplytrace/pkg/domain-errors"
	"supplytrace/pkg/requestcontext"
)

// Service defines the product operations the handler needs.
type Service interface {
	Register(ctx context.Context, caller domain.Address, name, batchNumber string, price int64) (models.Product, error)
	Transfer(ctx context.Context, caller domain.Address, id domain.ProductID, to domain.Address) (models.Product, error)
	UpdatePrice(ctx context.Context, caller domain.Address, id domain.ProductID, price int64) (models.Product, error)
	MarkCounterfeit(ctx context.Context, caller domain.Address, id domain.ProductID) (models.Product, error)
	Get(ctx context.Context, id domain.ProductID) (models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	Total(ctx context.Context) (uint64, error)
	VerifyAuthenticity(ctx context.Context, id domain.ProductID) (service.Authenticity, error)
}

type Handler struct {
	products Service
	logger   *slog.Logger
}

func New(products Service, logger *slog.Logger) *Handler {
	return &Handler{products: products, logger: logger}
}

// Register mounts the product routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/products", h.handleRegister)
	r.Get("/products", h.handleList)
	r.Get("/products/total", h.handleTotal)
	r.Get("/products/{id}", h.handleGet)
	r.Get("/products/{id}/authenticity", h.handleAuthenticity)
	r.Post("/products/{id}/transfer", h.handleTransfer)
	r.Put("/products/{id}/price", h.handleUpdatePrice)
	r.Post("/products/{id}/counterfeit", h.handleMarkCounterfeit)
}

type registerRequest struct {
	CallerAddress string `json:"caller_address"`
	Name          string `json:"name"`
	BatchNumber   string `json:"batch_number"`
	Price         int64  `json:"price"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	caller, err := domain.ParseAddress(req.CallerAddress)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid caller address"))
		return
	}

	product, err := h.products.Register(r.Context(), caller, req.Name, req.BatchNumber, req.Price)
	if err != nil {
		h.warn(r, "product registration rejected", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, product)
}

type transferRequest struct {
	CallerAddress string `json:"caller_address"`
	ToAddress     string `json:"to_address"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProductID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid product id"))
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	caller, err := domain.ParseAddress(req.CallerAddress)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid caller address"))
		return
	}
	to, err := domain.ParseAddress(req.ToAddress)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid recipient address"))
		return
	}

	product, err := h.products.Transfer(r.Context(), caller, id, to)
	if err != nil {
		h.warn(r, "product transfer rejected", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, product)
}

type priceRequest struct {
	CallerAddress string `json:"caller_address"`
	Price         int64  `json:"price"`
}

func (h *Handler) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProductID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid product id"))
		return
	}
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	caller, err := domain.ParseAddress(req.CallerAddress)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid caller address"))
		return
	}

	product, err := h.products.UpdatePrice(r.Context(), caller, id, req.Price)
	if err != nil {
		h.warn(r, "price update rejected", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, product)
}

type counterfeitRequest struct {
	CallerAddress string `json:"caller_address"`
}

func (h *Handler) handleMarkCounterfeit(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProductID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid product id"))
		return
	}
	var req counterfeitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	caller, err := domain.ParseAddress(req.CallerAddress)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid caller address"))
		return
	}

	product, err := h.products.MarkCounterfeit(r.Context(), caller, id)
	if err != nil {
		h.warn(r, "counterfeit flag rejected", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, product)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProductID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid product id"))
		return
	}
	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, product)
}

func (h *Handler) handleAuthenticity(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProductID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid product id"))
		return
	}
	result, err := h.products.VerifyAuthenticity(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	shared.WriteJSON(w, http.StatusOK, products)
}

func (h *Handler) handleTotal(w http.ResponseWriter, r *http.Request) {
	total, err := h.products.Total(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]uint64{"total": total})
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
