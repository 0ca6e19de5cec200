package orders

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/storefront-payments/internal/auth"
	"github.com/joao-fontenele/storefront-payments/internal/domain"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type Reader interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, int, error)
	ListAll(ctx context.Context, limit, offset int) ([]domain.Order, int, error)
	RevenueByStatus(ctx context.Context) (map[domain.PaymentStatus]StatusRevenue, error)
}

type Handler struct {
	repo   Reader
	logger *slog.Logger
}

func NewHandler(repo Reader, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

type listResponse struct {
	Success     bool           `json:"success"`
	Orders      []domain.Order `json:"orders"`
	TotalOrders int            `json:"totalOrders"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Please authenticate")
		return
	}

	page, limit, ok := pagination(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}

	orders, total, err := h.repo.ListByUser(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}

	h.logger.Info("orders listed", "user_id", userID, "count", len(orders))
	h.writeJSON(w, http.StatusOK, newListResponse(orders, total, page, limit))
}

// HandleAdminList pages through every user's orders.
func (h *Handler) HandleAdminList(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := pagination(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}

	orders, total, err := h.repo.ListAll(r.Context(), limit, (page-1)*limit)
	if err != nil {
		h.logger.Error("failed to list all orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}

	h.writeJSON(w, http.StatusOK, newListResponse(orders, total, page, limit))
}

type revenueResponse struct {
	Success         bool                                   `json:"success"`
	TotalRevenue    int64                                  `json:"totalRevenue"`
	TotalOrders     int                                    `json:"totalOrders"`
	RevenueByStatus map[domain.PaymentStatus]StatusRevenue `json:"revenueByStatus"`
}

// HandleRevenue reports order totals grouped by payment status. Only
// completed orders count towards totalRevenue.
func (h *Handler) HandleRevenue(w http.ResponseWriter, r *http.Request) {
	byStatus, err := h.repo.RevenueByStatus(r.Context())
	if err != nil {
		h.logger.Error("failed to compute revenue", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Error calculating revenue")
		return
	}

	resp := revenueResponse{Success: true, RevenueByStatus: byStatus}
	for status, sr := range byStatus {
		resp.TotalOrders += sr.Count
		if status == domain.PaymentStatusCompleted {
			resp.TotalRevenue += sr.TotalAmount
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func newListResponse(orders []domain.Order, total, page, limit int) listResponse {
	return listResponse{
		Success:     true,
		Orders:      orders,
		TotalOrders: total,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
	}
}

func pagination(r *http.Request) (page, limit int, ok bool) {
	page, ok = queryInt(r, "page", 1)
	if !ok || page < 1 {
		return 0, 0, false
	}
	limit, ok = queryInt(r, "limit", defaultPageSize)
	if !ok || limit < 1 || limit > maxPageSize {
		return 0, 0, false
	}
	return page, limit, true
}

// HandleGet only shows orders to their owner; other users get 404.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Please authenticate")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	if order == nil || order.UserID != userID {
		h.writeError(w, http.StatusNotFound, "Order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": order})
}

func queryInt(r *http.Request, key string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{"success": false, "message": message})
}
