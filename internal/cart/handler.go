package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront-payments/internal/auth"
	"github.com/joao-fontenele/storefront-payments/internal/domain"
)

const maxLineQuantity = 99

type Store interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, product *domain.Product, size string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID, size string) (*domain.Cart, error)
	Clear(ctx context.Context, userID string) (*domain.Cart, error)
}

type ProductReader interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type Handler struct {
	carts    Store
	products ProductReader
	logger   *slog.Logger
}

func NewHandler(carts Store, products ProductReader, logger *slog.Logger) *Handler {
	return &Handler{
		carts:    carts,
		products: products,
		logger:   logger,
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Please authenticate")
		return
	}

	cart, err := h.carts.GetCart(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get cart", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "Error fetching cart")
		return
	}

	if cart == nil {
		cart = &domain.Cart{UserID: userID, Items: []domain.CartItem{}}
	}

	h.writeJSON(w, http.StatusOK, cart)
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Please authenticate")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "productId is required")
		return
	}
	if req.Quantity < 1 || req.Quantity > maxLineQuantity {
		h.writeError(w, http.StatusBadRequest, "Quantity must be between 1 and 99")
		return
	}

	product, err := h.products.GetByID(r.Context(), req.ProductID)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", req.ProductID)
		h.writeError(w, http.StatusInternalServerError, "Error adding item to cart")
		return
	}

	if product == nil {
		h.writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	if len(product.Sizes) > 0 && !product.HasSize(req.Size) {
		h.writeError(w, http.StatusBadRequest, "Selected size is not available for this product")
		return
	}
	if len(product.Sizes) == 0 {
		req.Size = ""
	}

	cart, err := h.carts.AddItem(r.Context(), userID, product, req.Size, req.Quantity)
	if err != nil {
		h.logger.Error("failed to add item to cart", "error", err, "user_id", userID, "product_id", product.ID)
		h.writeError(w, http.StatusInternalServerError, "Error adding item to cart")
		return
	}

	h.logger.Info("item added to cart", "user_id", userID, "product_id", product.ID, "size", req.Size, "quantity", req.Quantity)
	h.writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Please authenticate")
		return
	}

	productID := r.PathValue("productId")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	cart, err := h.carts.RemoveItem(r.Context(), userID, productID, r.URL.Query().Get("size"))
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			h.writeError(w, http.StatusNotFound, "Item not found in cart")
			return
		}
		h.logger.Error("failed to remove item from cart", "error", err, "user_id", userID, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "Error removing item from cart")
		return
	}

	h.logger.Info("item removed from cart", "user_id", userID, "product_id", productID)
	h.writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Please authenticate")
		return
	}

	cart, err := h.carts.Clear(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			h.writeError(w, http.StatusNotFound, "Cart not found")
			return
		}
		h.logger.Error("failed to clear cart", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "Error clearing cart")
		return
	}

	h.logger.Info("cart cleared", "user_id", userID)
	h.writeJSON(w, http.StatusOK, cart)
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
