package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/joao-fontenele/storefront-payments/internal/auth"
	"github.com/joao-fontenele/storefront-payments/internal/domain"
	"github.com/joao-fontenele/storefront-payments/internal/gateway"
	"github.com/joao-fontenele/storefront-payments/internal/signature"
)

const (
	sourceReturn = "return"
	sourceIPN    = "ipn"
)

// VNPay IPN response codes.
const (
	vnpayRspSuccess          = "00"
	vnpayRspOrderNotFound    = "01"
	vnpayRspAlreadyConfirmed = "02"
	vnpayRspInvalidAmount    = "04"
	vnpayRspInvalidChecksum  = "97"
	vnpayRspUnknown          = "99"
)

// MoMo IPN result codes answered by the merchant.
const (
	momoAckSuccess       = 0
	momoAckInvalidAmount = 22
	momoAckBadSignature  = 13
	momoAckOrderNotFound = 42
	momoAckUnknown       = 99
)

// Redirects are the storefront pages a browser lands on after the gateway
// return. When unset, return callbacks answer with JSON.
type Redirects struct {
	SuccessURL string
	FailURL    string
}

type Handler struct {
	checkout   *Checkout
	reconciler *Reconciler
	vnpay      gateway.Gateway
	momo       *gateway.MoMo
	redirects  Redirects
	metrics    *metrics
	logger     *slog.Logger
}

func NewHandler(checkout *Checkout, reconciler *Reconciler, vnpay gateway.Gateway, momo *gateway.MoMo, redirects Redirects, logger *slog.Logger) *Handler {
	return &Handler{
		checkout:   checkout,
		reconciler: reconciler,
		vnpay:      vnpay,
		momo:       momo,
		redirects:  redirects,
		metrics:    newMetrics(),
		logger:     logger,
	}
}

type createPaymentRequest struct {
	ShippingAddress struct {
		FullName string `json:"fullName"`
		Address  string `json:"address"`
		City     string `json:"city"`
		Phone    string `json:"phone"`
	} `json:"shippingAddress"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
}

type createPaymentResponse struct {
	OrderID    string `json:"orderId"`
	PaymentURL string `json:"paymentUrl"`
}

func (h *Handler) HandleCreatePaymentURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Please authenticate")
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodVNPay
	}

	result, err := h.checkout.Start(r.Context(), CheckoutRequest{
		UserID: userID,
		ShippingAddress: domain.ShippingAddress{
			FullName: req.ShippingAddress.FullName,
			Address:  req.ShippingAddress.Address,
			City:     req.ShippingAddress.City,
			Phone:    req.ShippingAddress.Phone,
		},
		Method:   req.PaymentMethod,
		ClientIP: clientIP(r),
	})
	if err != nil {
		status, message := checkoutErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("failed to create payment", "error", err, "user_id", userID, "method", req.PaymentMethod)
		}
		h.metrics.checkout(r.Context(), string(req.PaymentMethod), "error")
		h.writeError(w, status, message)
		return
	}

	if result.AwaitingGateway {
		h.metrics.checkout(r.Context(), string(req.PaymentMethod), "awaiting_gateway")
		h.writeJSON(w, http.StatusAccepted, map[string]any{
			"success": true,
			"message": "Order created, payment gateway is not responding. Payment will be confirmed by the gateway.",
			"data": createPaymentResponse{
				OrderID: result.Order.ID,
			},
		})
		return
	}

	h.metrics.checkout(r.Context(), string(req.PaymentMethod), "created")
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": createPaymentResponse{
			OrderID:    result.Order.ID,
			PaymentURL: result.PaymentURL,
		},
	})
}

func checkoutErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidAddress):
		return http.StatusBadRequest, "shipping address requires fullName, address, city and phone"
	case errors.Is(err, ErrUnsupportedMethod):
		return http.StatusBadRequest, "unsupported payment method"
	case errors.Is(err, ErrEmptyCart):
		return http.StatusBadRequest, "Cart is empty"
	case errors.Is(err, ErrCartChanged):
		return http.StatusConflict, "cart changed during checkout, please retry"
	case errors.Is(err, ErrConfiguration):
		return http.StatusInternalServerError, "payment configuration is missing"
	case errors.Is(err, gateway.ErrRejected):
		return http.StatusBadGateway, "payment gateway rejected the request"
	default:
		return http.StatusInternalServerError, "Error creating payment"
	}
}

func (h *Handler) HandleVNPayReturn(w http.ResponseWriter, r *http.Request) {
	h.handleReturn(w, r, h.vnpay)
}

func (h *Handler) HandleMoMoReturn(w http.ResponseWriter, r *http.Request) {
	h.handleReturn(w, r, h.momo)
}

// handleReturn settles what the browser brings back once its signature and
// amount check out. Return and IPN share the same reconciler.
func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request, gw gateway.Gateway) {
	params := signature.FromValues(r.URL.Query())
	method := string(gw.Method())

	cb, err := gw.VerifyCallback(params)
	if err != nil {
		result := h.logCallbackError(r, gw.Method(), sourceReturn, err)
		h.metrics.callback(r.Context(), method, sourceReturn, result)
		if errors.Is(err, gateway.ErrInvalidSignature) {
			h.respondReturn(w, r, "", false, http.StatusBadRequest, "Invalid signature", nil)
			return
		}
		h.respondReturn(w, r, "", false, http.StatusInternalServerError, "Error processing payment return", nil)
		return
	}

	res, err := h.reconciler.Apply(r.Context(), cb)
	switch {
	case err == nil, errors.Is(err, ErrAlreadySettled):
		h.metrics.callback(r.Context(), method, sourceReturn, string(res.Order.PaymentStatus))
		order := res.Order
		if order.PaymentStatus == domain.PaymentStatusCompleted {
			h.respondReturn(w, r, order.ID, true, http.StatusOK, "Payment successful", map[string]any{
				"orderId":       order.ID,
				"transactionId": cb.TransactionID,
				"amount":        cb.Amount,
				"status":        order.PaymentStatus,
			})
			return
		}
		h.respondReturn(w, r, order.ID, false, http.StatusBadRequest, "Payment failed", map[string]any{
			"orderId": order.ID,
			"code":    cb.ResponseCode,
			"reason":  cb.Message,
		})
	case errors.Is(err, ErrUnknownOrder):
		h.logCallbackError(r, gw.Method(), sourceReturn, err)
		h.metrics.callback(r.Context(), method, sourceReturn, "unknown_order")
		h.respondReturn(w, r, "", false, http.StatusNotFound, "Order not found", nil)
	case errors.Is(err, ErrAmountMismatch):
		h.logCallbackError(r, gw.Method(), sourceReturn, err)
		h.metrics.callback(r.Context(), method, sourceReturn, "amount_mismatch")
		h.respondReturn(w, r, res.Order.ID, false, http.StatusBadRequest, "Invalid amount", nil)
	default:
		h.logger.Error("failed to reconcile payment return", "error", err, "reference", cb.Reference)
		h.metrics.callback(r.Context(), method, sourceReturn, "error")
		h.respondReturn(w, r, "", false, http.StatusInternalServerError, "Error processing payment return", nil)
	}
}

func (h *Handler) respondReturn(w http.ResponseWriter, r *http.Request, orderID string, success bool, status int, message string, data map[string]any) {
	target := h.redirects.FailURL
	if success {
		target = h.redirects.SuccessURL
	}
	if target != "" {
		if u, err := url.Parse(target); err == nil {
			q := u.Query()
			if orderID != "" {
				q.Set("orderId", orderID)
			}
			u.RawQuery = q.Encode()
			http.Redirect(w, r, u.String(), http.StatusFound)
			return
		}
		h.logger.Error("invalid payment redirect url", "url", target)
	}

	body := map[string]any{"success": success, "message": message}
	if data != nil {
		body["data"] = data
	}
	h.writeJSON(w, status, body)
}

type vnpayAck struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// HandleVNPayIPN always answers 200; VNPay reads the outcome from RspCode and
// retries on anything it does not recognise.
func (h *Handler) HandleVNPayIPN(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeJSON(w, http.StatusOK, vnpayAck{RspCode: vnpayRspUnknown, Message: "Unknown error"})
		return
	}
	params := signature.FromValues(r.Form)
	method := string(h.vnpay.Method())

	cb, err := h.vnpay.VerifyCallback(params)
	if err != nil {
		result := h.logCallbackError(r, h.vnpay.Method(), sourceIPN, err)
		h.metrics.callback(r.Context(), method, sourceIPN, result)
		if errors.Is(err, gateway.ErrInvalidSignature) {
			h.writeJSON(w, http.StatusOK, vnpayAck{RspCode: vnpayRspInvalidChecksum, Message: "Fail checksum"})
			return
		}
		h.writeJSON(w, http.StatusOK, vnpayAck{RspCode: vnpayRspUnknown, Message: "Unknown error"})
		return
	}

	res, err := h.reconciler.Apply(r.Context(), cb)
	switch {
	case err == nil && res.Applied:
		h.metrics.callback(r.Context(), method, sourceIPN, string(res.Order.PaymentStatus))
		h.writeJSON(w, http.StatusOK, vnpayAck{RspCode: vnpayRspSuccess, Message: "success"})
	case err == nil, errors.Is(err, ErrAlreadySettled):
		h.metrics.callback(r.Context(), method, sourceIPN, "already_settled")
		h.writeJSON(w, http.StatusOK, vnpayAck{RspCode: vnpayRspAlreadyConfirmed, Message: "Order already confirmed"})
	case errors.Is(err, ErrUnknownOrder):
		h.logCallbackError(r, h.vnpay.Method(), sourceIPN, err)
		h.metrics.callback(r.Context(), method, sourceIPN, "unknown_order")
		h.writeJSON(w, http.StatusOK, vnpayAck{RspCode: vnpayRspOrderNotFound, Message: "Order not found"})
	case errors.Is(err, ErrAmountMismatch):
		h.logCallbackError(r, h.vnpay.Method(), sourceIPN, err)
		h.metrics.callback(r.Context(), method, sourceIPN, "amount_mismatch")
		h.writeJSON(w, http.StatusOK, vnpayAck{RspCode: vnpayRspInvalidAmount, Message: "Invalid amount"})
	default:
		h.logger.Error("failed to reconcile vnpay ipn", "error", err, "reference", cb.Reference)
		h.metrics.callback(r.Context(), method, sourceIPN, "error")
		h.writeJSON(w, http.StatusOK, vnpayAck{RspCode: vnpayRspUnknown, Message: "Unknown error"})
	}
}

// HandleMoMoIPN answers every IPN with 200 and a signed-off resultCode.
func (h *Handler) HandleMoMoIPN(w http.ResponseWriter, r *http.Request) {
	method := string(h.momo.Method())

	params, err := momoParams(w, r)
	if err != nil {
		h.logger.Warn("malformed momo ipn body", "error", err)
		h.metrics.callback(r.Context(), method, sourceIPN, "malformed")
		h.writeJSON(w, http.StatusOK, h.momo.Ack(signature.Params{}, momoAckUnknown, "Bad format request", time.Now()))
		return
	}

	cb, err := h.momo.VerifyCallback(params)
	if err != nil {
		result := h.logCallbackError(r, h.momo.Method(), sourceIPN, err)
		h.metrics.callback(r.Context(), method, sourceIPN, result)
		if errors.Is(err, gateway.ErrInvalidSignature) {
			h.writeJSON(w, http.StatusOK, h.momo.Ack(params, momoAckBadSignature, "Invalid signature", time.Now()))
			return
		}
		h.writeJSON(w, http.StatusOK, h.momo.Ack(params, momoAckUnknown, "Unknown error", time.Now()))
		return
	}

	res, err := h.reconciler.Apply(r.Context(), cb)
	switch {
	case err == nil:
		h.metrics.callback(r.Context(), method, sourceIPN, string(res.Order.PaymentStatus))
		h.writeJSON(w, http.StatusOK, h.momo.Ack(params, momoAckSuccess, "success", time.Now()))
	case errors.Is(err, ErrAlreadySettled):
		h.metrics.callback(r.Context(), method, sourceIPN, "already_settled")
		h.writeJSON(w, http.StatusOK, h.momo.Ack(params, momoAckSuccess, "Order already confirmed", time.Now()))
	case errors.Is(err, ErrUnknownOrder):
		h.logCallbackError(r, h.momo.Method(), sourceIPN, err)
		h.metrics.callback(r.Context(), method, sourceIPN, "unknown_order")
		h.writeJSON(w, http.StatusOK, h.momo.Ack(params, momoAckOrderNotFound, "Order not found", time.Now()))
	case errors.Is(err, ErrAmountMismatch):
		h.logCallbackError(r, h.momo.Method(), sourceIPN, err)
		h.metrics.callback(r.Context(), method, sourceIPN, "amount_mismatch")
		h.writeJSON(w, http.StatusOK, h.momo.Ack(params, momoAckInvalidAmount, "Invalid amount", time.Now()))
	default:
		h.logger.Error("failed to reconcile momo ipn", "error", err, "reference", cb.Reference)
		h.metrics.callback(r.Context(), method, sourceIPN, "error")
		h.writeJSON(w, http.StatusOK, h.momo.Ack(params, momoAckUnknown, "Unknown error", time.Now()))
	}
}

// momoParams flattens the JSON IPN body into strings, keeping numbers in
// their literal form so they sign the same way MoMo signed them.
func momoParams(w http.ResponseWriter, r *http.Request) (signature.Params, error) {
	var body map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}

	params := make(signature.Params, len(body))
	for k, v := range body {
		switch val := v.(type) {
		case nil:
			params.Set(k, "")
		case string:
			params.Set(k, val)
		case json.Number:
			params.Set(k, val.String())
		default:
			params.Set(k, fmt.Sprint(val))
		}
	}
	return params, nil
}

// logCallbackError logs a rejected callback and returns its metric label.
// Bad signatures are security events.
func (h *Handler) logCallbackError(r *http.Request, method domain.PaymentMethod, source string, err error) string {
	switch {
	case errors.Is(err, gateway.ErrInvalidSignature):
		h.logger.Warn("callback signature mismatch", "gateway", method, "source", source, "remote_addr", r.RemoteAddr)
		return "invalid_signature"
	case errors.Is(err, ErrUnknownOrder):
		h.logger.Warn("callback for unknown order", "gateway", method, "source", source, "remote_addr", r.RemoteAddr)
		return "unknown_order"
	case errors.Is(err, ErrAmountMismatch):
		h.logger.Warn("callback amount mismatch", "gateway", method, "source", source, "error", err)
		return "amount_mismatch"
	case errors.Is(err, gateway.ErrConfiguration):
		h.logger.Error("callback received without gateway configuration", "gateway", method, "source", source)
		return "configuration"
	default:
		h.logger.Warn("malformed callback", "gateway", method, "source", source, "error", err)
		return "malformed"
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
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
