// Package gateway implements the merchant side of the VNPay and MoMo payment
// protocols: signing outbound payment requests and authenticating callbacks.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/joao-fontenele/storefront-payments/internal/domain"
	"github.com/joao-fontenele/storefront-payments/internal/signature"
)

var (
	ErrConfiguration    = errors.New("payment gateway configuration is missing")
	ErrUnavailable      = errors.New("payment gateway unavailable")
	ErrRejected         = errors.New("payment gateway rejected the request")
	ErrMalformed        = errors.New("malformed gateway callback")
	ErrInvalidSignature = signature.ErrInvalidSignature
)

type Outcome int

const (
	OutcomeFailure Outcome = iota
	OutcomeSuccess
)

func (o Outcome) String() string {
	if o == OutcomeSuccess {
		return "success"
	}
	return "failure"
}

// PaymentRequest is what a gateway needs to start a payment for an order.
type PaymentRequest struct {
	OrderID   string
	Reference string
	Amount    int64
	OrderInfo string
	ClientIP  string
	CreatedAt time.Time
}

// Callback is an authenticated gateway notification, normalized across
// gateways. Amount is in the order currency, already descaled.
type Callback struct {
	Method        domain.PaymentMethod
	Reference     string
	Outcome       Outcome
	TransactionID string
	Amount        int64
	PaidAt        time.Time
	ResponseCode  string
	Message       string
	RequestID     string
}

type Gateway interface {
	Method() domain.PaymentMethod
	// Validate reports ErrConfiguration when a required setting is empty.
	Validate() error
	// PaymentURL returns the URL the buyer is redirected to.
	PaymentURL(ctx context.Context, req PaymentRequest) (string, error)
	// VerifyCallback authenticates a return or IPN parameter set.
	VerifyCallback(params signature.Params) (*Callback, error)
}

// vietnamTime is the gateways' wall clock (UTC+7, no DST).
var vietnamTime = time.FixedZone("ICT", 7*60*60)
