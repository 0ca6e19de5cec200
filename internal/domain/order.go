package domain

import (
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type PaymentMethod string

const (
	PaymentMethodVNPay PaymentMethod = "vnpay"
	PaymentMethodMoMo  PaymentMethod = "momo"
	PaymentMethodOther PaymentMethod = "other"
)

type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
}

type ShippingAddress struct {
	FullName string `json:"full_name"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Phone    string `json:"phone"`
}

// Complete reports whether every address field has non-blank content.
func (a ShippingAddress) Complete() bool {
	for _, field := range []string{a.FullName, a.Address, a.City, a.Phone} {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return true
}

// PaymentInfo records what the gateway reported on the terminal transition.
type PaymentInfo struct {
	TransactionID string    `json:"transaction_id,omitempty"`
	PaidAmount    int64     `json:"paid_amount,omitempty"`
	PaidAt        time.Time `json:"paid_at,omitzero"`
	ResponseCode  string    `json:"response_code,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     int64           `json:"total_amount"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	PaymentRef      string          `json:"payment_ref"`
	PaymentInfo     *PaymentInfo    `json:"payment_info,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ItemsTotal sums unit price times quantity over the order lines.
func ItemsTotal(items []OrderItem) int64 {
	var total int64
	for _, item := range items {
		total += int64(item.Quantity) * item.UnitPrice
	}
	return total
}
