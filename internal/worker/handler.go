package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/joao-fontenele/storefront-payments/internal/domain"
	"github.com/joao-fontenele/storefront-payments/internal/messaging"
)

// NotificationHandler turns order and payment events into customer emails.
type NotificationHandler struct {
	emailServiceURL string
	recipientDomain string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL, recipientDomain string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		recipientDomain: recipientDomain,
		httpClient:      client,
		logger:          logger,
	}
}

type emailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (h *NotificationHandler) HandleOrderCreated(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: unmarshal order created event: %v", messaging.ErrPermanent, err)
	}

	h.logger.Info("processing order created event", "order_id", event.OrderID, "user_id", event.UserID)

	var lines strings.Builder
	for _, item := range event.Items {
		fmt.Fprintf(&lines, "- %s", item.Name)
		if item.Size != "" {
			fmt.Fprintf(&lines, " (%s)", item.Size)
		}
		fmt.Fprintf(&lines, " x%d: %s\n", item.Quantity, FormatVND(item.UnitPrice*int64(item.Quantity)))
	}

	msg := emailMessage{
		To:      h.recipient(event.UserID),
		Subject: "Order received: " + event.OrderID,
		Body: fmt.Sprintf("We received your order %s and are waiting for your %s payment.\n\n%sTotal: %s\n",
			event.OrderID, event.PaymentMethod, lines.String(), FormatVND(event.TotalAmount)),
	}

	if err := h.sendEmail(ctx, msg); err != nil {
		return fmt.Errorf("send order received email: %w", err)
	}

	return nil
}

func (h *NotificationHandler) HandlePaymentSettled(ctx context.Context, payload []byte) error {
	var event domain.PaymentSettledEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: unmarshal payment settled event: %v", messaging.ErrPermanent, err)
	}

	h.logger.Info("processing payment settled event", "order_id", event.OrderID, "status", event.Status)

	var msg emailMessage
	switch event.Status {
	case domain.PaymentStatusCompleted:
		msg = emailMessage{
			To:      h.recipient(event.UserID),
			Subject: "Payment received: " + event.OrderID,
			Body: fmt.Sprintf("We received %s for order %s via %s.\nTransaction: %s\n",
				FormatVND(event.Amount), event.OrderID, event.PaymentMethod, event.TransactionID),
		}
	case domain.PaymentStatusFailed:
		reason := event.Reason
		if reason == "" {
			reason = "the payment was not completed"
		}
		msg = emailMessage{
			To:      h.recipient(event.UserID),
			Subject: "Payment failed: " + event.OrderID,
			Body: fmt.Sprintf("Your %s payment for order %s did not go through: %s.\nYou can retry from your order page.\n",
				event.PaymentMethod, event.OrderID, reason),
		}
	default:
		h.logger.Warn("ignoring payment event with unexpected status", "order_id", event.OrderID, "status", event.Status)
		return nil
	}

	if err := h.sendEmail(ctx, msg); err != nil {
		return fmt.Errorf("send payment email: %w", err)
	}

	h.logger.Info("payment notification sent", "order_id", event.OrderID, "status", event.Status)
	return nil
}

func (h *NotificationHandler) recipient(userID string) string {
	return userID + "@" + h.recipientDomain
}

func (h *NotificationHandler) sendEmail(ctx context.Context, msg emailMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}

// FormatVND renders a whole-dong amount with dot thousands separators.
func FormatVND(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}

	return sign + b.String() + " VND"
}
