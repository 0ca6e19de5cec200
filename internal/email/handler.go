package email

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"sync"
	"time"
)

// Message is one email accepted by the sink.
type Message struct {
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// Outbox keeps the most recent messages, oldest first.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
	size     int
}

func NewOutbox(size int) *Outbox {
	if size < 1 {
		size = 1
	}
	return &Outbox{size: size}
}

func (o *Outbox) Add(msg Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	if len(o.messages) > o.size {
		o.messages = o.messages[len(o.messages)-o.size:]
	}
}

// To returns the kept messages for recipient, or all of them when empty.
func (o *Outbox) To(recipient string) []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := []Message{}
	for _, msg := range o.messages {
		if recipient == "" || msg.To == recipient {
			out = append(out, msg)
		}
	}
	return out
}

type Handler struct {
	outbox *Outbox
	logger *slog.Logger
	now    func() time.Time
}

func NewHandler(outbox *Outbox, logger *slog.Logger) *Handler {
	return &Handler{
		outbox: outbox,
		logger: logger,
		now:    time.Now,
	}
}

type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := mail.ParseAddress(req.To); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid recipient")
		return
	}
	if req.Subject == "" {
		h.writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	h.outbox.Add(Message{To: req.To, Subject: req.Subject, Body: req.Body, SentAt: h.now().UTC()})
	h.logger.Info("email sent", "to", req.To, "subject", req.Subject)

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.outbox.To(r.URL.Query().Get("to")))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
