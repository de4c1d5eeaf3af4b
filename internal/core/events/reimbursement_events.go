package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypeRequestSubmitted = "reimbursement.submitted"
	EventTypeRequestDecided   = "reimbursement.decided"
)

type RequestSubmittedEvent struct {
	BaseEvent
	RequestID string          `json:"request_id"`
	UserID    string          `json:"user_id"`
	Approver  string          `json:"approver"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category"`
}

func NewRequestSubmittedEvent(requestID, userID, approver string, amount decimal.Decimal, category string) *RequestSubmittedEvent {
	return &RequestSubmittedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRequestSubmitted,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"request_id": requestID,
				"user_id":    userID,
				"approver":   approver,
				"amount":     amount.StringFixed(2),
				"category":   category,
			},
		},
		RequestID: requestID,
		UserID:    userID,
		Approver:  approver,
		Amount:    amount,
		Category:  category,
	}
}

// RequestDecidedEvent is emitted once per request leaving Pending, including
// each request of a bulk decision.
type RequestDecidedEvent struct {
	BaseEvent
	RequestID string `json:"request_id"`
	DecidedBy string `json:"decided_by"`
	Status    string `json:"status"`
	Comments  string `json:"comments,omitempty"`
}

func NewRequestDecidedEvent(requestID, decidedBy, status, comments string) *RequestDecidedEvent {
	return &RequestDecidedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRequestDecided,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"request_id": requestID,
				"decided_by": decidedBy,
				"status":     status,
				"comments":   comments,
			},
		},
		RequestID: requestID,
		DecidedBy: decidedBy,
		Status:    status,
		Comments:  comments,
	}
}

// NewAuditHandler records every lifecycle event it receives.
func NewAuditHandler(logger *slog.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		attrs := []any{
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"occurred_at", event.OccurredAt(),
		}
		if data, ok := event.Payload().(map[string]interface{}); ok {
			for k, v := range data {
				attrs = append(attrs, k, v)
			}
		}
		logger.InfoContext(ctx, "audit", attrs...)
		return nil
	}
}
