// Package notify defines the one-way notification port. Dispatch failures are
// logged and never reach the operation that raised the event.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
)

// Event types.
const (
	EventTATBreached   = "case.tat_breached"
	EventCaseCompleted = "case.completed"
)

// Event is a notification about one case.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	CaseID     int64                  `json:"case_id"`
	CustomerID int64                  `json:"customer_id"`
	BranchID   int64                  `json:"branch_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// NewEvent stamps an id and time on a case event.
func NewEvent(eventType string, caseID, customerID, branchID int64, data map[string]interface{}) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		CaseID:     caseID,
		CustomerID: customerID,
		BranchID:   branchID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Dispatcher delivers events to the notification subsystem.
type Dispatcher interface {
	Dispatch(ctx context.Context, events ...Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Dispatch(context.Context, ...Event) error { return nil }

// dispatchTimeout bounds a detached delivery.
const dispatchTimeout = 30 * time.Second

// Fire hands events to d on a separate goroutine and returns immediately.
// Delivery outlives the caller's context; failures are only logged.
func Fire(d Dispatcher, log logging.Logger, events ...Event) {
	if d == nil || len(events) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := d.Dispatch(ctx, events...); err != nil {
			log.Warn("notification dispatch failed",
				logging.String("type", events[0].Type),
				logging.Int("events", len(events)),
				logging.Err(err))
		}
	}()
}
