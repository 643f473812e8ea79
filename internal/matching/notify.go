package matching

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"labmarket/models"
)

// Вид события для диспетчера уведомлений
type EventKind string

const (
	EventClaimSubmitted EventKind = "ClaimSubmitted"
	EventClaimAccepted  EventKind = "ClaimAccepted"
	EventClaimRefused   EventKind = "ClaimRefused"
	EventOrderBound     EventKind = "OrderBound"
)

// Event — структурированное событие для внешних подписчиков
type Event struct {
	ID      uuid.UUID          `json:"id"`
	Kind    EventKind          `json:"kind"`
	OrderID int                `json:"orderId"`
	LabID   int                `json:"labId"`
	ClaimID int                `json:"claimId,omitempty"`
	Status  models.ClaimStatus `json:"status,omitempty"`
	At      time.Time          `json:"at"`
}

// Notifier — best-effort диспетчер: вызывается после фиксации перехода,
// сбой доставки не откатывает состояние и не возвращается вызывающему.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// LogNotifier пишет события в структурированный лог.
// Продовая доставка (push, e-mail) подключается снаружи тем же контрактом.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, e Event) {
	n.log.Info("matching event",
		zap.String("event_id", e.ID.String()),
		zap.String("kind", string(e.Kind)),
		zap.Int("order_id", e.OrderID),
		zap.Int("lab_id", e.LabID),
		zap.Int("claim_id", e.ClaimID),
		zap.String("status", string(e.Status)),
	)
}

func newEvent(kind EventKind, orderID, labID, claimID int, status models.ClaimStatus) Event {
	return Event{
		ID:      uuid.New(),
		Kind:    kind,
		OrderID: orderID,
		LabID:   labID,
		ClaimID: claimID,
		Status:  status,
		At:      time.Now(),
	}
}
