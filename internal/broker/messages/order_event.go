package messages

import (
	"time"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/google/uuid"
)

const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
	OrderDeleted       = "order.deleted"
)

// OrderEvent публикуется релеем в топик событий заказов, ключ сообщения равен id заказа.
type OrderEvent struct {
	Type           string        `json:"type"`
	OrderID        uuid.UUID     `json:"order_id"`
	TrackingNumber string        `json:"tracking_number"`
	Status         models.Status `json:"status,omitempty"`
	PreviousStatus models.Status `json:"previous_status,omitempty"`
	Location       *string       `json:"location,omitempty"`
	Description    *string       `json:"description,omitempty"`
	Version        int64         `json:"version"`
	OccurredAt     time.Time     `json:"occurred_at"`
}
