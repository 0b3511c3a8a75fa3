// Package events publishes order lifecycle notifications on NATS.
//
// Publishing is best-effort: the order is already persisted when an event is
// sent, so publish failures are logged by the caller and never fail a request.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

// Event types.
const (
	OrderCreated       = "order.created"
	OrderPaid          = "order.paid"
	OrderStatusChanged = "order.status_changed"
)

// OrderEvent is the payload published for every order event.
type OrderEvent struct {
	Type        string             `json:"type"`
	OrderID     string             `json:"orderId"`
	EcommerceID string             `json:"ecommerceId"`
	UserID      string             `json:"userId"`
	Status      domain.OrderStatus `json:"status"`
	Method      string             `json:"paymentMethod"`
	TotalCents  int64              `json:"totalCents"`
	OccurredAt  time.Time          `json:"occurredAt"`
}

// NewOrderEvent builds an event from an order.
func NewOrderEvent(eventType string, o *domain.Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:        eventType,
		OrderID:     o.ID,
		EcommerceID: o.EcommerceID,
		UserID:      o.UserID,
		Status:      o.Status,
		Method:      string(o.Payment.Method),
		TotalCents:  o.TotalCents,
		OccurredAt:  at,
	}
}

// Publisher sends order events.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

// msgPublisher is the part of *nats.Conn the publisher needs.
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher publishes events to "<prefix>.<ecommerceId>.<type>".
type NATSPublisher struct {
	conn   msgPublisher
	prefix string
}

// NewNATSPublisher creates a publisher on an open connection.
func NewNATSPublisher(conn *nats.Conn, prefix string) *NATSPublisher {
	return newPublisher(conn, prefix)
}

func newPublisher(conn msgPublisher, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = "cloudmerce"
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the subject an event is published on.
func (p *NATSPublisher) Subject(event OrderEvent) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, event.EcommerceID, event.Type)
}

// Publish encodes the event as JSON. The Nats-Msg-Id header lets JetStream
// streams drop duplicates of the same transition.
func (p *NATSPublisher) Publish(ctx context.Context, event OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}

	msg := nats.NewMsg(p.Subject(event))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.OrderID+":"+event.Type+":"+string(event.Status))
	msg.Header.Set("Content-Type", "application/json")

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish failed: %w", err)
	}
	return nil
}

// Connect dials NATS with reconnects enabled.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// Noop discards events. Used when NATS is not configured.
type Noop struct{}

func (Noop) Publish(context.Context, OrderEvent) error { return nil }
