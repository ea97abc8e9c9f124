package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/foodhub/internal/checkout"
	"github.com/joao-fontenele/foodhub/internal/domain"
)

// Trigger names the path that asked for an order to be materialized.
type Trigger string

const (
	TriggerWebhook Trigger = "webhook"
	TriggerVerify  Trigger = "verify"
)

var (
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrCorruptSession      = errors.New("corrupt session data")
)

var (
	tracer = otel.Tracer("orders")
	meter  = otel.Meter("orders")

	ordersMaterialized, _ = meter.Int64Counter("orders.materialized", metric.WithDescription("Materialization calls by trigger and outcome"))
	sessionRaces, _       = meter.Int64Counter("orders.session_races", metric.WithDescription("Inserts that lost the unique session race"))
	webhookEvents, _      = meter.Int64Counter("orders.webhook.events", metric.WithDescription("Provider webhook events by type and outcome"))
)

type Store interface {
	Create(ctx context.Context, order *domain.Order) error
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) error
}

type SessionFetcher interface {
	GetSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type MaterializerOption func(*Materializer)

// WithCreatedPublisher announces newly inserted orders.
func WithCreatedPublisher(p Publisher) MaterializerOption {
	return func(m *Materializer) {
		m.created = p
	}
}

// WithFlaggedPublisher announces orders whose payment failed after creation.
func WithFlaggedPublisher(p Publisher) MaterializerOption {
	return func(m *Materializer) {
		m.flagged = p
	}
}

func WithClock(now func() time.Time) MaterializerOption {
	return func(m *Materializer) {
		m.now = now
	}
}

// Materializer turns a paid checkout session into exactly one order, no
// matter how many callers race on the same session.
type Materializer struct {
	store    Store
	sessions SessionFetcher
	created  Publisher
	flagged  Publisher
	logger   *slog.Logger
	now      func() time.Time
}

func NewMaterializer(store Store, sessions SessionFetcher, logger *slog.Logger, opts ...MaterializerOption) *Materializer {
	m := &Materializer{
		store:    store,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Materialize returns the order for sessionID, creating it from the
// provider's session when the payment is complete.
func (m *Materializer) Materialize(ctx context.Context, sessionID string, trigger Trigger) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.Materialize", trace.WithAttributes(
		attribute.String("checkout.session_id", sessionID),
		attribute.String("trigger", string(trigger)),
	))
	defer span.End()

	order, err := m.materialize(ctx, sessionID, nil, trigger)
	return order, endSpan(span, order, err)
}

// MaterializeSession is Materialize for a session already obtained from a
// verified webhook payload. The provider is not consulted again.
func (m *Materializer) MaterializeSession(ctx context.Context, session *domain.CheckoutSession, trigger Trigger) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.MaterializeSession", trace.WithAttributes(
		attribute.String("checkout.session_id", session.ID),
		attribute.String("trigger", string(trigger)),
	))
	defer span.End()

	order, err := m.materialize(ctx, session.ID, session, trigger)
	return order, endSpan(span, order, err)
}

func (m *Materializer) materialize(ctx context.Context, sessionID string, session *domain.CheckoutSession, trigger Trigger) (*domain.Order, error) {
	existing, err := m.store.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find order for session %s: %w", sessionID, err)
	}
	if existing != nil {
		m.count(ctx, trigger, "existing")
		m.logger.Info("order already materialized",
			"order_id", existing.ID,
			"session_id", sessionID,
			"trigger", trigger,
		)
		return existing, nil
	}

	if session == nil {
		session, err = m.sessions.GetSession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("fetch session %s: %w", sessionID, err)
		}
	}

	if session.PaymentStatus != domain.SessionPaid {
		m.count(ctx, trigger, "not_paid")
		return nil, fmt.Errorf("%w: session %s is %s", ErrPaymentNotCompleted, sessionID, session.PaymentStatus)
	}

	data, err := checkout.DecodeMetadata(session.Metadata)
	if err != nil {
		m.count(ctx, trigger, "corrupt")
		m.logger.Error("paid session carries unusable order data",
			"error", err,
			"session_id", sessionID,
			"trigger", trigger,
			"amount_total", session.AmountTotal,
		)
		return nil, fmt.Errorf("%w: session %s: %w", ErrCorruptSession, sessionID, err)
	}

	order := &domain.Order{
		ExternalSessionID: sessionID,
		UserID:            data.UserID,
		RestaurantID:      data.RestaurantID,
		CartItems:         data.CartItems,
		DeliveryDetails:   data.DeliveryDetails,
		TotalAmount:       session.AmountTotal,
		Status:            domain.OrderStatusPending,
		PaymentStatus:     domain.PaymentStatusCompleted,
		CreatedAt:         m.now().UTC(),
	}

	if err := m.store.Create(ctx, order); err != nil {
		if !errors.Is(err, ErrDuplicateSession) {
			return nil, fmt.Errorf("create order for session %s: %w", sessionID, err)
		}

		winner, err := m.store.GetBySessionID(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("refetch order for session %s: %w", sessionID, err)
		}
		if winner == nil {
			return nil, fmt.Errorf("order for session %s missing after duplicate insert", sessionID)
		}

		sessionRaces.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", string(trigger))))
		m.count(ctx, trigger, "race")
		m.logger.Info("lost session race, returning existing order",
			"order_id", winner.ID,
			"session_id", sessionID,
			"trigger", trigger,
		)
		return winner, nil
	}

	m.count(ctx, trigger, "created")
	m.logger.Info("order created",
		"order_id", order.ID,
		"session_id", sessionID,
		"user_id", order.UserID,
		"restaurant_id", order.RestaurantID,
		"total_amount", order.TotalAmount,
		"trigger", trigger,
	)

	m.publish(ctx, m.created, order.ID, domain.OrderCreatedEvent{
		OrderID:         order.ID,
		UserID:          order.UserID,
		RestaurantID:    order.RestaurantID,
		Items:           order.CartItems,
		DeliveryDetails: order.DeliveryDetails,
		TotalAmount:     order.TotalAmount,
		Timestamp:       order.CreatedAt,
	})

	return order, nil
}

// HandlePaymentFailure reacts to a payment that failed after checkout. With
// no order there is nothing to undo. An existing order is kept, marked failed
// and flagged for review.
func (m *Materializer) HandlePaymentFailure(ctx context.Context, sessionID string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.HandlePaymentFailure", trace.WithAttributes(
		attribute.String("checkout.session_id", sessionID),
	))
	defer span.End()

	order, err := m.store.GetBySessionID(ctx, sessionID)
	if err != nil {
		err = fmt.Errorf("find order for session %s: %w", sessionID, err)
		return nil, endSpan(span, nil, err)
	}
	if order == nil {
		m.logger.Info("payment failed before any order was created", "session_id", sessionID)
		return nil, nil
	}

	if order.PaymentStatus != domain.PaymentStatusFailed {
		if err := m.store.UpdatePaymentStatus(ctx, order.ID, domain.PaymentStatusFailed); err != nil {
			err = fmt.Errorf("mark order %s payment failed: %w", order.ID, err)
			return nil, endSpan(span, order, err)
		}
		order.PaymentStatus = domain.PaymentStatusFailed
	}

	m.logger.Warn("payment failed for existing order, flagged for manual review",
		"order_id", order.ID,
		"session_id", sessionID,
		"status", order.Status,
	)

	m.publish(ctx, m.flagged, order.ID, domain.PaymentFlaggedEvent{
		OrderID:   order.ID,
		SessionID: sessionID,
		Reason:    "async payment failed",
		Timestamp: m.now().UTC(),
	})

	return order, endSpan(span, order, nil)
}

// publish failures never undo the order; consumers can be replayed from the
// order table.
func (m *Materializer) publish(ctx context.Context, p Publisher, key string, event any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, key, event); err != nil {
		m.logger.Error("failed to publish order event", "error", err, "order_id", key)
	}
}

func (m *Materializer) count(ctx context.Context, trigger Trigger, outcome string) {
	ordersMaterialized.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger", string(trigger)),
		attribute.String("outcome", outcome),
	))
}

func endSpan(span trace.Span, order *domain.Order, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if order != nil {
		span.SetAttributes(attribute.String("order.id", order.ID))
	}
	return nil
}
