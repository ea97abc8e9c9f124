package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/foodhub/internal/domain"
)

// ErrDuplicateSession is returned by Create when an order already exists for
// the same external session id.
var ErrDuplicateSession = errors.New("order already exists for session")

const (
	uniqueViolation         = "23505"
	sessionUniqueConstraint = "orders_external_session_id_key"
)

const orderColumns = `id, external_session_id, user_id, restaurant_id, cart_items, delivery_details,
		total_amount, status, payment_status, created_at, updated_at`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order in a single statement. The external session id
// is unique; a second insert for the same session yields ErrDuplicateSession.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.CartItems)
	if err != nil {
		return fmt.Errorf("marshal cart items: %w", err)
	}
	details, err := json.Marshal(order.DeliveryDetails)
	if err != nil {
		return fmt.Errorf("marshal delivery details: %w", err)
	}

	id := uuid.New().String()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, id, order.ExternalSessionID, order.UserID, order.RestaurantID, items, details,
		order.TotalAmount, order.Status, order.PaymentStatus, order.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == sessionUniqueConstraint {
			return ErrDuplicateSession
		}
		return err
	}

	order.ID = id
	order.UpdatedAt = order.CreatedAt
	return nil
}

func (r *OrderRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	return r.getOne(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE external_session_id = $1
	`, sessionID)
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.getOne(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
}

func (r *OrderRepository) ListByRestaurant(ctx context.Context, restaurantID string) ([]domain.Order, error) {
	if _, err := uuid.Parse(restaurantID); err != nil {
		return []domain.Order{}, nil
	}
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE restaurant_id = $1
		ORDER BY created_at DESC
	`, restaurantID)
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.getOne(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+orderColumns, status, id)
}

func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("order %s not found", id)
	}

	return nil
}

func (r *OrderRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var (
		order   domain.Order
		items   []byte
		details []byte
	)

	err := row.Scan(&order.ID, &order.ExternalSessionID, &order.UserID, &order.RestaurantID,
		&items, &details, &order.TotalAmount, &order.Status, &order.PaymentStatus,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &order.CartItems); err != nil {
		return nil, fmt.Errorf("decode cart items of order %s: %w", order.ID, err)
	}
	if err := json.Unmarshal(details, &order.DeliveryDetails); err != nil {
		return nil, fmt.Errorf("decode delivery details of order %s: %w", order.ID, err)
	}

	return &order, nil
}
