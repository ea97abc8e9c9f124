package orders

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/joao-fontenele/foodhub/internal/domain"
)

const (
	orderID           = "3f6b2a1c-8d4e-4b7f-a2c9-5e1d0f3a7b68"
	restaurantID      = "0b4f7c2e-4a0e-4c51-9f7e-2d7b0c1f9a01"
	otherRestaurantID = "5c8e1d7a-2b9f-4a63-8e0d-7f1a2b3c4d5e"
)

var orderColumnNames = []string{"id", "external_session_id", "user_id", "restaurant_id", "cart_items",
	"delivery_details", "total_amount", "status", "payment_status", "created_at", "updated_at"}

func orderRow(rows *sqlmock.Rows, id, sessionID string, status domain.OrderStatus) *sqlmock.Rows {
	now := time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)
	return rows.AddRow(id, sessionID, "user-1", restaurantID,
		[]byte(`[{"menuId":"menu-biryani","name":"Biryani","image":"","price":24900,"quantity":2}]`),
		[]byte(`{"name":"Asha Rao","email":"asha@example.com","address":"12 MG Road","city":"Bengaluru"}`),
		49800, string(status), "completed", now, now)
}

func newOrder() *domain.Order {
	return &domain.Order{
		ExternalSessionID: "cs_test_1",
		UserID:            "user-1",
		RestaurantID:      restaurantID,
		CartItems:         []domain.CartItem{{MenuID: "menu-biryani", Name: "Biryani", Price: 24900, Quantity: 2}},
		DeliveryDetails:   domain.DeliveryDetails{Name: "Asha Rao", Email: "asha@example.com"},
		TotalAmount:       49800,
		Status:            domain.OrderStatusPending,
		PaymentStatus:     domain.PaymentStatusCompleted,
		CreatedAt:         time.Now().UTC(),
	}
}

func TestOrderRepository_Create(t *testing.T) {
	t.Run("inserts and assigns id", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create mock database: %v", err)
		}
		defer func() { _ = db.Close() }()

		order := newOrder()
		mock.ExpectExec("INSERT INTO orders").
			WithArgs(sqlmock.AnyArg(), "cs_test_1", "user-1", restaurantID, sqlmock.AnyArg(), sqlmock.AnyArg(),
				int64(49800), "pending", "completed", order.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		repo := NewOrderRepository(db)
		if err := repo.Create(context.Background(), order); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.ID == "" {
			t.Error("expected order id to be set")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("database expectations were not met: %v", err)
		}
	})

	t.Run("maps session unique violation", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create mock database: %v", err)
		}
		defer func() { _ = db.Close() }()

		mock.ExpectExec("INSERT INTO orders").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "orders_external_session_id_key"})

		order := newOrder()
		err = NewOrderRepository(db).Create(context.Background(), order)
		if !errors.Is(err, ErrDuplicateSession) {
			t.Fatalf("expected ErrDuplicateSession, got %v", err)
		}
		if order.ID != "" {
			t.Errorf("expected no id on duplicate, got %s", order.ID)
		}
	})

	t.Run("other unique violations pass through", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create mock database: %v", err)
		}
		defer func() { _ = db.Close() }()

		mock.ExpectExec("INSERT INTO orders").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "orders_pkey"})

		err = NewOrderRepository(db).Create(context.Background(), newOrder())
		if err == nil || errors.Is(err, ErrDuplicateSession) {
			t.Fatalf("expected raw database error, got %v", err)
		}
	})
}

func TestOrderRepository_GetBySessionID(t *testing.T) {
	t.Run("decodes snapshots", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create mock database: %v", err)
		}
		defer func() { _ = db.Close() }()

		mock.ExpectQuery("FROM orders\\s+WHERE external_session_id = \\$1").
			WithArgs("cs_test_1").
			WillReturnRows(orderRow(sqlmock.NewRows(orderColumnNames), orderID, "cs_test_1", domain.OrderStatusPending))

		order, err := NewOrderRepository(db).GetBySessionID(context.Background(), "cs_test_1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order == nil {
			t.Fatal("expected order")
		}
		if order.Status != domain.OrderStatusPending || order.PaymentStatus != domain.PaymentStatusCompleted {
			t.Errorf("unexpected statuses: %s/%s", order.Status, order.PaymentStatus)
		}
		if len(order.CartItems) != 1 || order.CartItems[0].Quantity != 2 {
			t.Errorf("unexpected cart items: %+v", order.CartItems)
		}
		if order.DeliveryDetails.City != "Bengaluru" {
			t.Errorf("unexpected delivery details: %+v", order.DeliveryDetails)
		}
	})

	t.Run("returns nil when absent", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create mock database: %v", err)
		}
		defer func() { _ = db.Close() }()

		mock.ExpectQuery("FROM orders").
			WithArgs("cs_missing").
			WillReturnRows(sqlmock.NewRows(orderColumnNames))

		order, err := NewOrderRepository(db).GetBySessionID(context.Background(), "cs_missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order != nil {
			t.Errorf("expected nil, got %+v", order)
		}
	})
}

func TestOrderRepository_GetByID_MalformedID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock database: %v", err)
	}
	defer func() { _ = db.Close() }()

	order, err := NewOrderRepository(db).GetByID(context.Background(), "not-a-uuid")
	if err != nil || order != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", order, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected no queries: %v", err)
	}
}

func TestOrderRepository_ListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock database: %v", err)
	}
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows(orderColumnNames)
	orderRow(rows, orderID, "cs_2", domain.OrderStatusDelivered)
	orderRow(rows, "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d", "cs_1", domain.OrderStatusPending)
	mock.ExpectQuery("WHERE user_id = \\$1\\s+ORDER BY created_at DESC").
		WithArgs("user-1").
		WillReturnRows(rows)

	orders, err := NewOrderRepository(db).ListByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].ExternalSessionID != "cs_2" {
		t.Errorf("expected database order preserved, got %s first", orders[0].ExternalSessionID)
	}
}

func TestOrderRepository_UpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock database: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("UPDATE orders SET status = \\$1").
		WithArgs("preparing", orderID).
		WillReturnRows(orderRow(sqlmock.NewRows(orderColumnNames), orderID, "cs_test_1", domain.OrderStatusPreparing))

	order, err := NewOrderRepository(db).UpdateStatus(context.Background(), orderID, domain.OrderStatusPreparing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != domain.OrderStatusPreparing {
		t.Errorf("expected preparing, got %s", order.Status)
	}
}

func TestOrderRepository_UpdatePaymentStatus(t *testing.T) {
	t.Run("updates row", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create mock database: %v", err)
		}
		defer func() { _ = db.Close() }()

		mock.ExpectExec("UPDATE orders SET payment_status = \\$1").
			WithArgs("failed", orderID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := NewOrderRepository(db).UpdatePaymentStatus(context.Background(), orderID, domain.PaymentStatusFailed); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("missing order", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create mock database: %v", err)
		}
		defer func() { _ = db.Close() }()

		mock.ExpectExec("UPDATE orders SET payment_status").
			WillReturnResult(driver.RowsAffected(0))

		if err := NewOrderRepository(db).UpdatePaymentStatus(context.Background(), orderID, domain.PaymentStatusFailed); err == nil {
			t.Fatal("expected error")
		}
	})
}
