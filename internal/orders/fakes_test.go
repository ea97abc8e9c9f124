package orders

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/joao-fontenele/foodhub/internal/checkout"
	"github.com/joao-fontenele/foodhub/internal/domain"
)

// memStore mirrors the orders table, including the unique session index.
type memStore struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	bySession map[string]string
	nextID    int

	onLookup  func()
	lookupErr error
	createErr error
}

func newMemStore() *memStore {
	return &memStore{
		orders:    map[string]*domain.Order{},
		bySession: map[string]string{},
	}
}

func (s *memStore) Create(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return s.createErr
	}
	if _, taken := s.bySession[order.ExternalSessionID]; taken {
		return ErrDuplicateSession
	}

	s.nextID++
	order.ID = fmt.Sprintf("order-%d", s.nextID)
	order.UpdatedAt = order.CreatedAt
	stored := *order
	s.orders[order.ID] = &stored
	s.bySession[order.ExternalSessionID] = order.ID
	return nil
}

func (s *memStore) GetBySessionID(_ context.Context, sessionID string) (*domain.Order, error) {
	if s.onLookup != nil {
		s.onLookup()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	id, ok := s.bySession[sessionID]
	if !ok {
		return nil, nil
	}
	order := *s.orders[id]
	return &order, nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (s *memStore) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	return s.filter(func(o *domain.Order) bool { return o.UserID == userID }), nil
}

func (s *memStore) ListByRestaurant(_ context.Context, restaurantID string) ([]domain.Order, error) {
	return s.filter(func(o *domain.Order) bool { return o.RestaurantID == restaurantID }), nil
}

func (s *memStore) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	order.Status = status
	copied := *order
	return &copied, nil
}

func (s *memStore) UpdatePaymentStatus(_ context.Context, id string, status domain.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("order %s not found", id)
	}
	order.PaymentStatus = status
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) filter(keep func(*domain.Order) bool) []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Order{}
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*domain.CheckoutSession
	err      error
	calls    int
}

func (f *fakeSessions) GetSession(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	session, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no session %s", id)
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessions) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	mu     sync.Mutex
	keys   []string
	events []any
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, key string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) published() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOrderData() checkout.OrderData {
	return checkout.OrderData{
		UserID:       "user-1",
		RestaurantID: restaurantID,
		DeliveryDetails: domain.DeliveryDetails{
			Name:    "Asha Rao",
			Email:   "asha@example.com",
			Contact: "9876543210",
			Address: "12 MG Road",
			City:    "Bengaluru",
			Country: "IN",
		},
		CartItems: []domain.CartItem{
			{MenuID: "menu-biryani", Name: "Biryani", Price: 24900, Quantity: 2},
			{MenuID: "menu-naan", Name: "Butter Naan", Price: 4900, Quantity: 3},
		},
	}
}

func paidSession(t *testing.T, id string, data checkout.OrderData) *domain.CheckoutSession {
	t.Helper()

	md, err := checkout.EncodeMetadata(data)
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	return &domain.CheckoutSession{
		ID:            id,
		PaymentStatus: domain.SessionPaid,
		AmountTotal:   64500,
		Currency:      "inr",
		Metadata:      md,
	}
}
