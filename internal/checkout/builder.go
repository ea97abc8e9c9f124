package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/foodhub/internal/domain"
)

// SessionPlaceholder is replaced by Stripe with the session id on redirect.
const SessionPlaceholder = "{CHECKOUT_SESSION_ID}"

var (
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrEmptyMenu          = errors.New("restaurant has no menu items")
)

// ValidationError reports a cart or delivery problem the caller can fix.
type ValidationError struct {
	MenuID  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.MenuID != "" {
		return fmt.Sprintf("invalid menu item: %s: %s", e.MenuID, e.Message)
	}
	return e.Message
}

var (
	tracer = otel.Tracer("checkout")
	meter  = otel.Meter("checkout")

	sessionsCreated, _  = meter.Int64Counter("checkout.sessions.created", metric.WithDescription("Checkout sessions created at the payment provider"))
	sessionsRejected, _ = meter.Int64Counter("checkout.sessions.rejected", metric.WithDescription("Checkout requests rejected before reaching the provider"))
)

type Catalog interface {
	GetWithMenu(ctx context.Context, restaurantID string) (*domain.Restaurant, error)
}

type SessionCreator interface {
	CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.CheckoutSession, error)
}

type Config struct {
	Currency         string
	AllowedCountries []string
	FrontendURL      string
}

func (c Config) successURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/checkout/success?session_id=" + SessionPlaceholder
}

func (c Config) cancelURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/checkout/cancel"
}

type Request struct {
	CartItems       []domain.CartItem      `json:"cartItems"`
	DeliveryDetails domain.DeliveryDetails `json:"deliveryDetails"`
	RestaurantID    string                 `json:"restaurantId"`
}

type Builder struct {
	catalog  Catalog
	provider SessionCreator
	cfg      Config
	logger   *slog.Logger
}

func NewBuilder(catalog Catalog, provider SessionCreator, cfg Config, logger *slog.Logger) *Builder {
	return &Builder{
		catalog:  catalog,
		provider: provider,
		cfg:      cfg,
		logger:   logger,
	}
}

// CreateSession revalidates the cart against the restaurant's current menu and
// opens a provider checkout session charged at catalog prices. It never
// creates an order.
func (b *Builder) CreateSession(ctx context.Context, userID string, req Request) (*domain.CheckoutSession, error) {
	ctx, span := tracer.Start(ctx, "checkout.CreateSession")
	defer span.End()
	span.SetAttributes(
		attribute.String("restaurant.id", req.RestaurantID),
		attribute.Int("cart.lines", len(req.CartItems)),
	)

	session, err := b.createSession(ctx, userID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("checkout.session_id", session.ID))
	return session, nil
}

func (b *Builder) createSession(ctx context.Context, userID string, req Request) (*domain.CheckoutSession, error) {
	if err := validateRequest(req); err != nil {
		b.reject(ctx, "invalid_request")
		return nil, err
	}

	restaurant, err := b.catalog.GetWithMenu(ctx, req.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("load restaurant %s: %w", req.RestaurantID, err)
	}
	if restaurant == nil {
		b.reject(ctx, "restaurant_not_found")
		return nil, ErrRestaurantNotFound
	}
	if len(restaurant.Menus) == 0 {
		b.reject(ctx, "empty_menu")
		return nil, ErrEmptyMenu
	}

	lineItems, snapshot, err := resolveCart(req.CartItems, restaurant.Menus)
	if err != nil {
		b.reject(ctx, "invalid_menu_item")
		return nil, err
	}

	metadata, err := EncodeMetadata(OrderData{
		UserID:          userID,
		RestaurantID:    restaurant.ID,
		DeliveryDetails: req.DeliveryDetails,
		CartItems:       snapshot,
	})
	if err != nil {
		if errors.Is(err, errMetadataTooLarge) {
			b.reject(ctx, "cart_too_large")
			return nil, &ValidationError{Message: "cart has too many items to check out at once"}
		}
		return nil, err
	}

	session, err := b.provider.CreateSession(ctx, domain.SessionRequest{
		LineItems:        lineItems,
		Currency:         b.cfg.Currency,
		AllowedCountries: b.cfg.AllowedCountries,
		SuccessURL:       b.cfg.successURL(),
		CancelURL:        b.cfg.cancelURL(),
		Metadata:         metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("create provider session: %w", err)
	}

	sessionsCreated.Add(ctx, 1)
	b.logger.Info("checkout session created",
		"session_id", session.ID,
		"user_id", userID,
		"restaurant_id", restaurant.ID,
		"lines", len(lineItems),
	)

	return session, nil
}

func (b *Builder) reject(ctx context.Context, reason string) {
	sessionsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.RestaurantID) == "" {
		return &ValidationError{Message: "restaurant id is required"}
	}
	if len(req.CartItems) == 0 {
		return &ValidationError{Message: "cart items are required"}
	}

	d := req.DeliveryDetails
	required := []struct{ name, value string }{
		{"name", d.Name},
		{"email", d.Email},
		{"address", d.Address},
		{"city", d.City},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Message: "delivery " + f.name + " is required"}
		}
	}
	if !strings.Contains(d.Email, "@") {
		return &ValidationError{Message: "delivery email is invalid"}
	}

	return nil
}

// resolveCart maps each cart line onto the authoritative menu item. Any
// unresolvable line fails the whole cart. The returned snapshot keeps the
// client's menu id and quantity with catalog name, image and price.
func resolveCart(cart []domain.CartItem, menu []domain.MenuItem) ([]domain.LineItem, []domain.CartItem, error) {
	byID := make(map[string]domain.MenuItem, len(menu))
	for _, item := range menu {
		byID[item.ID] = item
	}

	lineItems := make([]domain.LineItem, 0, len(cart))
	snapshot := make([]domain.CartItem, 0, len(cart))

	for _, line := range cart {
		item, ok := byID[line.MenuID]
		if !ok {
			return nil, nil, &ValidationError{MenuID: line.MenuID, Message: "not on this restaurant's menu"}
		}
		if !item.IsAvailable {
			return nil, nil, &ValidationError{MenuID: line.MenuID, Message: "currently unavailable"}
		}
		if line.Quantity < 1 {
			return nil, nil, &ValidationError{MenuID: line.MenuID, Message: "quantity must be at least 1"}
		}

		lineItems = append(lineItems, domain.LineItem{
			Name:      item.Name,
			Image:     item.Image,
			UnitPrice: item.Price,
			Quantity:  int64(line.Quantity),
		})
		snapshot = append(snapshot, domain.CartItem{
			MenuID:   item.ID,
			Name:     item.Name,
			Image:    item.Image,
			Price:    item.Price,
			Quantity: line.Quantity,
		})
	}

	return lineItems, snapshot, nil
}
