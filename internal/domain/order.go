package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusOutForDelivery OrderStatus = "outfordelivery"
	OrderStatusDelivered      OrderStatus = "delivered"
)

// Valid reports whether s is one of the known fulfillment states. Any valid
// state may follow any other; callers are trusted not to regress.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusOutForDelivery, OrderStatusDelivered:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// CartItem is a single cart line. Prices are in minor currency units.
type CartItem struct {
	MenuID   string `json:"menuId"`
	Name     string `json:"name"`
	Image    string `json:"image"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type DeliveryDetails struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact,omitempty"`
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country,omitempty"`
}

type Order struct {
	ID                string          `json:"id"`
	ExternalSessionID string          `json:"externalSessionId"`
	UserID            string          `json:"userId"`
	RestaurantID      string          `json:"restaurantId"`
	CartItems         []CartItem      `json:"cartItems"`
	DeliveryDetails   DeliveryDetails `json:"deliveryDetails"`
	TotalAmount       int64           `json:"totalAmount"`
	Status            OrderStatus     `json:"status"`
	PaymentStatus     PaymentStatus   `json:"paymentStatus"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}
