package domain

import "time"

type OrderCreatedEvent struct {
	OrderID         string          `json:"order_id"`
	UserID          string          `json:"user_id"`
	RestaurantID    string          `json:"restaurant_id"`
	Items           []CartItem      `json:"items"`
	DeliveryDetails DeliveryDetails `json:"delivery_details"`
	TotalAmount     int64           `json:"total_amount"`
	Timestamp       time.Time       `json:"timestamp"`
}

// PaymentFlaggedEvent is raised when the provider reports a payment failure
// for a session that already has an order. It needs manual review.
type PaymentFlaggedEvent struct {
	OrderID   string    `json:"order_id"`
	SessionID string    `json:"session_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
