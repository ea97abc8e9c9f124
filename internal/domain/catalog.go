package domain

import "time"

type Restaurant struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"ownerId"`
	Name         string     `json:"restaurantName"`
	Description  string     `json:"description"`
	Address      string     `json:"address"`
	City         string     `json:"city"`
	Country      string     `json:"country"`
	DeliveryTime int        `json:"deliveryTime"`
	Cuisines     []string   `json:"cuisines"`
	ImageURL     string     `json:"imageUrl"`
	IsActive     bool       `json:"isActive"`
	Menus        []MenuItem `json:"menus"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// MenuItem prices are in minor currency units.
type MenuItem struct {
	ID           string   `json:"id"`
	RestaurantID string   `json:"restaurantId"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Price        int64    `json:"price"`
	Category     string   `json:"category"`
	Image        string   `json:"image"`
	IsAvailable  bool     `json:"isAvailable"`
	Options      []Option `json:"options"`
}

type Option struct {
	ID         string `json:"id"`
	MenuItemID string `json:"menuItemId"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	IsRequired bool   `json:"isRequired"`
}
