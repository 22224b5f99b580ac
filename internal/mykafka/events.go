package mykafka

import "time"

const (
	TopicProductEvents = "product_events"
	TopicUserEvents    = "user_events"
)

const (
	ProductCreated   = "product_created"
	ProductUpdated   = "product_updated"
	ProductDeleted   = "product_deleted"
	ProductsImported = "products_imported"
	UserRegistered   = "user_registered"
	UserLoggedIn     = "user_logged_in"
)

type ProductEvent struct {
	Type       string    `json:"type"`
	ProductID  uint      `json:"productID,omitempty"`
	ProductIDs []uint    `json:"productIDs,omitempty"`
	Name       string    `json:"name,omitempty"`
	Price      float64   `json:"price,omitempty"`
	Stock      int       `json:"stock,omitempty"`
	Category   string    `json:"category,omitempty"`
	At         time.Time `json:"at"`
}

type UserEvent struct {
	Type     string    `json:"type"`
	UserID   uint      `json:"userID"`
	Username string    `json:"username"`
	At       time.Time `json:"at"`
}
