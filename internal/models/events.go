package models

import "time"

// Event types
const (
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderPaid      = "ORDER_PAID"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published once the payment session exists
type OrderCreatedEvent struct {
	BaseEvent
	OrderID        int64           `json:"order_id"`
	UserID         int64           `json:"user_id"`
	GatewayOrderID string          `json:"gateway_order_id"`
	TotalAmount    int64           `json:"total_amount"`
	Items          []OrderItemData `json:"items"`
}

// OrderPaidEvent published when a notification settles the order
type OrderPaidEvent struct {
	BaseEvent
	OrderID              int64  `json:"order_id"`
	GatewayOrderID       string `json:"gateway_order_id"`
	GatewayTransactionID string `json:"gateway_transaction_id"`
	Amount               int64  `json:"amount"`
}

// OrderCancelledEvent asks the stock worker to return reserved stock
type OrderCancelledEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}
