package service

import (
	"context"
	"time"

	"storefront/internal/models"
	"storefront/internal/payment"
)

// UserStore is the persistence the auth flows need.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// CatalogStore is the read-only persistence behind members, products and schedule.
type CatalogStore interface {
	ListMembers(ctx context.Context) ([]models.Member, error)
	GetMember(ctx context.Context, id int64) (*models.Member, error)
	ListProducts(ctx context.Context, category string) ([]models.ProductWithMember, error)
	GetProduct(ctx context.Context, id int64) (*models.ProductWithMember, error)
	ListEventsFrom(ctx context.Context, from time.Time) ([]models.ScheduleEvent, error)
	ListFeaturedEventsFrom(ctx context.Context, from time.Time, limit int) ([]models.ScheduleEvent, error)
	ListEventsBetween(ctx context.Context, start, end time.Time) ([]models.ScheduleEvent, error)
}

// OrderStore is the persistence behind the order workflow.
type OrderStore interface {
	GetActiveProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	AttachPaymentSession(ctx context.Context, orderID int64, gatewayOrderID, paymentURL string) error
	CancelPendingOrder(ctx context.Context, orderID int64) (bool, error)
	ReleaseOrderStock(ctx context.Context, orderID int64) (bool, error)
	GetOrdersWithItemsByUserID(ctx context.Context, userID int64) ([]models.OrderWithItems, error)
	ReconcilePayment(ctx context.Context, gatewayOrderID, status, transactionID string) (*models.Order, bool, error)
}

// StockStore is what the compensation consumer needs.
type StockStore interface {
	ReleaseOrderStock(ctx context.Context, orderID int64) (bool, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// PaymentGateway creates hosted checkouts and authenticates notifications.
type PaymentGateway interface {
	CreateSession(ctx context.Context, req *payment.SessionRequest) (*payment.Session, error)
	VerifyNotification(ctx context.Context, n *payment.Notification) (*payment.TransactionStatus, error)
}

// EventPublisher emits order lifecycle events.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

// IdempotencyCache stores responses to replay for repeated requests.
type IdempotencyCache interface {
	GetIdempotencyKey(ctx context.Context, key string) ([]byte, bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
