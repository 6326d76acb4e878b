package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// IdempotencyTTL is how long a createOrder response is replayed for.
const IdempotencyTTL = 24 * time.Hour

// MaxLineQuantity caps the units of one product in an order, after duplicate
// lines are merged. Keep in sync with the quantity validate tag.
const MaxLineQuantity = 1000

// OrderService handles order business logic
type OrderService struct {
	store          OrderStore
	gateway        PaymentGateway
	eventPublisher EventPublisher
	cache          IdempotencyCache
	logger         *zap.Logger
	now            func() time.Time
}

// NewOrderService creates a new order service. cache may be nil, which
// disables Idempotency-Key replay.
func NewOrderService(
	store OrderStore,
	gateway PaymentGateway,
	eventPublisher EventPublisher,
	cache IdempotencyCache,
) *OrderService {
	return &OrderService{
		store:          store,
		gateway:        gateway,
		eventPublisher: eventPublisher,
		cache:          cache,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// CreateOrderRequest represents a checkout request
type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress string             `json:"shipping_address" validate:"required"`
	ShippingName    string             `json:"shipping_name" validate:"required"`
	ShippingPhone   string             `json:"shipping_phone" validate:"required"`
	Notes           *string            `json:"notes,omitempty"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID int64 `json:"product_id" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"gte=1,lte=1000"`
}

// CreateOrderResponse is what the client needs to continue to payment
type CreateOrderResponse struct {
	OrderID      int64  `json:"order_id"`
	PaymentURL   string `json:"payment_url"`
	PaymentToken string `json:"payment_token"`
}

// CreateOrder validates and prices the cart, persists the order while
// reserving stock, and opens a payment session for it. If the session cannot
// be created the order is cancelled and its stock released.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, idempotencyKey string, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder", attribute.Int64("user.id", userID))
	defer span.End()

	cacheKey := ""
	if idempotencyKey != "" && s.cache != nil {
		cacheKey = "order:" + strconv.FormatInt(userID, 10) + ":" + idempotencyKey
		if cached := s.cachedResponse(ctx, cacheKey); cached != nil {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", idempotencyKey),
				zap.Int64("order_id", cached.OrderID))
			return cached, nil
		}
	}

	req.ShippingAddress = strings.TrimSpace(req.ShippingAddress)
	req.ShippingName = strings.TrimSpace(req.ShippingName)
	req.ShippingPhone = strings.TrimSpace(req.ShippingPhone)
	if err := validateStruct(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	lines, err := mergeLines(req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	items, names, err := s.priceLines(ctx, lines)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	order := &models.Order{
		UserID:          userID,
		TotalAmount:     calculateTotal(items),
		ShippingAddress: req.ShippingAddress,
		ShippingName:    req.ShippingName,
		ShippingPhone:   req.ShippingPhone,
		Notes:           nonEmpty(req.Notes),
		Status:          models.OrderStatusPending,
	}

	if err := s.store.CreateOrder(ctx, order, items); err != nil {
		var stockErr *store.InsufficientStockError
		if errors.As(err, &stockErr) {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, apperr.Validation("insufficient stock for %s", names[stockErr.ProductID])
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		util.RecordError(span, err)
		return nil, apperr.Internal("failed to create order", err)
	}

	s.logger.Info("Order persisted and stock reserved",
		zap.Int64("order_id", order.ID),
		zap.Int64("total_amount", order.TotalAmount))

	gatewayOrderID := payment.GatewayOrderID(order.ID, s.now())
	session, err := s.gateway.CreateSession(ctx, buildSessionRequest(gatewayOrderID, order, items))
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("gateway_error").Inc()
		util.RecordError(span, err)
		s.compensate(ctx, order.ID, "payment_session_failed")
		if apperr.KindOf(err) == apperr.KindGateway {
			return nil, err
		}
		return nil, apperr.Gateway("failed to create payment session", 0, err)
	}

	if err := s.store.AttachPaymentSession(ctx, order.ID, gatewayOrderID, session.RedirectURL); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		util.RecordError(span, err)
		s.compensate(ctx, order.ID, "payment_session_not_recorded")
		return nil, apperr.Internal("failed to record payment session", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("gateway_order_id", gatewayOrderID))

	s.publishCreated(ctx, order, gatewayOrderID, items)

	resp := &CreateOrderResponse{
		OrderID:      order.ID,
		PaymentURL:   session.RedirectURL,
		PaymentToken: session.Token,
	}

	if cacheKey != "" {
		s.cacheResponse(ctx, cacheKey, resp)
	}

	return resp, nil
}

// priceLines looks every line up against the active catalog, checks stock and
// snapshots name and price. It also returns product names by id.
func (s *OrderService) priceLines(ctx context.Context, lines []OrderItemRequest) ([]models.OrderItem, map[int64]string, error) {
	items := make([]models.OrderItem, 0, len(lines))
	names := make(map[int64]string, len(lines))

	for _, line := range lines {
		product, err := s.store.GetActiveProduct(ctx, line.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, apperr.NotFound("product with ID %d not found", line.ProductID)
		}
		if err != nil {
			return nil, nil, apperr.Internal("failed to load product", err)
		}

		if product.Stock < line.Quantity {
			return nil, nil, apperr.Validation("insufficient stock for %s", product.Name)
		}

		names[product.ID] = product.Name
		items = append(items, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			Price:       product.Price,
		})
	}

	return items, names, nil
}

// compensate cancels an order whose payment session failed and returns its stock.
func (s *OrderService) compensate(ctx context.Context, orderID int64, reason string) {
	ctx = context.WithoutCancel(ctx)

	cancelled, err := s.store.CancelPendingOrder(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to cancel order during compensation",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		return
	}

	released, err := s.store.ReleaseOrderStock(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to release stock during compensation",
			zap.Int64("order_id", orderID),
			zap.Error(err))
	}
	if released {
		util.StockReleasedTotal.Inc()
	}

	if cancelled {
		util.OrdersCancelledTotal.Inc()
		s.publishCancelled(ctx, orderID, reason)
	}

	s.logger.Warn("Order cancelled and compensated",
		zap.Int64("order_id", orderID),
		zap.String("reason", reason),
		zap.Bool("stock_released", released))
}

// releaseStock returns a cancelled order's units. ReleaseOrderStock runs at
// most once per order, so a replayed notification or a later ORDER_CANCELLED
// consumer is a no-op.
func (s *OrderService) releaseStock(ctx context.Context, orderID int64) error {
	released, err := s.store.ReleaseOrderStock(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to release stock for cancelled order",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		return err
	}
	if released {
		util.StockReleasedTotal.Inc()
		s.logger.Info("Stock released for cancelled order", zap.Int64("order_id", orderID))
	}
	return nil
}

// GetMyOrders returns the user's orders newest first with their items
func (s *OrderService) GetMyOrders(ctx context.Context, userID int64) ([]models.OrderWithItems, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetMyOrders", attribute.Int64("user.id", userID))
	defer span.End()

	orders, err := s.store.GetOrdersWithItemsByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load orders", err)
	}
	if orders == nil {
		orders = []models.OrderWithItems{}
	}
	return orders, nil
}

// PaymentCallback reconciles an order with a gateway notification. The
// notification only identifies the transaction; the status applied is the
// one the gateway reports when re-queried. An order that ends up cancelled has
// its stock released before this returns, whether or not the event publish
// succeeds.
func (s *OrderService) PaymentCallback(ctx context.Context, n *payment.Notification) error {
	ctx, span := util.StartSpan(ctx, "OrderService.PaymentCallback",
		attribute.String("payment.gateway_order_id", n.OrderID))
	defer span.End()

	status, err := s.gateway.VerifyNotification(ctx, n)
	if err != nil {
		util.RecordError(span, err)
		s.logger.Warn("Payment notification rejected",
			zap.String("gateway_order_id", n.OrderID),
			zap.Error(err))
		return err
	}

	util.PaymentCallbacksTotal.WithLabelValues(status.TransactionStatus).Inc()
	next := ResolveOrderStatus(status.TransactionStatus, status.FraudStatus)

	before, applied, err := s.store.ReconcilePayment(ctx, status.OrderID, next, status.TransactionID)
	if errors.Is(err, store.ErrNotFound) {
		util.PaymentCallbackUnmatchedTotal.Inc()
		s.logger.Warn("Payment notification matches no order",
			zap.String("gateway_order_id", status.OrderID),
			zap.String("transaction_status", status.TransactionStatus))
		return nil
	}
	if err != nil {
		util.RecordError(span, err)
		return apperr.Internal("failed to update order status", err)
	}

	switch {
	case !applied && before.Status != next:
		util.PaymentTransitionsRejectedTotal.WithLabelValues(before.Status, next).Inc()
		s.logger.Info("Ignoring status change for settled order",
			zap.Int64("order_id", before.ID),
			zap.String("status", before.Status),
			zap.String("reported", next))
	case applied && before.Status != next:
		s.logger.Info("Order status updated from payment notification",
			zap.Int64("order_id", before.ID),
			zap.String("from", before.Status),
			zap.String("to", next))

		switch next {
		case models.OrderStatusPaid:
			util.OrdersPaidTotal.Inc()
			s.publishPaid(ctx, before, status)
		case models.OrderStatusCancelled:
			util.OrdersCancelledTotal.Inc()
			s.publishCancelled(ctx, before.ID, status.TransactionStatus)
		}
	}

	current := before.Status
	if applied {
		current = next
	}
	if current == models.OrderStatusCancelled && !before.StockReleased {
		if err := s.releaseStock(ctx, before.ID); err != nil {
			util.RecordError(span, err)
			return apperr.Internal("failed to release order stock", err)
		}
	}

	return nil
}

// ResolveOrderStatus maps a gateway transaction status and fraud status to an
// order status. Unknown statuses leave the order pending.
func ResolveOrderStatus(transactionStatus, fraudStatus string) string {
	switch transactionStatus {
	case "capture":
		if fraudStatus == "accept" {
			return models.OrderStatusPaid
		}
		return models.OrderStatusPending
	case "settlement":
		return models.OrderStatusPaid
	case "cancel", "deny", "expire":
		return models.OrderStatusCancelled
	default:
		return models.OrderStatusPending
	}
}

// mergeLines folds repeated product ids into one line, keeping first-seen
// order. Each input line is already within MaxLineQuantity, so the running sum
// cannot overflow before it is checked.
func mergeLines(items []OrderItemRequest) ([]OrderItemRequest, error) {
	index := make(map[int64]int, len(items))
	merged := make([]OrderItemRequest, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			if merged[i].Quantity > MaxLineQuantity {
				return nil, apperr.Validation("quantity for product %d must be at most %d", item.ProductID, MaxLineQuantity)
			}
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

// calculateTotal calculates the total amount for an order
func calculateTotal(items []models.OrderItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

func buildSessionRequest(gatewayOrderID string, order *models.Order, items []models.OrderItem) *payment.SessionRequest {
	lines := make([]payment.Item, 0, len(items))
	for _, item := range items {
		lines = append(lines, payment.Item{
			ID:       strconv.FormatInt(item.ProductID, 10),
			Name:     item.ProductName,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}
	return &payment.SessionRequest{
		GatewayOrderID: gatewayOrderID,
		GrossAmount:    order.TotalAmount,
		CustomerName:   order.ShippingName,
		CustomerPhone:  order.ShippingPhone,
		Items:          lines,
	}
}

func (s *OrderService) cachedResponse(ctx context.Context, key string) *CreateOrderResponse {
	raw, ok, err := s.cache.GetIdempotencyKey(ctx, key)
	if err != nil {
		s.logger.Warn("Idempotency lookup failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var resp CreateOrderResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		s.logger.Warn("Discarding unreadable idempotency entry", zap.String("key", key), zap.Error(err))
		return nil
	}
	return &resp
}

func (s *OrderService) cacheResponse(ctx context.Context, key string, resp *CreateOrderResponse) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.cache.SetIdempotencyKey(ctx, key, raw, IdempotencyTTL); err != nil {
		s.logger.Warn("Failed to store idempotency entry", zap.String("key", key), zap.Error(err))
	}
}

func newBaseEvent(eventType string, at time.Time) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: at,
	}
}

func (s *OrderService) publishCreated(ctx context.Context, order *models.Order, gatewayOrderID string, items []models.OrderItem) {
	data := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		data = append(data, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent:      newBaseEvent(models.EventTypeOrderCreated, s.now()),
		OrderID:        order.ID,
		UserID:         order.UserID,
		GatewayOrderID: gatewayOrderID,
		TotalAmount:    order.TotalAmount,
		Items:          data,
	}
	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

func (s *OrderService) publishPaid(ctx context.Context, order *models.Order, status *payment.TransactionStatus) {
	event := &models.OrderPaidEvent{
		BaseEvent:            newBaseEvent(models.EventTypeOrderPaid, s.now()),
		OrderID:              order.ID,
		GatewayOrderID:       status.OrderID,
		GatewayTransactionID: status.TransactionID,
		Amount:               order.TotalAmount,
	}
	if err := s.eventPublisher.PublishOrderPaid(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPaid event", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

func (s *OrderService) publishCancelled(ctx context.Context, orderID int64, reason string) {
	event := &models.OrderCancelledEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderCancelled, s.now()),
		OrderID:   orderID,
		Reason:    reason,
	}
	if err := s.eventPublisher.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event",
			zap.Int64("order_id", orderID),
			zap.String("reason", reason),
			zap.Error(err))
	}
}
