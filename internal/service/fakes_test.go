package service

import (
	"context"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/store"
)

// memStore is an in-memory stand-in for the Postgres store. Stock reservation
// is atomic under mu, like the conditional UPDATE it replaces.
type memStore struct {
	mu sync.Mutex

	nextID    int64
	users     map[int64]*models.User
	products  map[int64]*models.Product
	orders    map[int64]*models.Order
	items     map[int64][]models.OrderItem
	members   []models.Member
	events    []models.ScheduleEvent
	processed map[string]bool

	createUserErr error
	attachErr     error
	releaseErr    error

	eventsFrom      time.Time
	eventsStart     time.Time
	eventsEnd       time.Time
	featuredLimit   int
	productCategory string
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[int64]*models.User),
		products:  make(map[int64]*models.Product),
		orders:    make(map[int64]*models.Order),
		items:     make(map[int64][]models.OrderItem),
		processed: make(map[string]bool),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addProduct(name string, price int64, stock int) *models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &models.Product{ID: m.id(), Name: name, Price: price, Stock: stock, IsActive: true}
	m.products[p.ID] = p
	return p
}

func (m *memStore) stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *memStore) order(id int64) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.orders[id]
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// UserStore

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createUserErr != nil {
		return m.createUserErr
	}
	user.ID = m.id()
	user.CreatedAt = time.Now()
	u := *user
	m.users[u.ID] = &u
	return nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *memStore) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.GetUserByEmail(ctx, email)
	return err == nil, nil
}

// CatalogStore

func (m *memStore) ListMembers(context.Context) ([]models.Member, error) {
	return m.members, nil
}

func (m *memStore) GetMember(_ context.Context, id int64) (*models.Member, error) {
	for i := range m.members {
		if m.members[i].ID == id {
			return &m.members[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListProducts(_ context.Context, category string) ([]models.ProductWithMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.productCategory = category
	var out []models.ProductWithMember
	for _, p := range m.products {
		if p.IsActive && (category == "" || p.Category == category) {
			out = append(out, models.ProductWithMember{Product: *p})
		}
	}
	return out, nil
}

func (m *memStore) GetProduct(_ context.Context, id int64) (*models.ProductWithMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || !p.IsActive {
		return nil, store.ErrNotFound
	}
	return &models.ProductWithMember{Product: *p}, nil
}

func (m *memStore) ListEventsFrom(_ context.Context, from time.Time) ([]models.ScheduleEvent, error) {
	m.eventsFrom = from
	return m.events, nil
}

func (m *memStore) ListFeaturedEventsFrom(_ context.Context, from time.Time, limit int) ([]models.ScheduleEvent, error) {
	m.eventsFrom = from
	m.featuredLimit = limit
	return m.events, nil
}

func (m *memStore) ListEventsBetween(_ context.Context, start, end time.Time) ([]models.ScheduleEvent, error) {
	m.eventsStart = start
	m.eventsEnd = end
	return m.events, nil
}

// OrderStore

func (m *memStore) GetActiveProduct(_ context.Context, id int64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || !p.IsActive {
		return nil, store.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (m *memStore) CreateOrder(_ context.Context, order *models.Order, items []models.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, it := range items {
		p, ok := m.products[it.ProductID]
		if !ok || !p.IsActive || p.Stock < it.Quantity {
			return &store.InsufficientStockError{ProductID: it.ProductID, Requested: it.Quantity}
		}
	}
	for _, it := range items {
		m.products[it.ProductID].Stock -= it.Quantity
	}

	order.ID = m.id()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	o := *order
	m.orders[o.ID] = &o

	for i := range items {
		items[i].ID = m.id()
		items[i].OrderID = order.ID
	}
	m.items[order.ID] = append([]models.OrderItem(nil), items...)
	return nil
}

func (m *memStore) AttachPaymentSession(_ context.Context, orderID int64, gatewayOrderID, paymentURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attachErr != nil {
		return m.attachErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.GatewayOrderID = &gatewayOrderID
	o.PaymentURL = &paymentURL
	return nil
}

func (m *memStore) CancelPendingOrder(_ context.Context, orderID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.Status != models.OrderStatusPending {
		return false, nil
	}
	o.Status = models.OrderStatusCancelled
	return true, nil
}

func (m *memStore) ReleaseOrderStock(_ context.Context, orderID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.releaseErr != nil {
		return false, m.releaseErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return false, store.ErrNotFound
	}
	if o.StockReleased {
		return false, nil
	}
	for _, it := range m.items[orderID] {
		if p, ok := m.products[it.ProductID]; ok {
			p.Stock += it.Quantity
		}
	}
	o.StockReleased = true
	return true, nil
}

func (m *memStore) GetOrdersWithItemsByUserID(_ context.Context, userID int64) ([]models.OrderWithItems, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.OrderWithItems
	for _, o := range m.orders {
		if o.UserID != userID {
			continue
		}
		entry := models.OrderWithItems{Order: *o}
		for _, it := range m.items[o.ID] {
			entry.Items = append(entry.Items, models.OrderItemView{OrderItem: it})
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m *memStore) ReconcilePayment(_ context.Context, gatewayOrderID, status, transactionID string) (*models.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.GatewayOrderID == nil || *o.GatewayOrderID != gatewayOrderID {
			continue
		}
		before := *o
		if !models.CanTransition(o.Status, status) {
			return &before, false, nil
		}
		o.Status = status
		if transactionID != "" {
			o.GatewayTransactionID = &transactionID
		}
		return &before, true, nil
	}
	return nil, false, store.ErrNotFound
}

// StockStore

func (m *memStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed[eventID], nil
}

func (m *memStore) MarkEventProcessed(_ context.Context, eventID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[eventID] = true
	return nil
}

// fakeGateway records session requests and answers verifications from a map.
type fakeGateway struct {
	mu        sync.Mutex
	requests  []*payment.SessionRequest
	createErr error
	verifyErr error
	statuses  map[string]*payment.TransactionStatus
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: make(map[string]*payment.TransactionStatus)}
}

func (g *fakeGateway) CreateSession(_ context.Context, req *payment.SessionRequest) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &payment.Session{
		Token:       "token-" + req.GatewayOrderID,
		RedirectURL: "https://pay.example/" + req.GatewayOrderID,
	}, nil
}

func (g *fakeGateway) VerifyNotification(_ context.Context, n *payment.Notification) (*payment.TransactionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	if st, ok := g.statuses[n.OrderID]; ok {
		return st, nil
	}
	return &payment.TransactionStatus{
		OrderID:           n.OrderID,
		TransactionID:     n.TransactionID,
		TransactionStatus: n.TransactionStatus,
		FraudStatus:       n.FraudStatus,
	}, nil
}

func (g *fakeGateway) sessionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type fakePublisher struct {
	mu        sync.Mutex
	created   []*models.OrderCreatedEvent
	paid      []*models.OrderPaidEvent
	cancelled []*models.OrderCancelledEvent
	err       error
}

func (p *fakePublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return p.err
}

func (p *fakePublisher) PublishOrderPaid(_ context.Context, e *models.OrderPaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paid = append(p.paid, e)
	return p.err
}

func (p *fakePublisher) PublishOrderCancelled(_ context.Context, e *models.OrderCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, e)
	return p.err
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) GetIdempotencyKey(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memCache) SetIdempotencyKey(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}
