package models

import "time"

// User is a registered customer. PasswordHash never leaves the server.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Phone        *string   `db:"phone" json:"phone"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Member is a group member shown on the profile pages.
type Member struct {
	ID           int64      `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Nickname     string     `db:"nickname" json:"nickname"`
	Position     string     `db:"position" json:"position"`
	MemberColor  string     `db:"member_color" json:"member_color"`
	ImageURL     string     `db:"image_url" json:"image_url"`
	Bio          string     `db:"bio" json:"bio"`
	Catchphrase  string     `db:"catchphrase" json:"catchphrase"`
	Birthdate    *time.Time `db:"birthdate" json:"birthdate"`
	DisplayOrder int        `db:"display_order" json:"display_order"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// MemberSummary is embedded in product responses.
type MemberSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	MemberColor string `json:"member_color"`
}

// Product represents a product in the catalog
type Product struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Price       int64     `db:"price" json:"price"`
	Stock       int       `db:"stock" json:"stock"`
	Category    string    `db:"category" json:"category"`
	ImageURL    string    `db:"image_url" json:"image_url"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	MemberID    *int64    `db:"member_id" json:"member_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ProductWithMember is a product joined to its owning member, if any.
type ProductWithMember struct {
	Product
	MemberName  *string        `db:"member_name" json:"-"`
	MemberColor *string        `db:"member_color" json:"-"`
	Member      *MemberSummary `db:"-" json:"members"`
}

// AttachMember fills Member from the joined columns.
func (p *ProductWithMember) AttachMember() {
	if p.MemberID == nil {
		p.Member = nil
		return
	}
	p.Member = &MemberSummary{
		ID:          *p.MemberID,
		Name:        derefString(p.MemberName),
		MemberColor: derefString(p.MemberColor),
	}
}

// ScheduleEvent is an entry in the public event calendar.
type ScheduleEvent struct {
	ID          int64     `db:"id" json:"id"`
	EventName   string    `db:"event_name" json:"event_name"`
	Description string    `db:"description" json:"description"`
	EventDate   time.Time `db:"event_date" json:"event_date"`
	Location    string    `db:"location" json:"location"`
	EventType   string    `db:"event_type" json:"event_type"`
	IsFeatured  bool      `db:"is_featured" json:"is_featured"`
	ImageURL    string    `db:"image_url" json:"image_url"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Order represents a customer order
type Order struct {
	ID                   int64     `db:"id" json:"id"`
	UserID               int64     `db:"user_id" json:"user_id"`
	TotalAmount          int64     `db:"total_amount" json:"total_amount"`
	ShippingAddress      string    `db:"shipping_address" json:"shipping_address"`
	ShippingName         string    `db:"shipping_name" json:"shipping_name"`
	ShippingPhone        string    `db:"shipping_phone" json:"shipping_phone"`
	Notes                *string   `db:"notes" json:"notes"`
	Status               string    `db:"status" json:"status"`
	GatewayOrderID       *string   `db:"gateway_order_id" json:"gateway_order_id"`
	PaymentURL           *string   `db:"payment_url" json:"payment_url"`
	GatewayTransactionID *string   `db:"gateway_transaction_id" json:"gateway_transaction_id"`
	StockReleased        bool      `db:"stock_released" json:"-"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// OrderItem is an immutable line snapshot taken when the order is placed.
type OrderItem struct {
	ID          int64  `db:"id" json:"id"`
	OrderID     int64  `db:"order_id" json:"order_id"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Quantity    int    `db:"quantity" json:"quantity"`
	Price       int64  `db:"price" json:"price"`
}

// Subtotal is price times quantity.
func (i OrderItem) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}

// ProductRef is the current display data of the product behind a line item.
type ProductRef struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// OrderItemView is a line item joined to the current product for display.
// Product is nil when the product row no longer exists.
type OrderItemView struct {
	OrderItem
	CurrentName     *string     `db:"current_name" json:"-"`
	CurrentImageURL *string     `db:"current_image_url" json:"-"`
	Product         *ProductRef `db:"-" json:"products"`
}

// AttachProduct fills Product from the joined columns.
func (v *OrderItemView) AttachProduct() {
	if v.CurrentName == nil {
		v.Product = nil
		return
	}
	v.Product = &ProductRef{Name: *v.CurrentName, ImageURL: derefString(v.CurrentImageURL)}
}

// OrderWithItems is one entry of a user's order history.
type OrderWithItems struct {
	Order
	Items []OrderItemView `json:"order_items"`
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

// CanTransition reports whether an order may move from one status to another.
// Re-applying pending to a pending order is allowed so a newer transaction id can be recorded.
func CanTransition(from, to string) bool {
	if from != OrderStatusPending {
		return false
	}
	switch to {
	case OrderStatusPending, OrderStatusPaid, OrderStatusCancelled:
		return true
	}
	return false
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
