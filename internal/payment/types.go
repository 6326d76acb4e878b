// Package payment is the boundary to the hosted payment gateway. Everything the
// order workflow needs from the provider goes through the narrow types here.
package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidNotification means required notification fields are missing.
	ErrInvalidNotification = errors.New("invalid payment notification")
	// ErrInvalidSignature means the notification was not signed with our server key.
	ErrInvalidSignature = errors.New("invalid notification signature")
)

// Item is one line of the per-item breakdown sent with a session request.
type Item struct {
	ID       string
	Name     string
	Price    int64
	Quantity int
}

// SessionRequest describes a hosted checkout to create. The sum of
// Price*Quantity over Items must equal GrossAmount.
type SessionRequest struct {
	GatewayOrderID string
	GrossAmount    int64
	CustomerName   string
	CustomerPhone  string
	Items          []Item
}

// Validate checks the gateway-side gross amount invariant before any call is made.
func (r *SessionRequest) Validate() error {
	if r.GatewayOrderID == "" {
		return fmt.Errorf("gateway order id is required")
	}
	if r.GrossAmount <= 0 {
		return fmt.Errorf("gross amount must be positive")
	}
	var sum int64
	for _, it := range r.Items {
		if it.Quantity < 1 || it.Quantity > math.MaxInt32 {
			return fmt.Errorf("item %s has invalid quantity %d", it.ID, it.Quantity)
		}
		sum += it.Price * int64(it.Quantity)
	}
	if sum != r.GrossAmount {
		return fmt.Errorf("item total %d does not match gross amount %d", sum, r.GrossAmount)
	}
	return nil
}

// Session is a created hosted checkout.
type Session struct {
	Token       string
	RedirectURL string
}

// Notification is the asynchronous status push from the gateway. Only the
// fields needed to authenticate and locate the transaction are kept.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}

// Validate checks the fields required for signature verification.
func (n *Notification) Validate() error {
	if n.OrderID == "" || n.StatusCode == "" || n.GrossAmount == "" || n.SignatureKey == "" {
		return ErrInvalidNotification
	}
	return nil
}

// TransactionStatus is the gateway's authoritative view of a transaction.
type TransactionStatus struct {
	OrderID           string
	TransactionID     string
	TransactionStatus string
	FraudStatus       string
}

// Signature computes the notification signature:
// hex(SHA-512(order_id + status_code + gross_amount + server_key)).
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks n against serverKey in constant time.
func VerifySignature(n *Notification, serverKey string) error {
	expected := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
