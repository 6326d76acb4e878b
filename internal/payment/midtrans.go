package payment

import (
	"context"
	"strconv"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/util"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Midtrans limits item names to 50 characters.
const maxItemNameLength = 50

type snapClient interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

type coreClient interface {
	CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, *midtrans.Error)
}

// MidtransGateway creates Snap checkouts and verifies notifications against
// the Core API.
type MidtransGateway struct {
	snap      snapClient
	core      coreClient
	serverKey string
	logger    *zap.Logger
}

// NewMidtransGateway creates a gateway for the sandbox or production environment.
func NewMidtransGateway(serverKey string, isProduction bool) *MidtransGateway {
	env := midtrans.Sandbox
	if isProduction {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(serverKey, env)

	var c coreapi.Client
	c.New(serverKey, env)

	return &MidtransGateway{
		snap:      &s,
		core:      &c,
		serverKey: serverKey,
		logger:    util.GetLogger(),
	}
}

// CreateSession creates a hosted checkout for the request.
func (g *MidtransGateway) CreateSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	_, span := util.StartSpan(ctx, "MidtransGateway.CreateSession",
		attribute.String("payment.gateway_order_id", req.GatewayOrderID),
		attribute.Int64("payment.gross_amount", req.GrossAmount))
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, apperr.Internal("invalid payment session request", err)
	}

	start := time.Now()
	resp, mErr := g.snap.CreateTransaction(toSnapRequest(req))
	util.GatewayRequestLatency.WithLabelValues("create_transaction").Observe(time.Since(start).Seconds())

	if mErr != nil {
		util.GatewayFailuresTotal.WithLabelValues("create_transaction").Inc()
		util.RecordError(span, mErr)
		g.logger.Error("Midtrans createTransaction failed",
			zap.String("gateway_order_id", req.GatewayOrderID),
			zap.Int("status_code", mErr.StatusCode),
			zap.String("message", mErr.Message))
		return nil, apperr.Gateway("failed to create payment session", mErr.StatusCode, mErr)
	}
	if resp == nil || resp.RedirectURL == "" {
		util.GatewayFailuresTotal.WithLabelValues("create_transaction").Inc()
		return nil, apperr.Gateway("payment gateway returned an empty session", 0, nil)
	}

	return &Session{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// VerifyNotification authenticates n by its signature and then re-queries the
// gateway. The returned status comes from the gateway, not from n.
func (g *MidtransGateway) VerifyNotification(ctx context.Context, n *Notification) (*TransactionStatus, error) {
	_, span := util.StartSpan(ctx, "MidtransGateway.VerifyNotification")
	defer span.End()

	if err := n.Validate(); err != nil {
		return nil, apperr.Validation("payment notification is missing required fields")
	}
	if err := VerifySignature(n, g.serverKey); err != nil {
		util.RecordError(span, err)
		return nil, &apperr.Error{Kind: apperr.KindUnauthorized, Message: "invalid notification signature", Err: err}
	}

	start := time.Now()
	resp, mErr := g.core.CheckTransaction(n.OrderID)
	util.GatewayRequestLatency.WithLabelValues("check_transaction").Observe(time.Since(start).Seconds())

	if mErr != nil {
		util.GatewayFailuresTotal.WithLabelValues("check_transaction").Inc()
		util.RecordError(span, mErr)
		return nil, apperr.Gateway("failed to verify payment notification", mErr.StatusCode, mErr)
	}
	if resp == nil || resp.OrderID != n.OrderID {
		util.GatewayFailuresTotal.WithLabelValues("check_transaction").Inc()
		return nil, apperr.Gateway("payment gateway returned a mismatched transaction", 0, nil)
	}

	return &TransactionStatus{
		OrderID:           resp.OrderID,
		TransactionID:     resp.TransactionID,
		TransactionStatus: resp.TransactionStatus,
		FraudStatus:       resp.FraudStatus,
	}, nil
}

func toSnapRequest(req *SessionRequest) *snap.Request {
	items := make([]midtrans.ItemDetails, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, midtrans.ItemDetails{
			ID:    it.ID,
			Name:  truncate(it.Name, maxItemNameLength),
			Price: it.Price,
			Qty:   int32(it.Quantity),
		})
	}

	return &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.GatewayOrderID,
			GrossAmt: req.GrossAmount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Phone: req.CustomerPhone,
		},
		Items: &items,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// GatewayOrderID derives the gateway-facing id for an order. The millisecond
// suffix keeps retries for the same order from colliding at the gateway.
func GatewayOrderID(orderID int64, at time.Time) string {
	return "ORDER-" + strconv.FormatInt(orderID, 10) + "-" + strconv.FormatInt(at.UnixMilli(), 10)
}
