package payment

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"storefront/internal/apperr"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSnap struct {
	got  *snap.Request
	resp *snap.Response
	err  *midtrans.Error
}

func (f *fakeSnap) CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error) {
	f.got = req
	return f.resp, f.err
}

type fakeCore struct {
	calls int
	resp  *coreapi.TransactionStatusResponse
	err   *midtrans.Error
}

func (f *fakeCore) CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, *midtrans.Error) {
	f.calls++
	return f.resp, f.err
}

func newTestGateway(s snapClient, c coreClient) *MidtransGateway {
	return &MidtransGateway{snap: s, core: c, serverKey: "server-key", logger: zap.NewNop()}
}

func signedNotification(orderID, status string) *Notification {
	n := &Notification{
		OrderID:           orderID,
		StatusCode:        "200",
		GrossAmount:       "150000.00",
		TransactionStatus: status,
		TransactionID:     "txn-1",
	}
	n.SignatureKey = Signature(n.OrderID, n.StatusCode, n.GrossAmount, "server-key")
	return n
}

func TestSignature(t *testing.T) {
	sig := Signature("ORDER-1-1700000000000", "200", "150000.00", "server-key")
	assert.Len(t, sig, 128)
	assert.Equal(t, sig, Signature("ORDER-1-1700000000000", "200", "150000.00", "server-key"))
	assert.NotEqual(t, sig, Signature("ORDER-1-1700000000000", "200", "150000.00", "other-key"))
}

func TestVerifySignature(t *testing.T) {
	n := signedNotification("ORDER-1-1", "settlement")
	assert.NoError(t, VerifySignature(n, "server-key"))

	n.GrossAmount = "1.00"
	assert.ErrorIs(t, VerifySignature(n, "server-key"), ErrInvalidSignature)
}

func TestSessionRequestValidate(t *testing.T) {
	req := &SessionRequest{
		GatewayOrderID: "ORDER-1-1",
		GrossAmount:    250000,
		Items: []Item{
			{ID: "1", Name: "Photopack", Price: 50000, Quantity: 3},
			{ID: "2", Name: "Towel", Price: 100000, Quantity: 1},
		},
	}
	assert.NoError(t, req.Validate())

	req.GrossAmount = 200000
	assert.Error(t, req.Validate())

	req.GrossAmount = 50000
	req.Items = []Item{{ID: "1", Name: "Photopack", Price: 50000, Quantity: 1}, {ID: "2", Name: "Towel", Price: 100000, Quantity: 0}}
	assert.EqualError(t, req.Validate(), "item 2 has invalid quantity 0")
}

func TestCreateSession(t *testing.T) {
	s := &fakeSnap{resp: &snap.Response{Token: "tok", RedirectURL: "https://pay.example/tok"}}
	g := newTestGateway(s, &fakeCore{})

	session, err := g.CreateSession(context.Background(), &SessionRequest{
		GatewayOrderID: "ORDER-7-1",
		GrossAmount:    100000,
		CustomerName:   "Rina",
		CustomerPhone:  "0812",
		Items:          []Item{{ID: "3", Name: strings.Repeat("x", 80), Price: 50000, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "tok", session.Token)
	assert.Equal(t, "https://pay.example/tok", session.RedirectURL)

	require.NotNil(t, s.got)
	assert.Equal(t, "ORDER-7-1", s.got.TransactionDetails.OrderID)
	assert.Equal(t, int64(100000), s.got.TransactionDetails.GrossAmt)
	assert.Equal(t, "Rina", s.got.CustomerDetail.FName)
	items := *s.got.Items
	require.Len(t, items, 1)
	assert.Len(t, items[0].Name, maxItemNameLength)
	assert.Equal(t, int32(2), items[0].Qty)
}

func TestCreateSessionProviderError(t *testing.T) {
	cases := []struct {
		name           string
		providerStatus int
		wantStatus     int
	}{
		{"client error", http.StatusBadRequest, http.StatusBadRequest},
		{"server error", http.StatusBadGateway, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &fakeSnap{err: &midtrans.Error{StatusCode: tc.providerStatus, Message: "rejected"}}
			g := newTestGateway(s, &fakeCore{})

			_, err := g.CreateSession(context.Background(), &SessionRequest{
				GatewayOrderID: "ORDER-1-1",
				GrossAmount:    1000,
				Items:          []Item{{ID: "1", Name: "Pin", Price: 1000, Quantity: 1}},
			})
			require.Error(t, err)

			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperr.KindGateway, appErr.Kind)
			assert.Equal(t, tc.wantStatus, appErr.HTTPStatus())
		})
	}
}

func TestVerifyNotificationUsesGatewayStatus(t *testing.T) {
	core := &fakeCore{resp: &coreapi.TransactionStatusResponse{
		OrderID:           "ORDER-5-1",
		TransactionID:     "txn-real",
		TransactionStatus: "settlement",
	}}
	g := newTestGateway(&fakeSnap{}, core)

	// Payload claims "pending"; the gateway's answer wins.
	status, err := g.VerifyNotification(context.Background(), signedNotification("ORDER-5-1", "pending"))
	require.NoError(t, err)
	assert.Equal(t, "settlement", status.TransactionStatus)
	assert.Equal(t, "txn-real", status.TransactionID)
	assert.Equal(t, 1, core.calls)
}

func TestVerifyNotificationRejectsBadSignature(t *testing.T) {
	core := &fakeCore{}
	g := newTestGateway(&fakeSnap{}, core)

	n := signedNotification("ORDER-5-1", "settlement")
	n.SignatureKey = "forged"

	_, err := g.VerifyNotification(context.Background(), n)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	assert.Zero(t, core.calls)
}

func TestVerifyNotificationMissingFields(t *testing.T) {
	g := newTestGateway(&fakeSnap{}, &fakeCore{})
	_, err := g.VerifyNotification(context.Background(), &Notification{OrderID: "ORDER-1-1"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestVerifyNotificationMismatchedOrder(t *testing.T) {
	core := &fakeCore{resp: &coreapi.TransactionStatusResponse{OrderID: "ORDER-9-9", TransactionStatus: "settlement"}}
	g := newTestGateway(&fakeSnap{}, core)

	_, err := g.VerifyNotification(context.Background(), signedNotification("ORDER-5-1", "settlement"))
	assert.True(t, apperr.Is(err, apperr.KindGateway))
}

func TestGatewayOrderID(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "ORDER-42-1700000000123", GatewayOrderID(42, at))
}
