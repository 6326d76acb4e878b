package service

import (
	"context"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cancelledEvent(id string, orderID int64) *models.OrderCancelledEvent {
	return &models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{EventID: id, EventType: models.EventTypeOrderCancelled, Timestamp: time.Now()},
		OrderID:   orderID,
		Reason:    "expire",
	}
}

func TestHandleOrderCancelledReleasesOnce(t *testing.T) {
	f := newOrderFixture()
	p := f.store.addProduct("Photopack", 50000, 10)
	resp, err := f.svc.CreateOrder(context.Background(), 1, "", checkout(OrderItemRequest{ProductID: p.ID, Quantity: 4}))
	require.NoError(t, err)
	require.Equal(t, 6, f.store.stock(p.ID))

	sc := NewStockCompensator(f.store)

	require.NoError(t, sc.HandleOrderCancelled(context.Background(), cancelledEvent("evt-1", resp.OrderID)))
	assert.Equal(t, 10, f.store.stock(p.ID))

	// Replay of the same event and a second event for the same order are both no-ops.
	require.NoError(t, sc.HandleOrderCancelled(context.Background(), cancelledEvent("evt-1", resp.OrderID)))
	require.NoError(t, sc.HandleOrderCancelled(context.Background(), cancelledEvent("evt-2", resp.OrderID)))
	assert.Equal(t, 10, f.store.stock(p.ID))
}

func TestHandleOrderCancelledUnknownOrder(t *testing.T) {
	st := newMemStore()
	sc := NewStockCompensator(st)

	require.NoError(t, sc.HandleOrderCancelled(context.Background(), cancelledEvent("evt-9", 404)))

	processed, err := st.IsEventProcessed(context.Background(), "evt-9")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestCompensatorAfterCallbackCancellation(t *testing.T) {
	f := newOrderFixture()
	orderID, gid := placeOrder(t, f, 3)
	productID := f.store.items[orderID][0].ProductID
	require.Equal(t, 7, f.store.stock(productID))

	require.NoError(t, f.svc.PaymentCallback(context.Background(), notify(gid, "deny")))
	require.Len(t, f.pub.cancelled, 1)
	require.Equal(t, 10, f.store.stock(productID))

	// The callback already returned the units; consuming the event must not add them again.
	sc := NewStockCompensator(f.store)
	require.NoError(t, sc.HandleOrderCancelled(context.Background(), f.pub.cancelled[0]))
	assert.Equal(t, 10, f.store.stock(productID))

	processed, err := f.store.IsEventProcessed(context.Background(), f.pub.cancelled[0].EventID)
	require.NoError(t, err)
	assert.True(t, processed)
}
