package service

import (
	"context"
	"testing"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthRange(t *testing.T) {
	start, end, err := MonthRange("2024-12")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), end)

	for _, bad := range []string{"2024-13", "2024-1", "december", "", "2024-12-01"} {
		_, _, err := MonthRange(bad)
		assert.True(t, apperr.Is(err, apperr.KindValidation), bad)
	}
}

func TestEventsByMonthQueriesRange(t *testing.T) {
	st := newMemStore()
	svc := NewCatalogService(st)

	events, err := svc.EventsByMonth(context.Background(), "2025-02")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), st.eventsStart)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), st.eventsEnd)

	_, err = svc.EventsByMonth(context.Background(), "02-2025")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUpcomingAndFeaturedEvents(t *testing.T) {
	st := newMemStore()
	st.events = []models.ScheduleEvent{{ID: 1, EventName: "Theater Show"}}
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	svc := NewCatalogService(st)
	svc.now = func() time.Time { return now }

	events, err := svc.UpcomingEvents(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, now, st.eventsFrom)

	_, err = svc.FeaturedEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FeaturedEventsLimit, st.featuredLimit)
}

func TestGetMemberAndProduct(t *testing.T) {
	st := newMemStore()
	st.members = []models.Member{{ID: 7, Name: "Freya"}}
	p := st.addProduct("Photopack", 50000, 10)
	svc := NewCatalogService(st)

	member, err := svc.GetMember(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Freya", member.Name)

	_, err = svc.GetMember(context.Background(), 8)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.GetMember(context.Background(), 0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	product, err := svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Photopack", product.Name)

	_, err = svc.GetProduct(context.Background(), 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListsAreNeverNil(t *testing.T) {
	svc := NewCatalogService(newMemStore())

	members, err := svc.ListMembers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, members)

	products, err := svc.ListProducts(context.Background(), "merch")
	require.NoError(t, err)
	assert.NotNil(t, products)
}
