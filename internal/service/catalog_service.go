package service

import (
	"context"
	"errors"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"
)

// FeaturedEventsLimit caps the featured schedule listing.
const FeaturedEventsLimit = 3

const monthLayout = "2006-01"

// CatalogService serves members, products and the event schedule
type CatalogService struct {
	store CatalogStore
	now   func() time.Time
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store CatalogStore) *CatalogService {
	return &CatalogService{store: store, now: time.Now}
}

func (s *CatalogService) ListMembers(ctx context.Context) ([]models.Member, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListMembers")
	defer span.End()

	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list members", err)
	}
	if members == nil {
		members = []models.Member{}
	}
	return members, nil
}

func (s *CatalogService) GetMember(ctx context.Context, id int64) (*models.Member, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetMember")
	defer span.End()

	if id <= 0 {
		return nil, apperr.Validation("invalid member id")
	}
	member, err := s.store.GetMember(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("member not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load member", err)
	}
	return member, nil
}

// ListProducts returns active products, newest first. An empty category means all.
func (s *CatalogService) ListProducts(ctx context.Context, category string) ([]models.ProductWithMember, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	products, err := s.store.ListProducts(ctx, category)
	if err != nil {
		return nil, apperr.Internal("failed to list products", err)
	}
	if products == nil {
		products = []models.ProductWithMember{}
	}
	return products, nil
}

// GetProduct returns an active product by id
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.ProductWithMember, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct")
	defer span.End()

	if id <= 0 {
		return nil, apperr.Validation("invalid product id")
	}
	product, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("product not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load product", err)
	}
	return product, nil
}

// UpcomingEvents lists events from now on, soonest first
func (s *CatalogService) UpcomingEvents(ctx context.Context) ([]models.ScheduleEvent, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpcomingEvents")
	defer span.End()

	events, err := s.store.ListEventsFrom(ctx, s.now())
	return eventsOrEmpty(events, err)
}

// FeaturedEvents lists the next few featured events
func (s *CatalogService) FeaturedEvents(ctx context.Context) ([]models.ScheduleEvent, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.FeaturedEvents")
	defer span.End()

	events, err := s.store.ListFeaturedEventsFrom(ctx, s.now(), FeaturedEventsLimit)
	return eventsOrEmpty(events, err)
}

// EventsByMonth lists events in the calendar month given as YYYY-MM.
func (s *CatalogService) EventsByMonth(ctx context.Context, month string) ([]models.ScheduleEvent, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.EventsByMonth")
	defer span.End()

	start, end, err := MonthRange(month)
	if err != nil {
		return nil, err
	}
	events, err := s.store.ListEventsBetween(ctx, start, end)
	return eventsOrEmpty(events, err)
}

// MonthRange returns [first day of month, first day of next month) in UTC.
func MonthRange(month string) (time.Time, time.Time, error) {
	t, err := time.Parse(monthLayout, month)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation("month must be in YYYY-MM format")
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}

func eventsOrEmpty(events []models.ScheduleEvent, err error) ([]models.ScheduleEvent, error) {
	if err != nil {
		return nil, apperr.Internal("failed to list events", err)
	}
	if events == nil {
		events = []models.ScheduleEvent{}
	}
	return events, nil
}
