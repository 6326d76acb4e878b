package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"storefront/internal/models"
)

const productWithMemberColumns = `
	p.*, m.name AS member_name, m.member_color AS member_color
	FROM products p
	LEFT JOIN members m ON m.id = p.member_id`

// ListMembers returns all members in display order.
func (s *Store) ListMembers(ctx context.Context) ([]models.Member, error) {
	members := []models.Member{}
	err := s.db.SelectContext(ctx, &members,
		"SELECT * FROM members ORDER BY display_order ASC, id ASC")
	return members, err
}

// GetMember retrieves a member by ID
func (s *Store) GetMember(ctx context.Context, id int64) (*models.Member, error) {
	var member models.Member
	err := s.db.GetContext(ctx, &member, "SELECT * FROM members WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// ListProducts returns active products, newest first. An empty category means all.
func (s *Store) ListProducts(ctx context.Context, category string) ([]models.ProductWithMember, error) {
	products := []models.ProductWithMember{}
	query := "SELECT" + productWithMemberColumns + `
		WHERE p.is_active AND ($1 = '' OR p.category = $1)
		ORDER BY p.created_at DESC, p.id DESC`

	if err := s.db.SelectContext(ctx, &products, query, category); err != nil {
		return nil, err
	}
	for i := range products {
		products[i].AttachMember()
	}
	return products, nil
}

// GetProduct retrieves an active product with its member summary
func (s *Store) GetProduct(ctx context.Context, id int64) (*models.ProductWithMember, error) {
	var product models.ProductWithMember
	query := "SELECT" + productWithMemberColumns + " WHERE p.id = $1 AND p.is_active"

	err := s.db.GetContext(ctx, &product, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	product.AttachMember()
	return &product, nil
}

// GetActiveProduct retrieves the bare product row used for pricing an order.
func (s *Store) GetActiveProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 AND is_active", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListEventsFrom returns events on or after from, soonest first.
func (s *Store) ListEventsFrom(ctx context.Context, from time.Time) ([]models.ScheduleEvent, error) {
	events := []models.ScheduleEvent{}
	err := s.db.SelectContext(ctx, &events,
		"SELECT * FROM schedule WHERE event_date >= $1 ORDER BY event_date ASC", from)
	return events, err
}

// ListFeaturedEventsFrom returns up to limit featured events on or after from.
func (s *Store) ListFeaturedEventsFrom(ctx context.Context, from time.Time, limit int) ([]models.ScheduleEvent, error) {
	events := []models.ScheduleEvent{}
	err := s.db.SelectContext(ctx, &events, `
		SELECT * FROM schedule
		WHERE is_featured AND event_date >= $1
		ORDER BY event_date ASC
		LIMIT $2`, from, limit)
	return events, err
}

// ListEventsBetween returns events in [start, end), soonest first.
func (s *Store) ListEventsBetween(ctx context.Context, start, end time.Time) ([]models.ScheduleEvent, error) {
	events := []models.ScheduleEvent{}
	err := s.db.SelectContext(ctx, &events, `
		SELECT * FROM schedule
		WHERE event_date >= $1 AND event_date < $2
		ORDER BY event_date ASC`, start, end)
	return events, err
}
