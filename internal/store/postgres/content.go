package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
)

const contentColumns = `id, account_id, listing_id, kind, title, description, location,
	starts_at, ends_at, moderation_state,
	show_on_page, show_on_homepage, show_in_newsletter, show_on_social,
	plan_at_creation, period_key, created_at, updated_at, published_at`

// channelColumns maps each channel to its flag column.
var channelColumns = map[domain.Channel]string{
	domain.ChannelEstablishmentPage: "show_on_page",
	domain.ChannelHomepage:          "show_on_homepage",
	domain.ChannelNewsletter:        "show_in_newsletter",
	domain.ChannelSocial:            "show_on_social",
}

// CreateContent stores a new item.
func (s *Store) CreateContent(ctx context.Context, item domain.ContentItem) error {
	const q = `
INSERT INTO content_items (` + contentColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := s.db.Exec(ctx, q,
		item.ID,
		item.AccountID,
		item.ListingID,
		string(item.Kind),
		item.Title,
		item.Description,
		item.Location,
		item.StartsAt,
		item.EndsAt,
		string(item.ModerationState),
		item.Flags.EstablishmentPage,
		item.Flags.Homepage,
		item.Flags.Newsletter,
		item.Flags.Social,
		string(item.PlanAtCreation),
		string(item.PeriodKey),
		item.CreatedAt,
		item.UpdatedAt,
		item.PublishedAt,
	)
	return err
}

// GetContent returns the item or ErrNoRecord.
func (s *Store) GetContent(ctx context.Context, id uuid.UUID) (*domain.ContentItem, error) {
	const q = `SELECT ` + contentColumns + ` FROM content_items WHERE id = $1`

	item, err := scanContent(s.db.QueryRow(ctx, q, id))
	if err != nil {
		return nil, noRecord(err)
	}
	return &item, nil
}

// UpdateModerationState writes the new state if the stored one is still from.
func (s *Store) UpdateModerationState(ctx context.Context, item domain.ContentItem, from domain.ModerationState) error {
	const q = `
UPDATE content_items
SET moderation_state = $3,
    updated_at = $4,
    published_at = $5
WHERE id = $1
  AND moderation_state = $2`

	tag, err := s.db.Exec(ctx, q, item.ID, string(from), string(item.ModerationState), item.UpdatedAt, item.PublishedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing matched: either the row is gone or its state moved on.
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM content_items WHERE id = $1)`, item.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNoRecord
	}
	return domain.ErrStateConflict
}

// DeleteContent removes the item.
func (s *Store) DeleteContent(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM content_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoRecord
	}
	return nil
}

// ListContentByAccount returns the account's items, newest first.
func (s *Store) ListContentByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.ContentItem, error) {
	const q = `SELECT ` + contentColumns + `
	           FROM content_items
	           WHERE account_id = $1
	           ORDER BY created_at DESC`

	return s.queryContent(ctx, q, accountID)
}

// ListPublishedByChannel returns published items flagged for channel, soonest first.
func (s *Store) ListPublishedByChannel(ctx context.Context, channel domain.Channel, limit int) ([]domain.ContentItem, error) {
	column, ok := channelColumns[channel]
	if !ok {
		return nil, fmt.Errorf("postgres: unknown channel %q", channel)
	}

	q := `SELECT ` + contentColumns + `
	      FROM content_items
	      WHERE moderation_state = $1 AND ` + column + `
	      ORDER BY starts_at
	      LIMIT $2`

	return s.queryContent(ctx, q, string(domain.ModerationPublished), limit)
}

func (s *Store) queryContent(ctx context.Context, q string, args ...any) ([]domain.ContentItem, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ContentItem
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanContent(row scanner) (domain.ContentItem, error) {
	var (
		item                         domain.ContentItem
		kind, state, plan, periodKey string
	)
	if err := row.Scan(
		&item.ID,
		&item.AccountID,
		&item.ListingID,
		&kind,
		&item.Title,
		&item.Description,
		&item.Location,
		&item.StartsAt,
		&item.EndsAt,
		&state,
		&item.Flags.EstablishmentPage,
		&item.Flags.Homepage,
		&item.Flags.Newsletter,
		&item.Flags.Social,
		&plan,
		&periodKey,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.PublishedAt,
	); err != nil {
		return domain.ContentItem{}, err
	}
	item.Kind = domain.ContentKind(kind)
	item.ModerationState = domain.ModerationState(state)
	item.PlanAtCreation = domain.PlanID(plan)
	item.PeriodKey = domain.PeriodKey(periodKey)
	return item, nil
}
