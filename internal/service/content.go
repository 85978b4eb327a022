package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/metrics"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/validate"
)

const (
	defaultChannelLimit = 10
	maxChannelLimit     = 50
)

// ContentService creates merchant content under quota and moves it through
// moderation.
type ContentService interface {
	// CheckQuota reports whether the account may perform action now.
	CheckQuota(ctx context.Context, accountID uuid.UUID, action domain.Action) (domain.Decision, error)

	// CreateContentWithDistribution reserves an event slot, snapshots the plan's channel flags and
	// stores the item as a draft. A quota denial is returned as the Decision
	// with a nil item and a nil error.
	CreateContentWithDistribution(ctx context.Context, actor domain.Actor, accountID uuid.UUID, draft domain.ContentDraft) (*domain.ContentItem, domain.Decision, error)

	// TransitionModeration applies a moderation transition on behalf of
	// actor. The write is a compare-and-set on the state the item was read in.
	TransitionModeration(ctx context.Context, id uuid.UUID, target domain.ModerationState, actor domain.Actor) (*domain.ContentItem, error)

	// Get returns an item. Unpublished items are only shown to the owner
	// and moderators.
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.ContentItem, error)

	// Delete removes an item. The quota slot it consumed is not refunded.
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error

	// ListAccount returns all items of an account, newest first.
	ListAccount(ctx context.Context, actor domain.Actor, accountID uuid.UUID) ([]domain.ContentItem, error)

	// ListChannel returns items visible on channel, soonest first.
	ListChannel(ctx context.Context, channel domain.Channel, limit int) ([]domain.ContentItem, error)
}

type contentService struct {
	accounts AccountService
	quota    QuotaGate
	content  domain.ContentStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewContentService creates a new ContentService. A nil clock defaults to time.Now.
func NewContentService(accounts AccountService, quota QuotaGate, content domain.ContentStore, logger *slog.Logger, clock func() time.Time) ContentService {
	if clock == nil {
		clock = time.Now
	}
	return &contentService{
		accounts: accounts,
		quota:    quota,
		content:  content,
		logger:   logger,
		now:      clock,
	}
}

func (s *contentService) CheckQuota(ctx context.Context, accountID uuid.UUID, action domain.Action) (domain.Decision, error) {
	account, plan, err := s.accounts.Resolve(ctx, accountID)
	if err != nil {
		return domain.Decision{}, err
	}
	return s.quota.Check(ctx, account, plan, action)
}

func (s *contentService) CreateContentWithDistribution(ctx context.Context, actor domain.Actor, accountID uuid.UUID, draft domain.ContentDraft) (*domain.ContentItem, domain.Decision, error) {
	const op = "ContentService.CreateContentWithDistribution"

	if actor.ID == uuid.Nil || actor.ID != accountID {
		return nil, domain.Decision{}, domain.Forbidden(op, "content can only be created by the account owner")
	}

	draft.Title = strings.TrimSpace(draft.Title)
	draft.Description = strings.TrimSpace(draft.Description)
	draft.Location = strings.TrimSpace(draft.Location)
	if err := validate.Struct(op, draft); err != nil {
		return nil, domain.Decision{}, err
	}

	account, plan, err := s.accounts.Resolve(ctx, accountID)
	if err != nil {
		return nil, domain.Decision{}, err
	}

	decision, err := s.quota.Reserve(ctx, account, plan, domain.CreateEvent())
	if err != nil {
		return nil, domain.Decision{}, err
	}
	if !decision.Allowed {
		return nil, decision, nil
	}

	now := s.now().UTC()
	item := domain.ContentItem{
		ID:              uuid.New(),
		AccountID:       account.ID,
		ListingID:       draft.ListingID,
		Kind:            domain.ContentKindEvent,
		Title:           draft.Title,
		Description:     draft.Description,
		Location:        draft.Location,
		StartsAt:        draft.StartsAt.UTC(),
		EndsAt:          utcPtr(draft.EndsAt),
		ModerationState: domain.ModerationDraft,
		Flags:           domain.ComputeChannelFlags(plan),
		PlanAtCreation:  plan.ID,
		PeriodKey:       decision.Reservation.PeriodKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.content.CreateContent(ctx, item); err != nil {
		s.logger.Error("failed to create content", "error", err, "op", op, "account_id", account.ID)
		// The slot was taken for a row that does not exist; give it back.
		// A failed release is logged by the usage counter.
		_ = s.quota.Release(context.WithoutCancel(ctx), *decision.Reservation)
		return nil, domain.Decision{}, domain.StorageUnavailable(err, op, "Content could not be saved")
	}

	metrics.ContentCreatedTotal.WithLabelValues(string(plan.ID)).Inc()
	s.logger.Info("content created",
		"content_id", item.ID,
		"account_id", account.ID,
		"plan", plan.ID,
		"period", item.PeriodKey,
		"channels", item.Flags.Enabled(),
	)
	return &item, decision, nil
}

func (s *contentService) TransitionModeration(ctx context.Context, id uuid.UUID, target domain.ModerationState, actor domain.Actor) (*domain.ContentItem, error) {
	const op = "ContentService.TransitionModeration"

	if !target.IsValid() {
		return nil, domain.Invalid(op, "unknown moderation state "+target.String())
	}

	item, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}

	from := item.ModerationState
	if err := item.TransitionTo(target, actor, s.now().UTC()); err != nil {
		metrics.ModerationTransitioned(target.String(), err)
		s.logger.Info("moderation transition refused",
			"content_id", id,
			"actor_id", actor.ID,
			"from", from,
			"to", target,
			"code", domain.ErrorCode(err),
		)
		return nil, err
	}

	if err := s.content.UpdateModerationState(ctx, *item, from); err != nil {
		metrics.ModerationTransitioned(target.String(), err)
		switch {
		case errors.Is(err, domain.ErrStateConflict):
			return nil, domain.Conflict(op, "Content was modified by someone else, reload and try again")
		case errors.Is(err, domain.ErrNoRecord):
			return nil, domain.NotFound(op, "content", id.String())
		}
		s.logger.Error("failed to update moderation state", "error", err, "op", op, "content_id", id)
		return nil, domain.StorageUnavailable(err, op, "Content could not be saved")
	}

	metrics.ModerationTransitioned(target.String(), nil)
	s.logger.Info("moderation transition",
		"content_id", id,
		"actor_id", actor.ID,
		"moderator", actor.Moderator,
		"from", from,
		"to", target,
	)
	return item, nil
}

func (s *contentService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.ContentItem, error) {
	const op = "ContentService.Get"

	item, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if !item.ModerationState.IsPubliclyVisible() && len(actor.RolesFor(item.AccountID)) == 0 {
		return nil, domain.NotFound(op, "content", id.String())
	}
	return item, nil
}

func (s *contentService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	const op = "ContentService.Delete"

	item, err := s.load(ctx, op, id)
	if err != nil {
		return err
	}
	if len(actor.RolesFor(item.AccountID)) == 0 {
		return domain.Forbidden(op, "only the owner or a moderator may delete content")
	}

	if err := s.content.DeleteContent(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNoRecord) {
			return domain.NotFound(op, "content", id.String())
		}
		s.logger.Error("failed to delete content", "error", err, "op", op, "content_id", id)
		return domain.StorageUnavailable(err, op, "Content could not be deleted")
	}

	s.logger.Info("content deleted", "content_id", id, "account_id", item.AccountID, "actor_id", actor.ID)
	return nil
}

func (s *contentService) ListAccount(ctx context.Context, actor domain.Actor, accountID uuid.UUID) ([]domain.ContentItem, error) {
	const op = "ContentService.ListAccount"

	if len(actor.RolesFor(accountID)) == 0 {
		return nil, domain.Forbidden(op, "only the owner or a moderator may list an account's content")
	}

	items, err := s.content.ListContentByAccount(ctx, accountID)
	if err != nil {
		s.logger.Error("failed to list content", "error", err, "op", op, "account_id", accountID)
		return nil, domain.StorageUnavailable(err, op, "Content is unavailable")
	}
	return items, nil
}

func (s *contentService) ListChannel(ctx context.Context, channel domain.Channel, limit int) ([]domain.ContentItem, error) {
	const op = "ContentService.ListChannel"

	if limit <= 0 {
		limit = defaultChannelLimit
	}
	if limit > maxChannelLimit {
		limit = maxChannelLimit
	}

	items, err := s.content.ListPublishedByChannel(ctx, channel, limit)
	if err != nil {
		s.logger.Error("failed to list channel content", "error", err, "op", op, "channel", channel)
		return nil, domain.StorageUnavailable(err, op, "Content is unavailable")
	}

	// Stores filter by flags and state already; only published items leave here.
	visible := items[:0]
	for _, item := range items {
		if item.VisibleOn(channel) {
			visible = append(visible, item)
		}
	}
	return visible, nil
}

func (s *contentService) load(ctx context.Context, op string, id uuid.UUID) (*domain.ContentItem, error) {
	item, err := s.content.GetContent(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNoRecord) {
			return nil, domain.NotFound(op, "content", id.String())
		}
		s.logger.Error("failed to load content", "error", err, "op", op, "content_id", id)
		return nil, domain.StorageUnavailable(err, op, "Content is unavailable")
	}
	return item, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
