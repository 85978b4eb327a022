package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
)

// AccountService resolves accounts to their plan and reports quota usage.
type AccountService interface {
	// Resolve returns the account and its plan. An account whose plan id is
	// outside the catalog fails with EUNKNOWNPLAN.
	Resolve(ctx context.Context, id uuid.UUID) (domain.Account, domain.Plan, error)

	// Register creates an account on the given plan, anchored on now. An id
	// that is already registered fails with ECONFLICT.
	Register(ctx context.Context, id uuid.UUID, plan domain.PlanID) (*domain.Account, error)

	// ChangePlan moves an account to another plan. Moderators only.
	// Existing content keeps the channel flags it was created with.
	ChangePlan(ctx context.Context, actor domain.Actor, id uuid.UUID, plan domain.PlanID) (*domain.Account, error)

	// Summary returns the dashboard view of the current period.
	Summary(ctx context.Context, id uuid.UUID) (*domain.QuotaSummary, error)

	// History returns usage records inside the plan's statistics window.
	History(ctx context.Context, id uuid.UUID) ([]domain.UsageRecord, error)
}

type accountService struct {
	accounts domain.AccountStore
	usage    UsageCounter
	logger   *slog.Logger
	now      func() time.Time
}

// NewAccountService creates a new AccountService. A nil clock defaults to time.Now.
func NewAccountService(accounts domain.AccountStore, usage UsageCounter, logger *slog.Logger, clock func() time.Time) AccountService {
	if clock == nil {
		clock = time.Now
	}
	return &accountService{
		accounts: accounts,
		usage:    usage,
		logger:   logger,
		now:      clock,
	}
}

func (s *accountService) Resolve(ctx context.Context, id uuid.UUID) (domain.Account, domain.Plan, error) {
	const op = "AccountService.Resolve"

	account, err := s.load(ctx, op, id)
	if err != nil {
		return domain.Account{}, domain.Plan{}, err
	}

	plan, err := domain.GetPlan(account.PlanID)
	if err != nil {
		// Stored plan ids are validated on write, so this is corrupt data.
		s.logger.Error("account has unknown plan", "error", err, "op", op, "account_id", id, "plan", account.PlanID)
		return domain.Account{}, domain.Plan{}, err
	}
	return *account, plan, nil
}

func (s *accountService) Register(ctx context.Context, id uuid.UUID, planID domain.PlanID) (*domain.Account, error) {
	const op = "AccountService.Register"

	if id == uuid.Nil {
		return nil, domain.Invalid(op, "account id is required")
	}
	if _, err := domain.GetPlan(planID); err != nil {
		return nil, domain.Invalid(op, "unknown plan "+planID.String())
	}

	now := s.now().UTC()
	account := domain.Account{
		ID:           id,
		PlanID:       planID,
		PeriodAnchor: now,
		CreatedAt:    now,
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, domain.Conflict(op, "account "+id.String()+" is already registered")
		}
		s.logger.Error("failed to create account", "error", err, "op", op, "account_id", id)
		return nil, domain.StorageUnavailable(err, op, "Accounts are unavailable")
	}

	s.logger.Info("account registered", "account_id", id, "plan", planID)
	return &account, nil
}

func (s *accountService) ChangePlan(ctx context.Context, actor domain.Actor, id uuid.UUID, planID domain.PlanID) (*domain.Account, error) {
	const op = "AccountService.ChangePlan"

	if !actor.Moderator {
		return nil, domain.Forbidden(op, "only a moderator may change an account's plan")
	}
	if _, err := domain.GetPlan(planID); err != nil {
		return nil, domain.Invalid(op, "unknown plan "+planID.String())
	}

	// Loaded without resolving the plan so a corrupt plan id can be repaired.
	account, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	previous := account.PlanID

	if err := s.accounts.UpdateAccountPlan(ctx, id, planID); err != nil {
		if errors.Is(err, domain.ErrNoRecord) {
			return nil, domain.NotFound(op, "account", id.String())
		}
		s.logger.Error("failed to update account plan", "error", err, "op", op, "account_id", id)
		return nil, domain.StorageUnavailable(err, op, "Accounts are unavailable")
	}

	account.PlanID = planID
	s.logger.Info("account plan changed",
		"account_id", id,
		"from", previous,
		"to", planID,
		"moderator_id", actor.ID,
	)
	return account, nil
}

func (s *accountService) Summary(ctx context.Context, id uuid.UUID) (*domain.QuotaSummary, error) {
	account, plan, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec, err := s.usage.GetUsage(ctx, account, now)
	if err != nil {
		return nil, err
	}

	summary := domain.NewQuotaSummary(account, plan, rec, now)
	return &summary, nil
}

func (s *accountService) History(ctx context.Context, id uuid.UUID) ([]domain.UsageRecord, error) {
	account, plan, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.usage.History(ctx, account, plan, s.now())
}

func (s *accountService) load(ctx context.Context, op string, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNoRecord) {
			return nil, domain.NotFound(op, "account", id.String())
		}
		s.logger.Error("failed to load account", "error", err, "op", op, "account_id", id)
		return nil, domain.StorageUnavailable(err, op, "Accounts are unavailable")
	}
	return account, nil
}
