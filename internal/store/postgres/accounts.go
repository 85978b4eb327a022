package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
)

// GetAccount returns the account or ErrNoRecord.
func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	const q = `SELECT id, plan_id, period_anchor, created_at
	           FROM accounts
	           WHERE id = $1`

	var (
		a    domain.Account
		plan string
	)
	if err := s.db.QueryRow(ctx, q, id).Scan(&a.ID, &plan, &a.PeriodAnchor, &a.CreatedAt); err != nil {
		return nil, noRecord(err)
	}
	a.PlanID = domain.PlanID(plan)
	return &a, nil
}

// CreateAccount inserts a new account. An existing id is left untouched and
// reported as ErrAlreadyExists.
func (s *Store) CreateAccount(ctx context.Context, account domain.Account) error {
	const q = `
INSERT INTO accounts (id, plan_id, period_anchor, created_at)
VALUES ($1, $2, $3, COALESCE($4::timestamptz, NOW()))
ON CONFLICT (id) DO NOTHING`

	var createdAt any
	if !account.CreatedAt.IsZero() {
		createdAt = account.CreatedAt
	}
	tag, err := s.db.Exec(ctx, q, account.ID, string(account.PlanID), account.PeriodAnchor, createdAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// UpdateAccountPlan changes the account's current plan.
func (s *Store) UpdateAccountPlan(ctx context.Context, id uuid.UUID, plan domain.PlanID) error {
	const q = `UPDATE accounts SET plan_id = $2 WHERE id = $1`

	tag, err := s.db.Exec(ctx, q, id, string(plan))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoRecord
	}
	return nil
}
