// Package service contains the business logic layer.
//
// This file implements per-account, per-period usage counters. Period
// rollover is computed from the clock on every call; there is no reset job.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/metrics"
)

// maxHistoryPeriods bounds History regardless of the plan's retention.
const maxHistoryPeriods = 12

// =============================================================================
// Interface Definition
// =============================================================================

// UsageCounter reads and updates an account's usage counters.
type UsageCounter interface {
	// CurrentPeriodKey returns the key of the period containing now.
	CurrentPeriodKey(account domain.Account, now time.Time) domain.PeriodKey

	// GetUsage returns the current period's record, zero-valued if absent.
	GetUsage(ctx context.Context, account domain.Account, now time.Time) (domain.UsageRecord, error)

	// Increment atomically adds delta (> 0) to field for the current period.
	Increment(ctx context.Context, account domain.Account, now time.Time, field domain.UsageField, delta float64) (domain.UsageRecord, error)

	// Decrement atomically subtracts delta (> 0) from field in the given
	// period. Counters never drop below zero.
	Decrement(ctx context.Context, accountID uuid.UUID, key domain.PeriodKey, field domain.UsageField, delta float64) (domain.UsageRecord, error)

	// Release undoes a reservation in the period it was taken in.
	Release(ctx context.Context, r domain.Reservation) error

	// History returns the records inside the plan's statistics window,
	// newest first. Periods without activity are omitted.
	History(ctx context.Context, account domain.Account, plan domain.Plan, now time.Time) ([]domain.UsageRecord, error)
}

// =============================================================================
// Implementation
// =============================================================================

type usageCounter struct {
	store  domain.CounterStore
	logger *slog.Logger
}

// NewUsageCounter creates a new UsageCounter backed by store.
func NewUsageCounter(store domain.CounterStore, logger *slog.Logger) UsageCounter {
	return &usageCounter{
		store:  store,
		logger: logger,
	}
}

func (u *usageCounter) CurrentPeriodKey(account domain.Account, now time.Time) domain.PeriodKey {
	return domain.CurrentPeriodKey(account.PeriodAnchor, now)
}

func (u *usageCounter) GetUsage(ctx context.Context, account domain.Account, now time.Time) (domain.UsageRecord, error) {
	const op = "usage.get"

	key := u.CurrentPeriodKey(account, now)

	start := time.Now()
	rec, err := u.store.ReadCounter(ctx, account.ID, key)
	metrics.CounterStoreObserved("read", start)
	if err != nil {
		if errors.Is(err, domain.ErrNoRecord) {
			return domain.ZeroUsage(account.ID, key), nil
		}
		u.logger.Error("failed to read usage counter", "error", err, "op", op, "account_id", account.ID, "period", key)
		return domain.UsageRecord{}, domain.StorageUnavailable(err, op, "Usage counters are unavailable")
	}
	return *rec, nil
}

func (u *usageCounter) Increment(ctx context.Context, account domain.Account, now time.Time, field domain.UsageField, delta float64) (domain.UsageRecord, error) {
	const op = "usage.increment"

	if err := validateDelta(op, field, delta); err != nil {
		return domain.UsageRecord{}, err
	}
	return u.apply(ctx, op, account.ID, u.CurrentPeriodKey(account, now), field, delta)
}

func (u *usageCounter) Decrement(ctx context.Context, accountID uuid.UUID, key domain.PeriodKey, field domain.UsageField, delta float64) (domain.UsageRecord, error) {
	const op = "usage.decrement"

	if err := validateDelta(op, field, delta); err != nil {
		return domain.UsageRecord{}, err
	}
	return u.apply(ctx, op, accountID, key, field, -delta)
}

func (u *usageCounter) Release(ctx context.Context, r domain.Reservation) error {
	_, err := u.Decrement(ctx, r.AccountID, r.PeriodKey, r.Field, r.Delta)
	metrics.QuotaReleased(string(r.Field), err)
	if err != nil {
		// Counter stays inflated: the account sees less headroom than it
		// has until counts are recomputed from content rows.
		u.logger.Warn("quota release failed",
			"error", err,
			"account_id", r.AccountID,
			"period", r.PeriodKey,
			"field", r.Field,
			"delta", r.Delta,
		)
		return err
	}
	u.logger.Info("quota released",
		"account_id", r.AccountID,
		"period", r.PeriodKey,
		"field", r.Field,
		"delta", r.Delta,
	)
	return nil
}

func (u *usageCounter) History(ctx context.Context, account domain.Account, plan domain.Plan, now time.Time) ([]domain.UsageRecord, error) {
	const op = "usage.history"

	periods := plan.StatisticsRetentionDays/30 + 1
	if periods > maxHistoryPeriods {
		periods = maxHistoryPeriods
	}
	keys := domain.PreviousPeriodKeys(account.PeriodAnchor, now, periods)

	start := time.Now()
	records, err := u.store.ListCounters(ctx, account.ID, keys)
	metrics.CounterStoreObserved("list", start)
	if err != nil {
		u.logger.Error("failed to list usage history", "error", err, "op", op, "account_id", account.ID)
		return nil, domain.StorageUnavailable(err, op, "Usage history is unavailable")
	}
	return records, nil
}

func (u *usageCounter) apply(ctx context.Context, op string, accountID uuid.UUID, key domain.PeriodKey, field domain.UsageField, delta float64) (domain.UsageRecord, error) {
	start := time.Now()
	rec, err := u.store.AtomicIncrement(ctx, accountID, key, field, delta)
	metrics.CounterStoreObserved("increment", start)
	if err != nil {
		u.logger.Error("failed to update usage counter",
			"error", err,
			"op", op,
			"account_id", accountID,
			"period", key,
			"field", field,
			"delta", delta,
		)
		return domain.UsageRecord{}, domain.StorageUnavailable(err, op, "Usage counters are unavailable")
	}
	return rec, nil
}

func validateDelta(op string, field domain.UsageField, delta float64) error {
	if !field.IsValid() {
		return domain.Invalid(op, fmt.Sprintf("unknown usage field %q", field))
	}
	if delta <= 0 {
		return domain.Invalid(op, "delta must be positive")
	}
	return nil
}
