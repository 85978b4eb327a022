package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account is a merchant account as seen by the quota engine. The account
// itself lives in the account collaborator; only these fields matter here.
type Account struct {
	ID     uuid.UUID
	PlanID PlanID

	// PeriodAnchor fixes the day of month on which usage periods start.
	PeriodAnchor time.Time
	CreatedAt    time.Time
}

// UsageField names a per-period counter.
type UsageField string

const (
	UsageEventsCreated  UsageField = "events_created"
	UsageStorageUsedMB  UsageField = "storage_used_mb"
	UsagePhotosUploaded UsageField = "photos_uploaded"
)

// IsValid returns true if the field is a known counter.
func (f UsageField) IsValid() bool {
	switch f {
	case UsageEventsCreated, UsageStorageUsedMB, UsagePhotosUploaded:
		return true
	}
	return false
}

// UsageRecord holds an account's counters for one period. A missing record
// is equivalent to a zero-valued one.
type UsageRecord struct {
	AccountID      uuid.UUID
	PeriodKey      PeriodKey
	EventsCreated  int64
	StorageUsedMB  float64
	PhotosUploaded int64
	UpdatedAt      time.Time
}

// Value returns the counter named by field.
func (r UsageRecord) Value(field UsageField) float64 {
	switch field {
	case UsageEventsCreated:
		return float64(r.EventsCreated)
	case UsageStorageUsedMB:
		return r.StorageUsedMB
	case UsagePhotosUploaded:
		return float64(r.PhotosUploaded)
	}
	return 0
}

// ZeroUsage returns the implicit record for a period with no activity.
func ZeroUsage(accountID uuid.UUID, key PeriodKey) UsageRecord {
	return UsageRecord{AccountID: accountID, PeriodKey: key}
}

// QuotaSummary is the dashboard view of an account's current period.
type QuotaSummary struct {
	PlanID         PlanID
	PeriodKey      PeriodKey
	EventsUsed     int64
	EventsLimit    int
	EventsPercent  int
	StorageUsedMB  float64
	StorageLimitMB float64
	StoragePercent int
	PhotosUploaded int64
	DaysUntilReset int
	UpgradeReasons []string
}

// UsagePercentage returns used/limit as a whole percentage capped at 100.
// A zero limit counts as fully used.
func UsagePercentage(used, limit float64) int {
	if limit <= 0 {
		return 100
	}
	pct := int(used/limit*100 + 0.5)
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// NewQuotaSummary builds the summary of rec against plan.
func NewQuotaSummary(account Account, plan Plan, rec UsageRecord, now time.Time) QuotaSummary {
	return QuotaSummary{
		PlanID:         plan.ID,
		PeriodKey:      rec.PeriodKey,
		EventsUsed:     rec.EventsCreated,
		EventsLimit:    plan.MaxEventsPerPeriod,
		EventsPercent:  UsagePercentage(float64(rec.EventsCreated), float64(plan.MaxEventsPerPeriod)),
		StorageUsedMB:  rec.StorageUsedMB,
		StorageLimitMB: plan.MaxStorageMB,
		StoragePercent: UsagePercentage(rec.StorageUsedMB, plan.MaxStorageMB),
		PhotosUploaded: rec.PhotosUploaded,
		DaysUntilReset: DaysUntilReset(account.PeriodAnchor, now),
		UpgradeReasons: UpgradeReasons(plan.ID),
	}
}
