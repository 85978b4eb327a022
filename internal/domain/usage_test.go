package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUsagePercentage(t *testing.T) {
	tests := []struct {
		used, limit float64
		want        int
	}{
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{4, 3, 100},
		{50, 0, 100},
		{-1, 10, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UsagePercentage(tt.used, tt.limit), "%v/%v", tt.used, tt.limit)
	}
}

func TestUsageRecord_Value(t *testing.T) {
	rec := UsageRecord{EventsCreated: 2, StorageUsedMB: 12.5, PhotosUploaded: 7}

	assert.Equal(t, 2.0, rec.Value(UsageEventsCreated))
	assert.Equal(t, 12.5, rec.Value(UsageStorageUsedMB))
	assert.Equal(t, 7.0, rec.Value(UsagePhotosUploaded))
	assert.Equal(t, 0.0, rec.Value(UsageField("views")))
}

func TestNewQuotaSummary(t *testing.T) {
	account := Account{ID: uuid.New(), PlanID: PlanPro}
	plan, _ := GetPlan(PlanPro)
	rec := UsageRecord{AccountID: account.ID, PeriodKey: "2024-03", EventsCreated: 3, StorageUsedMB: 125}
	now := time.Date(2024, time.March, 29, 0, 0, 0, 0, time.UTC)

	s := NewQuotaSummary(account, plan, rec, now)

	assert.Equal(t, PlanPro, s.PlanID)
	assert.Equal(t, PeriodKey("2024-03"), s.PeriodKey)
	assert.Equal(t, int64(3), s.EventsUsed)
	assert.Equal(t, 6, s.EventsLimit)
	assert.Equal(t, 50, s.EventsPercent)
	assert.Equal(t, 25, s.StoragePercent)
	assert.Equal(t, 3, s.DaysUntilReset)
	assert.Contains(t, s.UpgradeReasons, "Expert: events included in the newsletter")
}
