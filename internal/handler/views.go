package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/service"
)

// =============================================================================
// Response Types
// =============================================================================

// PlanView is the JSON form of a catalog plan.
type PlanView struct {
	ID                      string  `json:"id"`
	Name                    string  `json:"name"`
	MaxEventsPerPeriod      int     `json:"max_events_per_period"`
	MaxPhotosPerListing     int     `json:"max_photos_per_listing"`
	MaxStorageMB            float64 `json:"max_storage_mb"`
	CanShowOnHomepage       bool    `json:"can_show_on_homepage"`
	CanShowInNewsletter     bool    `json:"can_show_in_newsletter"`
	CanShowOnSocial         bool    `json:"can_show_on_social"`
	StatisticsRetentionDays int     `json:"statistics_retention_days"`
	MonthlyPriceEUR         int     `json:"monthly_price_eur"`
}

func newPlanView(p domain.Plan) PlanView {
	return PlanView{
		ID:                      p.ID.String(),
		Name:                    p.DisplayName(),
		MaxEventsPerPeriod:      p.MaxEventsPerPeriod,
		MaxPhotosPerListing:     p.MaxPhotosPerListing,
		MaxStorageMB:            p.MaxStorageMB,
		CanShowOnHomepage:       p.CanShowOnHomepage,
		CanShowInNewsletter:     p.CanShowInNewsletter,
		CanShowOnSocial:         p.CanShowOnSocial,
		StatisticsRetentionDays: p.StatisticsRetentionDays,
		MonthlyPriceEUR:         p.MonthlyPriceEUR,
	}
}

// DecisionView is the JSON form of a quota decision.
type DecisionView struct {
	Allowed   bool    `json:"allowed"`
	Action    string  `json:"action"`
	Reason    string  `json:"reason,omitempty"`
	Message   string  `json:"message,omitempty"`
	Used      float64 `json:"used"`
	Limit     float64 `json:"limit"`
	Remaining float64 `json:"remaining"`
}

func newDecisionView(d domain.Decision) DecisionView {
	return DecisionView{
		Allowed:   d.Allowed,
		Action:    string(d.Action),
		Reason:    string(d.Reason),
		Message:   d.Message,
		Used:      d.Used,
		Limit:     d.Limit,
		Remaining: d.Remaining,
	}
}

// SummaryView is the JSON form of an account's usage dashboard.
type SummaryView struct {
	Plan           string      `json:"plan"`
	Period         string      `json:"period"`
	EventsUsed     int64       `json:"events_used"`
	EventsLimit    int         `json:"events_limit"`
	EventsPercent  int         `json:"events_percent"`
	StorageUsedMB  float64     `json:"storage_used_mb"`
	StorageLimitMB float64     `json:"storage_limit_mb"`
	StoragePercent int         `json:"storage_percent"`
	PhotosUploaded int64       `json:"photos_uploaded"`
	DaysUntilReset int         `json:"days_until_reset"`
	UpgradeReasons []string    `json:"upgrade_reasons"`
	History        []UsageView `json:"history"`
}

// UsageView is the JSON form of one period's counters.
type UsageView struct {
	Period         string    `json:"period"`
	EventsCreated  int64     `json:"events_created"`
	StorageUsedMB  float64   `json:"storage_used_mb"`
	PhotosUploaded int64     `json:"photos_uploaded"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newSummaryView(s domain.QuotaSummary, history []domain.UsageRecord) SummaryView {
	v := SummaryView{
		Plan:           s.PlanID.String(),
		Period:         string(s.PeriodKey),
		EventsUsed:     s.EventsUsed,
		EventsLimit:    s.EventsLimit,
		EventsPercent:  s.EventsPercent,
		StorageUsedMB:  s.StorageUsedMB,
		StorageLimitMB: s.StorageLimitMB,
		StoragePercent: s.StoragePercent,
		PhotosUploaded: s.PhotosUploaded,
		DaysUntilReset: s.DaysUntilReset,
		UpgradeReasons: s.UpgradeReasons,
		History:        make([]UsageView, 0, len(history)),
	}
	if v.UpgradeReasons == nil {
		v.UpgradeReasons = []string{}
	}
	for _, rec := range history {
		v.History = append(v.History, UsageView{
			Period:         string(rec.PeriodKey),
			EventsCreated:  rec.EventsCreated,
			StorageUsedMB:  rec.StorageUsedMB,
			PhotosUploaded: rec.PhotosUploaded,
			UpdatedAt:      rec.UpdatedAt,
		})
	}
	return v
}

// AccountView is the JSON form of an account.
type AccountView struct {
	ID           uuid.UUID `json:"id"`
	Plan         string    `json:"plan"`
	PeriodAnchor time.Time `json:"period_anchor"`
	CreatedAt    time.Time `json:"created_at"`
}

func newAccountView(a domain.Account) AccountView {
	return AccountView{
		ID:           a.ID,
		Plan:         a.PlanID.String(),
		PeriodAnchor: a.PeriodAnchor,
		CreatedAt:    a.CreatedAt,
	}
}

// ContentView is the JSON form of a content item.
type ContentView struct {
	ID              uuid.UUID           `json:"id"`
	AccountID       uuid.UUID           `json:"account_id"`
	ListingID       uuid.UUID           `json:"listing_id"`
	Kind            string              `json:"kind"`
	Title           string              `json:"title"`
	Description     string              `json:"description,omitempty"`
	Location        string              `json:"location,omitempty"`
	StartsAt        time.Time           `json:"starts_at"`
	EndsAt          *time.Time          `json:"ends_at,omitempty"`
	ModerationState string              `json:"moderation_state"`
	Channels        domain.ChannelFlags `json:"channels"`
	PlanAtCreation  string              `json:"plan_at_creation"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	PublishedAt     *time.Time          `json:"published_at,omitempty"`
}

func newContentView(c domain.ContentItem) ContentView {
	return ContentView{
		ID:              c.ID,
		AccountID:       c.AccountID,
		ListingID:       c.ListingID,
		Kind:            string(c.Kind),
		Title:           c.Title,
		Description:     c.Description,
		Location:        c.Location,
		StartsAt:        c.StartsAt,
		EndsAt:          c.EndsAt,
		ModerationState: c.ModerationState.String(),
		Channels:        c.Flags,
		PlanAtCreation:  c.PlanAtCreation.String(),
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		PublishedAt:     c.PublishedAt,
	}
}

func newContentViews(items []domain.ContentItem) []ContentView {
	out := make([]ContentView, 0, len(items))
	for _, item := range items {
		out = append(out, newContentView(item))
	}
	return out
}

// CreatedContentView is returned when content is created.
type CreatedContentView struct {
	Content ContentView  `json:"content"`
	Quota   DecisionView `json:"quota"`
}

// QuotaDeniedView is returned with 402 when quota denies an action.
type QuotaDeniedView struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Quota DecisionView `json:"quota"`
}

func newQuotaDeniedView(d domain.Decision) QuotaDeniedView {
	var v QuotaDeniedView
	v.Error.Code = string(d.Reason)
	v.Error.Message = d.Message
	v.Quota = newDecisionView(d)
	return v
}

// PhotoView is the JSON form of a stored listing photo.
type PhotoView struct {
	ID        uuid.UUID    `json:"id"`
	ListingID uuid.UUID    `json:"listing_id"`
	URL       string       `json:"url,omitempty"`
	SizeBytes int64        `json:"size_bytes"`
	CreatedAt time.Time    `json:"created_at"`
	Quota     DecisionView `json:"quota"`
}

func newPhotoView(p service.UploadedPhoto, d domain.Decision) PhotoView {
	return PhotoView{
		ID:        p.Photo.ID,
		ListingID: p.Photo.ListingID,
		URL:       p.URL,
		SizeBytes: p.Photo.SizeBytes,
		CreatedAt: p.Photo.CreatedAt,
		Quota:     newDecisionView(d),
	}
}
