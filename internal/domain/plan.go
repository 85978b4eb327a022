// Package domain contains core business types and interfaces.
//
// This file defines the subscription plan catalog. Plans are flat entitlement
// records looked up by id; adding a tier means adding a row to planCatalog.
package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PlanID identifies a subscription tier. The set is closed.
type PlanID string

const (
	PlanBasic  PlanID = "basic"
	PlanPro    PlanID = "pro"
	PlanExpert PlanID = "expert"
)

// String returns the string representation of the plan id.
func (id PlanID) String() string {
	return string(id)
}

// IsValid returns true if the id is part of the catalog.
func (id PlanID) IsValid() bool {
	_, ok := planCatalog[id]
	return ok
}

// Rank returns the tier's position in the upgrade order, or -1 for unknown ids.
func (id PlanID) Rank() int {
	for i, p := range planOrder {
		if p == id {
			return i
		}
	}
	return -1
}

// ParsePlanID normalises user or database input into a PlanID.
func ParsePlanID(s string) (PlanID, error) {
	id := PlanID(strings.ToLower(strings.TrimSpace(s)))
	if !id.IsValid() {
		return "", UnknownPlan("plan.parse", s)
	}
	return id, nil
}

// Plan holds the entitlements granted by a subscription tier.
type Plan struct {
	ID PlanID

	MaxEventsPerPeriod  int
	MaxPhotosPerListing int
	MaxStorageMB        float64

	CanShowOnHomepage   bool
	CanShowInNewsletter bool
	CanShowOnSocial     bool

	StatisticsRetentionDays int

	// Display only; billing lives elsewhere.
	MonthlyPriceEUR int
}

// DisplayName returns the plan name formatted for upgrade prompts.
func (p Plan) DisplayName() string {
	return cases.Title(language.English).String(string(p.ID))
}

var planOrder = []PlanID{PlanBasic, PlanPro, PlanExpert}

// Numeric entitlements must not decrease from one tier to the next.
// plan_test.go checks this for every field.
var planCatalog = map[PlanID]Plan{
	PlanBasic: {
		ID:                      PlanBasic,
		MaxEventsPerPeriod:      3,
		MaxPhotosPerListing:     5,
		MaxStorageMB:            100,
		StatisticsRetentionDays: 7,
	},
	PlanPro: {
		ID:                      PlanPro,
		MaxEventsPerPeriod:      6,
		MaxPhotosPerListing:     10,
		MaxStorageMB:            500,
		CanShowOnHomepage:       true,
		CanShowOnSocial:         true,
		StatisticsRetentionDays: 30,
		MonthlyPriceEUR:         29,
	},
	PlanExpert: {
		ID:                      PlanExpert,
		MaxEventsPerPeriod:      10,
		MaxPhotosPerListing:     50,
		MaxStorageMB:            1000,
		CanShowOnHomepage:       true,
		CanShowInNewsletter:     true,
		CanShowOnSocial:         true,
		StatisticsRetentionDays: 90,
		MonthlyPriceEUR:         79,
	},
}

// GetPlan returns the entitlements for id. Lookups never block; the only
// failure is an id outside the catalog.
func GetPlan(id PlanID) (Plan, error) {
	p, ok := planCatalog[id]
	if !ok {
		return Plan{}, UnknownPlan("plan.get", string(id))
	}
	return p, nil
}

// Plans returns every tier in upgrade order.
func Plans() []Plan {
	out := make([]Plan, 0, len(planOrder))
	for _, id := range planOrder {
		out = append(out, planCatalog[id])
	}
	return out
}

// UpgradeReasons lists what the account would gain by moving to the higher
// tiers, derived from the catalog so it cannot drift from the limits.
func UpgradeReasons(from PlanID) []string {
	current, err := GetPlan(from)
	if err != nil {
		return nil
	}

	var reasons []string
	for _, next := range Plans() {
		if next.ID.Rank() <= from.Rank() {
			continue
		}
		if next.MaxEventsPerPeriod > current.MaxEventsPerPeriod {
			reasons = append(reasons, fmt.Sprintf("%s: %d events per month", next.DisplayName(), next.MaxEventsPerPeriod))
		}
		if next.MaxPhotosPerListing > current.MaxPhotosPerListing {
			reasons = append(reasons, fmt.Sprintf("%s: up to %d photos per listing", next.DisplayName(), next.MaxPhotosPerListing))
		}
		if next.CanShowOnHomepage && !current.CanShowOnHomepage {
			reasons = append(reasons, fmt.Sprintf("%s: events shown on the homepage", next.DisplayName()))
		}
		if next.CanShowInNewsletter && !current.CanShowInNewsletter {
			reasons = append(reasons, fmt.Sprintf("%s: events included in the newsletter", next.DisplayName()))
		}
		if next.CanShowOnSocial && !current.CanShowOnSocial {
			reasons = append(reasons, fmt.Sprintf("%s: events shared on social networks", next.DisplayName()))
		}
		current = next
	}
	return reasons
}
