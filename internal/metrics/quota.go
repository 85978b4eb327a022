package metrics

import "time"

// QuotaChecked records a read-only quota check.
func QuotaChecked(action string, allowed bool) {
	QuotaDecisionsTotal.WithLabelValues(action, "check", outcome(allowed)).Inc()
}

// QuotaReserved records the result of a reservation attempt.
func QuotaReserved(action string, allowed bool) {
	QuotaDecisionsTotal.WithLabelValues(action, "reserve", outcome(allowed)).Inc()
}

// QuotaReleased records a compensating decrement.
func QuotaReleased(field string, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	QuotaReleasesTotal.WithLabelValues(field, status).Inc()
}

// CounterStoreObserved records how long a counter store call took.
func CounterStoreObserved(operation string, start time.Time) {
	CounterStoreDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ModerationTransitioned records a moderation transition attempt.
func ModerationTransitioned(to string, err error) {
	result := "applied"
	if err != nil {
		result = "refused"
	}
	ModerationTransitionsTotal.WithLabelValues(to, result).Inc()
}

func outcome(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}
