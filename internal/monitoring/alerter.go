package monitoring

import (
	"fmt"
	"time"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertStoreUnavailable AlertType = "store_unavailable"
	AlertStoreFailures    AlertType = "store_failures"
	AlertModelUnavailable AlertType = "model_unavailable"
)

// Alert is a single health finding.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter turns snapshots into alerts. It remembers the store failure count
// it last reported so growth is flagged once per increase.
type Alerter struct {
	lastFailures int64
}

// NewAlerter creates an Alerter.
func NewAlerter() *Alerter {
	return &Alerter{}
}

// Evaluate checks the snapshot and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := snap.CollectedAt

	if snap.Degraded() {
		alerts = append(alerts, Alert{
			Type:     AlertStoreUnavailable,
			Severity: "high",
			Message: fmt.Sprintf("Durable store unreachable (breaker %s); changes are kept in this session only",
				snap.StoreBreaker),
			Details: map[string]any{
				"breaker":   snap.StoreBreaker,
				"reachable": snap.StoreReachable,
			},
			Timestamp: now,
		})
	}

	if snap.StoreFailures > a.lastFailures {
		alerts = append(alerts, Alert{
			Type:     AlertStoreFailures,
			Severity: "medium",
			Message:  fmt.Sprintf("%d store call(s) failed since last check", snap.StoreFailures-a.lastFailures),
			Details: map[string]any{
				"total": snap.StoreFailures,
				"new":   snap.StoreFailures - a.lastFailures,
			},
			Timestamp: now,
		})
		a.lastFailures = snap.StoreFailures
	}

	if !snap.ModelReady {
		alerts = append(alerts, Alert{
			Type:      AlertModelUnavailable,
			Severity:  "low",
			Message:   "No model credential configured; test runs and PDF ingestion are disabled",
			Timestamp: now,
		})
	}

	return alerts
}
