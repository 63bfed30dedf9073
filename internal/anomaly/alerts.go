package anomaly

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/logai/logai/internal/logmodel"
)

const defaultCooldown = 5 * time.Minute

// AlertStore tracks ActiveAlerts keyed by (rule name, service), exclusively
// owned by the Anomaly Engine. At most one ActiveAlert exists per key.
type AlertStore struct {
	mu       sync.Mutex
	alerts   map[logmodel.AlertKey]*logmodel.ActiveAlert
	cooldown map[string]time.Duration
}

// NewAlertStore builds an empty alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{
		alerts:   make(map[logmodel.AlertKey]*logmodel.ActiveAlert),
		cooldown: make(map[string]time.Duration),
	}
}

// SetCooldown records the configured cooldown for a rule.
func (s *AlertStore) SetCooldown(ruleName string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cooldown[ruleName] = d
}

// Process evaluates one detected anomaly against existing alert state and
// returns it as an ActiveAlert to emit, or ok=false if it should be
// suppressed (acknowledged, or still within cooldown).
func (s *AlertStore) Process(anomaly logmodel.Anomaly, now time.Time) (logmodel.ActiveAlert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := logmodel.AlertKey{RuleName: anomaly.RuleName, Service: anomaly.Service}
	existing, ok := s.alerts[key]
	if !ok {
		alert := &logmodel.ActiveAlert{
			ID: uuid.NewString(), Key: key, State: logmodel.AlertFiring,
			Severity: anomaly.Severity, Message: anomaly.Message,
			FiringAt: now, LastNotifiedAt: now,
		}
		s.alerts[key] = alert
		return *alert, true
	}

	if existing.State == logmodel.AlertAcknowledged {
		return logmodel.ActiveAlert{}, false
	}

	if now.Sub(existing.LastNotifiedAt) < s.cooldownFor(anomaly.RuleName) {
		return logmodel.ActiveAlert{}, false
	}

	existing.LastNotifiedAt = now
	existing.Message = anomaly.Message
	return *existing, true
}

func (s *AlertStore) cooldownFor(ruleName string) time.Duration {
	if d, ok := s.cooldown[ruleName]; ok && d > 0 {
		return d
	}
	return defaultCooldown
}

// Acknowledge transitions an alert to Acknowledged, suppressing further
// notifications until it is resolved.
func (s *AlertStore) Acknowledge(key logmodel.AlertKey, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[key]
	if !ok {
		return false
	}
	alert.State = logmodel.AlertAcknowledged
	acked := now
	alert.AcknowledgedAt = &acked
	return true
}

// Resolve removes the alert entirely.
func (s *AlertStore) Resolve(key logmodel.AlertKey) (logmodel.ActiveAlert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[key]
	if !ok {
		return logmodel.ActiveAlert{}, false
	}
	delete(s.alerts, key)
	return *alert, true
}

// Active returns a snapshot of every currently tracked alert.
func (s *AlertStore) Active() []logmodel.ActiveAlert {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]logmodel.ActiveAlert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, *a)
	}
	return out
}
