package notify

import (
	"testing"
	"time"

	"github.com/logai/logai/internal/logmodel"
)

func TestColorMapping(t *testing.T) {
	cases := map[string]string{
		"Critical": "danger",
		"Warning":  "warning",
		"Info":     "good",
		"unknown":  "good",
	}
	for severity, want := range cases {
		if got := Color(severity); got != want {
			t.Errorf("Color(%s) = %s, want %s", severity, got, want)
		}
	}
}

func TestMemorySinkRecordsAlerts(t *testing.T) {
	sink := NewMemorySink()
	alert := logmodel.ActiveAlert{
		ID:       "1",
		Key:      logmodel.AlertKey{RuleName: "high-error-rate", Service: "api"},
		State:    logmodel.AlertFiring,
		Severity: "Critical",
		Message:  "error rate exceeded threshold",
		FiringAt: time.Now(),
	}

	if err := sink.Notify(t.Context(), alert); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	sent := sink.Sent()
	if len(sent) != 1 || sent[0].ID != "1" {
		t.Fatalf("Sent() = %+v, want one alert with ID 1", sent)
	}
}
