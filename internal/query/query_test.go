package query

import (
	"testing"
	"time"

	"github.com/logai/logai/internal/logmodel"
)

var fixedNow = time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

func TestAnalyzeIntentClassification(t *testing.T) {
	tests := []struct {
		text string
		want logmodel.Intent
	}{
		{"why did the payment service crash", logmodel.IntentCausal},
		{"what caused the outage last night", logmodel.IntentCausal},
		{"show me the trace for request id abc123", logmodel.IntentTrace},
		{"summarize yesterday's errors", logmodel.IntentSummary},
		{"give me an overview of checkout", logmodel.IntentSummary},
		{"show me nginx errors", logmodel.IntentSearch},
	}
	for _, tt := range tests {
		got := Analyze(tt.text, fixedNow)
		if got.Intent != tt.want {
			t.Errorf("Analyze(%q).Intent = %s, want %s", tt.text, got.Intent, tt.want)
		}
	}
}

func TestAnalyzeTemporalExtraction(t *testing.T) {
	tests := []struct {
		text     string
		wantFrom time.Time
	}{
		{"show me errors from yesterday", fixedNow.Add(-24 * time.Hour)},
		{"what happened today", fixedNow.Add(-12 * time.Hour)},
		{"errors this week", fixedNow.Add(-7 * 24 * time.Hour)},
		{"errors in the last 2 hours", fixedNow.Add(-2 * time.Hour)},
		{"errors in the past 30 minutes", fixedNow.Add(-30 * time.Minute)},
	}
	for _, tt := range tests {
		got := Analyze(tt.text, fixedNow)
		if got.From == nil {
			t.Errorf("Analyze(%q).From = nil, want %v", tt.text, tt.wantFrom)
			continue
		}
		if !got.From.Equal(tt.wantFrom) {
			t.Errorf("Analyze(%q).From = %v, want %v", tt.text, got.From, tt.wantFrom)
		}
		if got.To != nil {
			t.Errorf("Analyze(%q).To = %v, want nil", tt.text, got.To)
		}
	}
}

func TestAnalyzeServiceExtraction(t *testing.T) {
	got := Analyze("show me nginx errors from the gateway", fixedNow)
	if got.Service != "nginx" {
		t.Errorf("Service = %s, want nginx (first match wins)", got.Service)
	}
}

func TestAnalyzeLevelExtraction(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"show me failed requests", "Error"},
		{"show me warnings", "Warn"},
		{"show debug logs", "Debug"},
		{"any incidents today", "Error"},
		{"info about the deploy", "Info"},
		{"information about the deploy", ""},
	}
	for _, tt := range tests {
		got := Analyze(tt.text, fixedNow)
		if got.Level != tt.want {
			t.Errorf("Analyze(%q).Level = %s, want %s", tt.text, got.Level, tt.want)
		}
	}
}

func TestAnalyzeCleanedQuery(t *testing.T) {
	got := Analyze("show me nginx errors from yesterday please", fixedNow)
	if got.Cleaned == got.Original {
		t.Errorf("Cleaned should differ from Original, got %q", got.Cleaned)
	}
	if got.Cleaned != "nginx errors from" {
		t.Errorf("Cleaned = %q, want %q", got.Cleaned, "nginx errors from")
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	got := Analyze("", fixedNow)
	if got.Intent != logmodel.IntentSearch {
		t.Errorf("Intent = %s, want Search for empty input", got.Intent)
	}
	if got.Cleaned != "" {
		t.Errorf("Cleaned = %q, want empty", got.Cleaned)
	}
}

func TestAnalyzedQueryValidInvariant(t *testing.T) {
	past := fixedNow.Add(-time.Hour)
	future := fixedNow.Add(time.Hour)

	valid := logmodel.AnalyzedQuery{From: &past, To: &future}
	if !valid.Valid() {
		t.Error("expected from<=to to be valid")
	}

	invalid := logmodel.AnalyzedQuery{From: &future, To: &past}
	if invalid.Valid() {
		t.Error("expected from>to to be invalid")
	}
}
