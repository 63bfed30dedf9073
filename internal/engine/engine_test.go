package engine

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/logai/logai/internal/config"
	"github.com/logai/logai/internal/logmodel"
)

func memoryConfig() *config.Config {
	return &config.Config{
		BusURL:         "memory://local",
		WarehouseURL:   "memory://local",
		VectorIndexURL: "memory://local",
		LLMProvider:    config.ProviderLocal,
		LLMModel:       "test-model",
		EmbedModel:     "test-embed",
		MaxContextLogs: 10,
		SessionBackend: "memory",
	}
}

// TestEngine builds a single in-memory Engine and exercises it across
// subtests. Metrics registers its Prometheus collectors into the default
// registry on construction, so the suite must not call New more than once
// per process.
func TestEngine(t *testing.T) {
	e, err := New(t.Context(), memoryConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	t.Run("WiresAllCollaborators", func(t *testing.T) {
		if e.Chat == nil {
			t.Error("Chat is nil")
		}
		if e.Ingest == nil {
			t.Error("Ingest is nil")
		}
		if e.Anomalies == nil {
			t.Error("Anomalies is nil")
		}
		if e.Metrics == nil {
			t.Error("Metrics is nil")
		}
	})

	t.Run("HealthCollaboratorsReportHealthy", func(t *testing.T) {
		collaborators := e.HealthCollaborators()
		for _, name := range []string{"llm", "vectorindex", "warehouse", "bus", "sessions"} {
			p, ok := collaborators[name]
			if !ok {
				t.Errorf("collaborator %q missing from HealthCollaborators()", name)
				continue
			}
			if err := p.Ping(t.Context()); err != nil {
				t.Errorf("%s.Ping() error = %v", name, err)
			}
		}
	})

	t.Run("IngestOneSucceedsAgainstInMemoryCollaborators", func(t *testing.T) {
		raw := logmodel.RawLogEntry{Message: "payment request failed", Service: "checkout", Severity: "error"}
		if _, err := e.Ingest.IngestOne(t.Context(), raw); err != nil {
			t.Fatalf("IngestOne() error = %v", err)
		}
	})
}

func TestBuildAnomalyConfigDefaultsWithNoRulesFile(t *testing.T) {
	rules, interval, sink := buildAnomalyConfig(memoryConfig(), zap.NewNop())
	if rules != nil {
		t.Errorf("rules = %v, want nil", rules)
	}
	if interval != time.Minute {
		t.Errorf("interval = %v, want 1m", interval)
	}
	if sink == nil {
		t.Error("sink is nil, want default memory sink")
	}
}

func TestIsMemoryRecognizesScheme(t *testing.T) {
	cases := map[string]bool{
		"":                     true,
		"memory://local":       true,
		"http://localhost:123": false,
		"clickhouse://host":    false,
	}
	for url, want := range cases {
		if got := isMemory(url); got != want {
			t.Errorf("isMemory(%q) = %v, want %v", url, got, want)
		}
	}
}
