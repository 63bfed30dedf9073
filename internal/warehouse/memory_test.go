package warehouse

import (
	"testing"
	"time"

	"github.com/logai/logai/internal/logmodel"
)

func entry(service string, sev logmodel.Severity, ts time.Time) logmodel.LogEntry {
	return logmodel.LogEntry{ID: logmodel.NewID(), Service: service, Severity: sev, Timestamp: ts, IngestedAt: ts}
}

func TestMemoryWarehouseCountErrors(t *testing.T) {
	w := NewMemoryWarehouse()
	now := time.Now().UTC()

	_ = w.Insert(t.Context(), entry("api", logmodel.SeverityError, now))
	_ = w.Insert(t.Context(), entry("api", logmodel.SeverityInfo, now))
	_ = w.Insert(t.Context(), entry("worker", logmodel.SeverityError, now))

	n, err := w.CountErrors(t.Context(), "api", now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("CountErrors() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CountErrors() = %d, want 1", n)
	}
}

func TestMemoryWarehouseTotalCount(t *testing.T) {
	w := NewMemoryWarehouse()
	now := time.Now().UTC()

	_ = w.Insert(t.Context(), entry("api", logmodel.SeverityError, now))
	_ = w.Insert(t.Context(), entry("api", logmodel.SeverityInfo, now))

	n, err := w.TotalCount(t.Context(), "api", now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("TotalCount() error = %v", err)
	}
	if n != 2 {
		t.Errorf("TotalCount() = %d, want 2", n)
	}
}

func TestMemoryWarehouseDistinctServices(t *testing.T) {
	w := NewMemoryWarehouse()
	now := time.Now().UTC()

	_ = w.Insert(t.Context(), entry("api", logmodel.SeverityInfo, now))
	_ = w.Insert(t.Context(), entry("worker", logmodel.SeverityInfo, now))
	_ = w.Insert(t.Context(), entry("api", logmodel.SeverityInfo, now))

	services, err := w.DistinctServices(t.Context())
	if err != nil {
		t.Fatalf("DistinctServices() error = %v", err)
	}
	if len(services) != 2 {
		t.Errorf("len(services) = %d, want 2", len(services))
	}
}

func TestMemoryWarehousePerMinuteErrorCounts(t *testing.T) {
	w := NewMemoryWarehouse()
	base := time.Now().Truncate(time.Minute).UTC()

	_ = w.Insert(t.Context(), entry("api", logmodel.SeverityError, base))
	_ = w.Insert(t.Context(), entry("api", logmodel.SeverityError, base))
	_ = w.Insert(t.Context(), entry("api", logmodel.SeverityError, base.Add(time.Minute)))

	counts, err := w.PerMinuteErrorCounts(t.Context(), "api", base.Add(-time.Minute), base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("PerMinuteErrorCounts() error = %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("len(counts) = %d, want 2", len(counts))
	}
	if counts[0] != 2 || counts[1] != 1 {
		t.Errorf("counts = %v, want [2 1]", counts)
	}
}

func TestMetricErrorRate(t *testing.T) {
	w := NewMemoryWarehouse()
	now := time.Now().UTC()

	_ = w.Insert(t.Context(), entry("api", logmodel.SeverityError, now))
	_ = w.Insert(t.Context(), entry("api", logmodel.SeverityInfo, now))
	_ = w.Insert(t.Context(), entry("api", logmodel.SeverityInfo, now))
	_ = w.Insert(t.Context(), entry("api", logmodel.SeverityInfo, now))

	rate, err := Metric(t.Context(), w, logmodel.MetricErrorRate, "api", now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Metric() error = %v", err)
	}
	if rate != 25.0 {
		t.Errorf("ErrorRate = %v, want 25.0", rate)
	}
}
