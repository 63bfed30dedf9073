// Package anomaly implements the Anomaly Engine (C7): periodic rule
// evaluation (statistical and threshold detectors) plus alert
// deduplication, cooldown, and outbound notification.
package anomaly

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/logai/logai/internal/logmodel"
	"github.com/logai/logai/internal/metrics"
	"github.com/logai/logai/internal/notify"
	"github.com/logai/logai/internal/warehouse"
)

// currentWindow is the lookback for a statistical rule's "current value".
const currentWindow = 5 * time.Minute

// Engine evaluates enabled rules on a fixed interval and dispatches
// deduplicated alerts to a notification sink.
type Engine struct {
	warehouse     warehouse.Warehouse
	sink          notify.Sink
	alerts        *AlertStore
	logger        *zap.Logger
	rules         []logmodel.Rule
	checkInterval time.Duration
	metrics       *metrics.Metrics
}

// SetMetrics attaches a metrics tracker. Optional: an Engine with no
// tracker attached simply records nothing.
func (e *Engine) SetMetrics(m *metrics.Metrics) { e.metrics = m }

// New builds an anomaly engine. checkInterval comes from the rule file's
// check_interval_seconds; per-rule cooldowns are registered with alerts.
func New(w warehouse.Warehouse, sink notify.Sink, rules []logmodel.Rule, checkInterval time.Duration, logger *zap.Logger) *Engine {
	alerts := NewAlertStore()
	for _, r := range rules {
		if r.CooldownMin > 0 {
			alerts.SetCooldown(r.Name, time.Duration(r.CooldownMin)*time.Minute)
		}
	}
	return &Engine{warehouse: w, sink: sink, alerts: alerts, logger: logger, rules: rules, checkInterval: checkInterval}
}

// Alerts exposes the engine's alert store for the /api/alerts surface and
// acknowledgement/resolution operations.
func (e *Engine) Alerts() *AlertStore { return e.alerts }

// Run blocks, evaluating all enabled rules every checkInterval (with up to
// 10% jitter per tick) until ctx is canceled.
func (e *Engine) Run(ctx context.Context) {
	if e.checkInterval <= 0 {
		e.checkInterval = time.Minute
	}

	timer := time.NewTimer(jitter(e.checkInterval))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			e.ScanOnce(ctx)
			timer.Reset(jitter(e.checkInterval))
		}
	}
}

// ScanOnce evaluates every enabled rule once, synchronously. Used both by
// Run's loop and by the synchronous /api/anomalies scan.
func (e *Engine) ScanOnce(ctx context.Context) []logmodel.Anomaly {
	var found []logmodel.Anomaly
	now := time.Now().UTC()

	for _, rule := range e.rules {
		if !rule.Enabled {
			continue
		}
		services, err := e.resolveServices(ctx, rule.Services)
		if err != nil {
			e.logger.Warn("resolving services for rule failed", zap.String("rule", rule.Name), zap.Error(err))
			continue
		}

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		for _, service := range services {
			service := service
			g.Go(func() error {
				anomaly, ok, err := e.checkRule(gctx, rule, service, now)
				if err != nil {
					e.logger.Warn("rule evaluation failed", zap.String("rule", rule.Name), zap.String("service", service), zap.Error(err))
					return nil
				}
				if !ok {
					return nil
				}
				mu.Lock()
				found = append(found, anomaly)
				mu.Unlock()
				e.dispatch(ctx, anomaly, now)
				return nil
			})
		}
		_ = g.Wait()
	}
	return found
}

func (e *Engine) dispatch(ctx context.Context, anomaly logmodel.Anomaly, now time.Time) {
	if e.metrics != nil {
		e.metrics.RecordAnomalyDetected()
	}

	alert, ok := e.alerts.Process(anomaly, now)
	if !ok {
		if e.metrics != nil {
			e.metrics.RecordAlertSuppressed()
		}
		return
	}
	if err := e.sink.Notify(ctx, alert); err != nil {
		e.logger.Warn("alert notification failed", zap.String("rule", anomaly.RuleName), zap.Error(err))
		return
	}
	if e.metrics != nil {
		e.metrics.RecordAlertFired()
	}
}

// resolveServices expands a rule's service pattern list: a literal "*"
// expands to every distinct service known to the warehouse.
func (e *Engine) resolveServices(ctx context.Context, patterns []string) ([]string, error) {
	for _, p := range patterns {
		if p == "*" {
			return e.warehouse.DistinctServices(ctx)
		}
	}
	return patterns, nil
}

func (e *Engine) checkRule(ctx context.Context, rule logmodel.Rule, service string, now time.Time) (logmodel.Anomaly, bool, error) {
	switch {
	case rule.Statistical != nil:
		return e.checkStatistical(ctx, rule, service, now)
	case rule.Threshold != nil:
		return e.checkThreshold(ctx, rule, service, now)
	default:
		return logmodel.Anomaly{}, false, nil
	}
}

func (e *Engine) checkStatistical(ctx context.Context, rule logmodel.Rule, service string, now time.Time) (logmodel.Anomaly, bool, error) {
	det := rule.Statistical
	current, err := warehouse.Metric(ctx, e.warehouse, det.Metric, service, now.Add(-currentWindow), now)
	if err != nil {
		return logmodel.Anomaly{}, false, err
	}

	avg, stddev, err := e.baseline(ctx, det.Metric, service, now, det.BaselineWindowMin)
	if err != nil {
		return logmodel.Anomaly{}, false, err
	}

	sigma := det.Sensitivity.Sigma()
	threshold := avg + sigma*stddev

	anomalous := (stddev > 0 && current > threshold) || (stddev == 0 && current > 15)
	if !anomalous {
		return logmodel.Anomaly{}, false, nil
	}

	msg := fmt.Sprintf("%s spike detected: current=%.1f, expected=%.1f (threshold=%.1f)", metricName(det.Metric), current, avg, threshold)
	return e.newAnomaly(rule, service, msg, current, avg, now), true, nil
}

func (e *Engine) checkThreshold(ctx context.Context, rule logmodel.Rule, service string, now time.Time) (logmodel.Anomaly, bool, error) {
	det := rule.Threshold
	window := time.Duration(det.WindowMin) * time.Minute
	current, err := warehouse.Metric(ctx, e.warehouse, det.Metric, service, now.Add(-window), now)
	if err != nil {
		return logmodel.Anomaly{}, false, err
	}

	if !det.Operator.Evaluate(current, det.Value) {
		return logmodel.Anomaly{}, false, nil
	}

	msg := fmt.Sprintf("%s threshold breached: current=%.1f %s %.1f", metricName(det.Metric), current, det.Operator, det.Value)
	return e.newAnomaly(rule, service, msg, current, det.Value, now), true, nil
}

func (e *Engine) newAnomaly(rule logmodel.Rule, service, message string, current, expected float64, now time.Time) logmodel.Anomaly {
	return logmodel.Anomaly{
		ID: uuid.NewString(), RuleName: rule.Name, Service: service, Severity: rule.Severity,
		Message: message, CurrentValue: current, ExpectedValue: expected, DetectedAt: now,
	}
}

// baseline computes the per-minute average and population standard
// deviation of metric over the preceding windowMin minutes. ErrorCount
// uses the warehouse's dedicated per-minute bucketing; other metrics are
// bucketed minute-by-minute via repeated Metric calls.
func (e *Engine) baseline(ctx context.Context, metric logmodel.Metric, service string, now time.Time, windowMin int) (float64, float64, error) {
	from := now.Add(-time.Duration(windowMin) * time.Minute)

	var samples []float64
	if metric == logmodel.MetricErrorCount {
		counts, err := e.warehouse.PerMinuteErrorCounts(ctx, service, from, now)
		if err != nil {
			return 0, 0, err
		}
		samples = make([]float64, len(counts))
		for i, c := range counts {
			samples[i] = float64(c)
		}
	} else {
		var err error
		samples, err = e.bucketedSamples(ctx, metric, service, from, now)
		if err != nil {
			return 0, 0, err
		}
	}

	avg, stddev := meanStddev(samples)
	return avg, stddev, nil
}

// bucketedSamples evaluates Metric once per whole minute in [from, to).
func (e *Engine) bucketedSamples(ctx context.Context, metric logmodel.Metric, service string, from, to time.Time) ([]float64, error) {
	var samples []float64
	for t := from.Truncate(time.Minute); t.Before(to); t = t.Add(time.Minute) {
		v, err := warehouse.Metric(ctx, e.warehouse, metric, service, t, t.Add(time.Minute))
		if err != nil {
			return nil, err
		}
		samples = append(samples, v)
	}
	return samples, nil
}

// meanStddev returns the arithmetic mean and population standard
// deviation of samples.
func meanStddev(samples []float64) (mean, stddev float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean = sum / float64(len(samples))

	var variance float64
	for _, s := range samples {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(samples))
	return mean, math.Sqrt(variance)
}

func metricName(m logmodel.Metric) string {
	switch m {
	case logmodel.MetricErrorCount:
		return "Error count"
	case logmodel.MetricErrorRate:
		return "Error rate"
	case logmodel.MetricLogVolume:
		return "Log volume"
	default:
		return string(m)
	}
}

// jitter adds up to 10% random jitter to base, using crypto/rand.
func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return base
	}
	maxJitter := int64(base) / 10
	if maxJitter <= 0 {
		return base
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return base
	}
	b[7] &= 0x7F
	var n int64
	for i := 0; i < 8; i++ {
		n |= int64(b[i]) << (8 * i)
	}
	return base + time.Duration(n%maxJitter)
}
