// Package metrics provides metrics collection and reporting for the LogAI engine.
package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	labelComponent = "component"
	labelStatus    = "status"
)

// Metrics tracks operational metrics with both internal atomic counters and
// Prometheus collectors, updated together on every recording call.
type Metrics struct {
	totalRequests      atomic.Uint64
	successfulRequests atomic.Uint64
	failedRequests     atomic.Uint64
	retriedRequests    atomic.Uint64

	totalLatency atomic.Int64 // microseconds
	latencyCount atomic.Uint64
	maxLatency   atomic.Int64
	minLatency   atomic.Int64

	rateLimitHits atomic.Uint64

	errorsMu       sync.RWMutex
	errorsByStatus map[int]uint64

	componentsMu        sync.RWMutex
	componentCalls      map[string]uint64
	componentErrors     map[string]uint64
	componentLatencyAvg map[string]int64 // microseconds

	logger *zap.Logger

	promRequestsTotal      prometheus.Counter
	promRequestsSuccessful prometheus.Counter
	promRequestsFailed     prometheus.Counter
	promRequestsRetried    prometheus.Counter
	promRateLimitHits      prometheus.Counter
	promRequestLatency     prometheus.Histogram
	promErrorsByStatus     *prometheus.CounterVec
	promComponentCalls     *prometheus.CounterVec
	promComponentErrors    *prometheus.CounterVec
	promComponentLatency   *prometheus.HistogramVec

	// Domain counters (the C2-C8 pipeline)
	promTurnsProcessed    prometheus.Counter
	promEvidenceCacheHits prometheus.Counter
	promCausalChainsBuilt prometheus.Counter
	promAnomaliesDetected prometheus.Counter
	promAlertsFired       prometheus.Counter
	promAlertsSuppressed  prometheus.Counter
	promIngestParseErrors prometheus.Counter
}

// New creates a new metrics tracker with Prometheus integration.
func New(logger *zap.Logger) *Metrics {
	m := &Metrics{
		errorsByStatus:      make(map[int]uint64),
		componentCalls:      make(map[string]uint64),
		componentErrors:     make(map[string]uint64),
		componentLatencyAvg: make(map[string]int64),
		logger:              logger,

		promRequestsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logai",
			Name:      "requests_total",
			Help:      "Total number of requests handled by the engine",
		}),
		promRequestsSuccessful: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logai",
			Name:      "requests_successful_total",
			Help:      "Total number of successful requests",
		}),
		promRequestsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logai",
			Name:      "requests_failed_total",
			Help:      "Total number of failed requests",
		}),
		promRequestsRetried: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logai",
			Name:      "requests_retried_total",
			Help:      "Total number of retried upstream calls",
		}),
		promRateLimitHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logai",
			Name:      "rate_limit_hits_total",
			Help:      "Total number of client-side rate limit hits",
		}),
		promRequestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "logai",
			Name:      "request_latency_seconds",
			Help:      "Request latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		promErrorsByStatus: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logai",
			Name:      "errors_by_status_total",
			Help:      "Errors by HTTP status code",
		}, []string{labelStatus}),

		promComponentCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logai",
			Name:      "component_calls_total",
			Help:      "Total number of component invocations, labeled by component name",
		}, []string{labelComponent}),
		promComponentErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logai",
			Name:      "component_errors_total",
			Help:      "Total number of component errors, labeled by component name",
		}, []string{labelComponent}),
		promComponentLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "logai",
			Name:      "component_latency_seconds",
			Help:      "Component execution latency in seconds, labeled by component name",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{labelComponent}),

		promTurnsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logai",
			Name:      "chat_turns_total",
			Help:      "Total number of chat turns processed",
		}),
		promEvidenceCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logai",
			Name:      "evidence_cache_hits_total",
			Help:      "Total number of follow-up turns that reused cached evidence",
		}),
		promCausalChainsBuilt: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logai",
			Name:      "causal_chains_total",
			Help:      "Total number of causal chains produced",
		}),
		promAnomaliesDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logai",
			Name:      "anomalies_detected_total",
			Help:      "Total number of anomalies detected across all rules",
		}),
		promAlertsFired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logai",
			Name:      "alerts_fired_total",
			Help:      "Total number of outbound alert notifications sent",
		}),
		promAlertsSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logai",
			Name:      "alerts_suppressed_total",
			Help:      "Total number of alerts suppressed by dedup/cooldown",
		}),
		promIngestParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logai",
			Name:      "ingest_parse_errors_total",
			Help:      "Total number of raw log lines that failed to parse",
		}),
	}

	m.minLatency.Store(int64(time.Hour))

	return m
}

// RecordRequest records a request (both internal counters and Prometheus).
func (m *Metrics) RecordRequest(success bool, latency time.Duration, statusCode int) {
	m.totalRequests.Add(1)
	m.promRequestsTotal.Inc()
	m.promRequestLatency.Observe(latency.Seconds())

	if success {
		m.successfulRequests.Add(1)
		m.promRequestsSuccessful.Inc()
	} else {
		m.failedRequests.Add(1)
		m.promRequestsFailed.Inc()
		m.recordErrorStatus(statusCode)
	}

	m.recordLatency(latency)
}

// RecordRetry records a retry attempt against an upstream collaborator.
func (m *Metrics) RecordRetry() {
	m.retriedRequests.Add(1)
	m.promRequestsRetried.Inc()
}

// RecordRateLimitHit records a client-side rate limit hit.
func (m *Metrics) RecordRateLimitHit() {
	m.rateLimitHits.Add(1)
	m.promRateLimitHits.Inc()
}

// RecordComponentExecution records one invocation of a named engine
// component (e.g. "query_analyzer", "retrieval_orchestrator", "causal_chain").
func (m *Metrics) RecordComponentExecution(component string, success bool, latency time.Duration) {
	m.componentsMu.Lock()
	m.componentCalls[component]++
	if !success {
		m.componentErrors[component]++
	}
	if latency > 0 && m.componentCalls[component] > 0 {
		currentLatency := m.componentLatencyAvg[component]
		count := float64(m.componentCalls[component])
		avgLatency := (float64(currentLatency)*(count-1) + float64(latency.Microseconds())) / count
		m.componentLatencyAvg[component] = int64(avgLatency)
	}
	m.componentsMu.Unlock()

	m.promComponentCalls.WithLabelValues(component).Inc()
	m.promComponentLatency.WithLabelValues(component).Observe(latency.Seconds())
	if !success {
		m.promComponentErrors.WithLabelValues(component).Inc()
	}
}

func (m *Metrics) RecordChatTurn()          { m.promTurnsProcessed.Inc() }
func (m *Metrics) RecordEvidenceReuse()     { m.promEvidenceCacheHits.Inc() }
func (m *Metrics) RecordCausalChain()       { m.promCausalChainsBuilt.Inc() }
func (m *Metrics) RecordAnomalyDetected()   { m.promAnomaliesDetected.Inc() }
func (m *Metrics) RecordAlertFired()        { m.promAlertsFired.Inc() }
func (m *Metrics) RecordAlertSuppressed()   { m.promAlertsSuppressed.Inc() }
func (m *Metrics) RecordIngestParseError()  { m.promIngestParseErrors.Inc() }

func (m *Metrics) recordLatency(latency time.Duration) {
	latencyUs := latency.Microseconds()

	m.totalLatency.Add(latencyUs)
	m.latencyCount.Add(1)

	for {
		currentMax := m.maxLatency.Load()
		if latencyUs <= currentMax {
			break
		}
		if m.maxLatency.CompareAndSwap(currentMax, latencyUs) {
			break
		}
	}

	for {
		currentMin := m.minLatency.Load()
		if latencyUs >= currentMin {
			break
		}
		if m.minLatency.CompareAndSwap(currentMin, latencyUs) {
			break
		}
	}
}

func (m *Metrics) recordErrorStatus(statusCode int) {
	if statusCode == 0 {
		return
	}

	m.errorsMu.Lock()
	m.errorsByStatus[statusCode]++
	m.errorsMu.Unlock()

	m.promErrorsByStatus.WithLabelValues(fmt.Sprintf("%d", statusCode)).Inc()
}

// GetStats returns a point-in-time snapshot of the internal counters.
func (m *Metrics) GetStats() Stats {
	m.errorsMu.RLock()
	errorsByStatus := make(map[int]uint64, len(m.errorsByStatus))
	for k, v := range m.errorsByStatus {
		errorsByStatus[k] = v
	}
	m.errorsMu.RUnlock()

	m.componentsMu.RLock()
	componentCalls := make(map[string]uint64, len(m.componentCalls))
	componentErrors := make(map[string]uint64, len(m.componentErrors))
	componentLatency := make(map[string]time.Duration, len(m.componentLatencyAvg))
	for k, v := range m.componentCalls {
		componentCalls[k] = v
	}
	for k, v := range m.componentErrors {
		componentErrors[k] = v
	}
	for k, v := range m.componentLatencyAvg {
		componentLatency[k] = time.Duration(v) * time.Microsecond
	}
	m.componentsMu.RUnlock()

	totalReq := m.totalRequests.Load()
	latencyCount := m.latencyCount.Load()

	var avgLatency time.Duration
	if latencyCount > 0 {
		avgLatencyMicros := float64(m.totalLatency.Load()) / float64(latencyCount)
		avgLatency = time.Duration(avgLatencyMicros) * time.Microsecond
	}

	return Stats{
		TotalRequests:      totalReq,
		SuccessfulRequests: m.successfulRequests.Load(),
		FailedRequests:     m.failedRequests.Load(),
		RetriedRequests:    m.retriedRequests.Load(),
		RateLimitHits:      m.rateLimitHits.Load(),
		AverageLatency:     avgLatency,
		MaxLatency:         time.Duration(m.maxLatency.Load()) * time.Microsecond,
		MinLatency:         time.Duration(m.minLatency.Load()) * time.Microsecond,
		ErrorsByStatus:     errorsByStatus,
		ComponentCalls:     componentCalls,
		ComponentErrors:    componentErrors,
		ComponentLatency:   componentLatency,
	}
}

// LogStats logs current statistics.
func (m *Metrics) LogStats() {
	stats := m.GetStats()

	var errorRate float64
	if stats.TotalRequests > 0 {
		errorRate = float64(stats.FailedRequests) / float64(stats.TotalRequests) * 100
	}

	m.logger.Info("Operational metrics",
		zap.Uint64("total_requests", stats.TotalRequests),
		zap.Uint64("successful_requests", stats.SuccessfulRequests),
		zap.Uint64("failed_requests", stats.FailedRequests),
		zap.Float64("error_rate_pct", errorRate),
		zap.Uint64("retried_requests", stats.RetriedRequests),
		zap.Uint64("rate_limit_hits", stats.RateLimitHits),
		zap.Duration("avg_latency", stats.AverageLatency),
		zap.Duration("max_latency", stats.MaxLatency),
		zap.Duration("min_latency", stats.MinLatency),
		zap.Any("errors_by_status", stats.ErrorsByStatus),
		zap.Any("component_calls", stats.ComponentCalls),
	)
}

// Stats represents current metrics.
type Stats struct {
	TotalRequests      uint64
	SuccessfulRequests uint64
	FailedRequests     uint64
	RetriedRequests    uint64
	RateLimitHits      uint64
	AverageLatency     time.Duration
	MaxLatency         time.Duration
	MinLatency         time.Duration
	ErrorsByStatus     map[int]uint64
	ComponentCalls     map[string]uint64
	ComponentErrors    map[string]uint64
	ComponentLatency   map[string]time.Duration
}

// GetPrometheusRegistry returns the default Prometheus registry, which
// promauto registers into. Usable with promhttp.HandlerFor().
func GetPrometheusRegistry() *prometheus.Registry {
	return prometheus.DefaultRegisterer.(*prometheus.Registry)
}
