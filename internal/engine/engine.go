// Package engine wires the C1-C9 collaborators into the running LogAI
// process: it owns construction order, exposes the direct Go entry points
// cmd/logai-server calls, and builds the internal/health collaborator map.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/logai/logai/internal/anomaly"
	"github.com/logai/logai/internal/anomalyconfig"
	"github.com/logai/logai/internal/bus"
	"github.com/logai/logai/internal/causal"
	"github.com/logai/logai/internal/chat"
	"github.com/logai/logai/internal/config"
	"github.com/logai/logai/internal/health"
	"github.com/logai/logai/internal/ingest"
	"github.com/logai/logai/internal/llmclient"
	"github.com/logai/logai/internal/logmodel"
	"github.com/logai/logai/internal/metrics"
	"github.com/logai/logai/internal/notify"
	"github.com/logai/logai/internal/retrieval"
	"github.com/logai/logai/internal/session"
	"github.com/logai/logai/internal/vectorindex"
	"github.com/logai/logai/internal/warehouse"
)

const memoryScheme = "memory://"

// Engine owns every collaborator and exposes the direct method calls an
// HTTP layer wires up: Chat for conversational turns, Ingest for log
// intake, and Anomalies for the periodic detection loop.
type Engine struct {
	cfg *config.Config

	llm       llmclient.Client
	index     vectorindex.Index
	warehouse warehouse.Warehouse
	bus       bus.Bus
	sink      notify.Sink
	sessions  session.Store

	retrieval *retrieval.Orchestrator
	causal    *causal.Analyzer
	Chat      *chat.Controller
	Ingest    *ingest.Front
	Anomalies *anomaly.Engine

	Metrics *metrics.Metrics
	logger  *zap.Logger
}

// New constructs every collaborator from cfg and wires them into the C1-C9
// pipeline. It does not start any background loop; call Run for that.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	llm, err := buildLLM(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building llm client: %w", err)
	}

	index := buildVectorIndex(cfg, logger)
	wh, err := buildWarehouse(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building warehouse: %w", err)
	}
	msgBus := bus.NewMemoryBus(logger)
	sessions := buildSessionStore(cfg)

	retrievalOrchestrator := retrieval.New(index, llm, logger)
	causalAnalyzer := causal.New(llm, logger)
	chatController := chat.New(sessions, retrievalOrchestrator, causalAnalyzer, llm, logger, cfg.MaxContextLogs)
	ingestFront := ingest.New(msgBus, logger)
	worker := ingest.NewWorker(wh, index, llm, logger)
	if _, err := worker.Subscribe(ctx, msgBus); err != nil {
		return nil, fmt.Errorf("subscribing ingest worker: %w", err)
	}

	rules, checkInterval, sink := buildAnomalyConfig(cfg, logger)
	anomalyEngine := anomaly.New(wh, sink, rules, checkInterval, logger)

	metricsTracker := metrics.New(logger)
	chatController.SetMetrics(metricsTracker)
	ingestFront.SetMetrics(metricsTracker)
	anomalyEngine.SetMetrics(metricsTracker)

	return &Engine{
		cfg:       cfg,
		llm:       llm,
		index:     index,
		warehouse: wh,
		bus:       msgBus,
		sink:      sink,
		sessions:  sessions,
		retrieval: retrievalOrchestrator,
		causal:    causalAnalyzer,
		Chat:      chatController,
		Ingest:    ingestFront,
		Anomalies: anomalyEngine,
		Metrics:   metricsTracker,
		logger:    logger,
	}, nil
}

// Run blocks, driving the anomaly engine's periodic scan loop until ctx is
// canceled. Chat and Ingest are called synchronously by their own
// (out-of-scope) HTTP handlers and need no background loop here.
func (e *Engine) Run(ctx context.Context) {
	e.Anomalies.Run(ctx)
}

// HealthCollaborators returns every pingable collaborator, keyed by name,
// for wiring into internal/health.Checker.
func (e *Engine) HealthCollaborators() map[string]health.Pinger {
	return map[string]health.Pinger{
		"llm":         e.llm,
		"vectorindex": e.index,
		"warehouse":   e.warehouse,
		"bus":         e.bus,
		"sessions":    e.sessions,
	}
}

func buildLLM(cfg *config.Config, logger *zap.Logger) (llmclient.Client, error) {
	switch cfg.LLMProvider {
	case config.ProviderHosted:
		return llmclient.NewHosted(cfg.LLMAPIKey, cfg.LLMModel, cfg.EmbedModel, cfg.LLMBaseURL, logger), nil
	case config.ProviderLocal:
		return llmclient.NewLocal(cfg.LLMBaseURL, cfg.LLMModel, cfg.EmbedModel, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

func buildVectorIndex(cfg *config.Config, logger *zap.Logger) vectorindex.Index {
	if isMemory(cfg.VectorIndexURL) {
		return vectorindex.NewMemoryIndex()
	}
	return vectorindex.NewHTTPIndex(cfg.VectorIndexURL, logger)
}

func buildWarehouse(ctx context.Context, cfg *config.Config, logger *zap.Logger) (warehouse.Warehouse, error) {
	if isMemory(cfg.WarehouseURL) {
		return warehouse.NewMemoryWarehouse(), nil
	}
	addr := strings.TrimPrefix(cfg.WarehouseURL, "clickhouse://")
	return warehouse.NewClickHouseWarehouse(ctx, warehouse.ClickHouseOptions{Addr: addr, Database: "logai"}, logger)
}

func buildSessionStore(cfg *config.Config) session.Store {
	if cfg.SessionBackend == "redis" {
		return session.NewRedisStore(session.RedisOptions{Addr: cfg.SessionRedisURL})
	}
	return session.NewMemoryStore()
}

// buildAnomalyConfig loads the rule file named by cfg.AnomalyRulesFile, if
// any, and the outbound sink it configures. An empty rule set is valid:
// the anomaly loop simply has nothing to evaluate.
func buildAnomalyConfig(cfg *config.Config, logger *zap.Logger) ([]logmodel.Rule, time.Duration, notify.Sink) {
	if cfg.AnomalyRulesFile == "" {
		return nil, time.Minute, notify.NewMemorySink()
	}

	ruleCfg, err := anomalyconfig.Load(cfg.AnomalyRulesFile)
	if err != nil {
		logger.Warn("failed to load anomaly rules file, anomaly detection disabled", zap.Error(err))
		return nil, time.Minute, notify.NewMemorySink()
	}

	var sink notify.Sink = notify.NewMemorySink()
	if ruleCfg.Slack.Enabled && ruleCfg.Slack.WebhookURL != "" {
		sink = notify.NewSlackSink(ruleCfg.Slack.WebhookURL, logger)
	}

	checkInterval := time.Minute
	if ruleCfg.CheckIntervalSeconds > 0 {
		checkInterval = time.Duration(ruleCfg.CheckIntervalSeconds) * time.Second
	}

	return ruleCfg.ToLogmodelRules(), checkInterval, sink
}

func isMemory(url string) bool {
	return url == "" || strings.HasPrefix(url, memoryScheme)
}
