// Package chat implements the Chat Controller (C6): the end-to-end turn
// algorithm tying together the gates, query analyzer, retrieval
// orchestrator, causal analyzer, and session store.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/logai/logai/internal/causal"
	"github.com/logai/logai/internal/errors"
	"github.com/logai/logai/internal/llmclient"
	"github.com/logai/logai/internal/logmodel"
	"github.com/logai/logai/internal/metrics"
	"github.com/logai/logai/internal/query"
	"github.com/logai/logai/internal/retrieval"
	"github.com/logai/logai/internal/session"
	"github.com/logai/logai/internal/tracing"
)

const (
	// causalContextLogs is K_context for causal-intent turns.
	causalContextLogs = 50
	// historyContextTurns is how many trailing history entries are folded
	// into the prompt.
	historyContextTurns = 6
)

var greetings = []string{
	"hi", "hello", "hey", "good morning", "good afternoon", "good evening",
	"howdy", "sup", "what's up", "yo",
}

var gibberishPatterns = []string{"asdf", "qwer", "zxcv", "hjkl", "jkl;"}

var logKeywords = []string{
	"error", "log", "warn", "debug", "info", "service", "api", "database", "db",
	"timeout", "slow", "failed", "failure", "crash", "down", "outage", "issue", "problem",
	"anomal", "incident", "alert", "critical", "auth", "payment", "nginx", "redis", "kafka",
	"query", "connection", "latency", "performance", "traffic", "request", "response",
	"yesterday", "today", "last hour", "last minute", "recent", "happened", "show me", "find",
}

var newTopicIndicators = []string{
	"show me", "find", "list", "get", "what are", "search for",
	"auth", "database", "payment", "nginx", "api", "error", "warning",
	"timeout", "connection", "failure", "crash", "security",
	"last hour", "last 2", "last 30", "yesterday", "today",
}

var followupIndicators = []string{
	"explain", "tell me more", "what caused", "why did", "how to fix",
	"first one", "second one", "third one", "this", "that", "it",
	"the error", "the issue", "more details", "elaborate", "expand",
}

const introAnswer = "Hello! I'm LogAI, your log analysis assistant. Ask me about errors, performance issues, or anomalies in your logs. For example:\n\n" +
	"• \"Show me errors in the last hour\"\n" +
	"• \"What happened yesterday?\"\n" +
	"• \"Why is the payment service slow?\"\n" +
	"• \"Summarize auth failures\""

const capabilityAnswer = "I'm LogAI - I specialize in analyzing your system logs. I can help with:\n\n" +
	"• Finding errors and warnings\n" +
	"• Investigating performance issues\n" +
	"• Summarizing anomalies and incidents\n" +
	"• Debugging service failures\n\n" +
	"Try: \"Show me errors in the last hour\" or \"Why is the database slow?\""

// Response is the assembled turn output returned to the chat API.
type Response struct {
	Answer           string
	SourcesCount     int
	Provider         string
	ContextLogs      int
	ConversationTurn int
	SourceLogs       []string
	CausalChain      *logmodel.CausalChain
}

// Controller implements C6.
type Controller struct {
	sessions       session.Store
	retrieval      *retrieval.Orchestrator
	causalAnalyzer *causal.Analyzer
	llm            llmclient.Client
	logger         *zap.Logger
	maxContextLogs int
	metrics        *metrics.Metrics
}

// New builds a chat controller.
func New(sessions session.Store, r *retrieval.Orchestrator, c *causal.Analyzer, llm llmclient.Client, logger *zap.Logger, maxContextLogs int) *Controller {
	if maxContextLogs <= 0 {
		maxContextLogs = 10
	}
	return &Controller{sessions: sessions, retrieval: r, causalAnalyzer: c, llm: llm, logger: logger, maxContextLogs: maxContextLogs}
}

// SetMetrics attaches a metrics tracker. Optional: a Controller with no
// tracker attached simply records nothing.
func (c *Controller) SetMetrics(m *metrics.Metrics) { c.metrics = m }

// HandleTurn runs the full turn algorithm for one chat message.
func (c *Controller) HandleTurn(ctx context.Context, sessionID, message string, clientHistory []logmodel.ChatTurn) (*Response, error) {
	ctx, span := tracing.ComponentSpan(ctx, "chat")
	defer span.End()

	resp, err := c.handleTurn(ctx, sessionID, message, clientHistory)
	if err != nil {
		tracing.RecordError(span, err)
	} else {
		tracing.SetSuccess(span)
	}
	return resp, err
}

func (c *Controller) handleTurn(ctx context.Context, sessionID, message string, clientHistory []logmodel.ChatTurn) (*Response, error) {
	lower := strings.ToLower(strings.TrimSpace(message))

	if isGreeting(lower) {
		return &Response{Answer: introAnswer, Provider: "system", ConversationTurn: 1}, nil
	}
	if isGibberish(lower) {
		return &Response{Answer: capabilityAnswer, Provider: "system", ConversationTurn: 1}, nil
	}
	if c.isOffTopic(ctx, lower, message) {
		return &Response{Answer: capabilityAnswer, Provider: "system", ConversationTurn: 1}, nil
	}

	if err := c.sessions.GetOrCreate(ctx, sessionID); err != nil {
		return nil, err
	}
	snap, err := c.sessions.ReadSnapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	history := snap.History
	if len(history) == 0 && len(clientHistory) > 0 {
		history = clientHistory
	}

	followUp := c.classifyFollowUp(ctx, snap.LastQuery, message)
	analyzed := query.Analyze(message, time.Now().UTC())
	causalQuery := analyzed.Intent == logmodel.IntentCausal

	var evidenceJSON []string
	if followUp && len(snap.LastEvidence) > 0 && !causalQuery {
		evidenceJSON = snap.LastEvidence
		if c.metrics != nil {
			c.metrics.RecordEvidenceReuse()
		}
	} else {
		kContext := c.maxContextLogs
		if causalQuery {
			kContext = causalContextLogs
		}
		evidence, err := c.retrieval.Retrieve(ctx, analyzed, message, kContext, true)
		if err != nil {
			return nil, err
		}
		evidenceJSON = make([]string, 0, len(evidence))
		for _, e := range evidence {
			js, err := retrieval.ToJSON(e)
			if err != nil {
				continue
			}
			evidenceJSON = append(evidenceJSON, js)
		}
	}

	prompt := buildPrompt(message, history, evidenceJSON)

	var answer, provider string
	var chain *logmodel.CausalChain
	if causalQuery {
		chain, err = c.causalAnalyzer.Analyze(ctx, message, evidenceJSON, analyzed.Service)
		if err != nil {
			c.logger.Warn("causal analysis failed, falling back to plain summarizer", zap.Error(err))
			answer, err = c.summarize(ctx, prompt)
			if err != nil {
				return nil, err
			}
			provider = c.llm.Provider()
		} else {
			answer = chain.Summary
			provider = c.llm.Provider()
			if c.metrics != nil {
				c.metrics.RecordCausalChain()
			}
		}
	} else {
		answer, err = c.summarize(ctx, prompt)
		if err != nil {
			return nil, err
		}
		provider = c.llm.Provider()
	}

	if err := c.sessions.AppendTurn(ctx, sessionID, message, answer, evidenceJSON, message); err != nil {
		return nil, err
	}
	info, err := c.sessions.Info(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordChatTurn()
	}

	return &Response{
		Answer:           answer,
		SourcesCount:     len(evidenceJSON),
		Provider:         provider,
		ContextLogs:      len(evidenceJSON),
		ConversationTurn: info.Turns,
		SourceLogs:       evidenceJSON,
		CausalChain:      chain,
	}, nil
}

func (c *Controller) summarize(ctx context.Context, prompt string) (string, error) {
	answer, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		return "", errors.NewLLMError(fmt.Sprintf("chat generation failed: %v", err))
	}
	return answer, nil
}

func isGreeting(lower string) bool {
	for _, g := range greetings {
		if lower == g || strings.HasPrefix(lower, g+" ") {
			return true
		}
	}
	return false
}

func isGibberish(lower string) bool {
	for _, p := range gibberishPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// isOffTopic asks the LLM yes/no when the message lacks any log-context
// keyword. Classifier failure defaults to "on topic".
func (c *Controller) isOffTopic(ctx context.Context, lower, original string) bool {
	if len(lower) <= 5 || containsAny(lower, logKeywords) {
		return false
	}

	prompt := fmt.Sprintf(
		"Is this question about analyzing logs, debugging, system errors, or infrastructure monitoring?\nQuestion: %q\nAnswer YES or NO only.",
		original,
	)
	resp, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		return false
	}
	return !strings.Contains(strings.ToUpper(resp), "YES")
}

// classifyFollowUp reports whether message continues the previous query.
func (c *Controller) classifyFollowUp(ctx context.Context, lastQuery, message string) bool {
	if lastQuery == "" {
		return false
	}
	lower := strings.ToLower(message)
	lastLower := strings.ToLower(lastQuery)

	for _, ind := range newTopicIndicators {
		if strings.Contains(lower, ind) && !strings.Contains(lastLower, ind) {
			return false
		}
	}
	for _, ind := range followupIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}

	prompt := fmt.Sprintf(
		"Previous query: %q\nNew query: %q\n\nIs the new query a FOLLOW_UP (asking about same topic/logs) or NEW_SEARCH (different topic)?\nAnswer with one word only: FOLLOW_UP or NEW_SEARCH",
		lastQuery, message,
	)
	resp, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToUpper(resp), "FOLLOW")
}

func containsAny(text string, candidates []string) bool {
	for _, c := range candidates {
		if strings.Contains(text, c) {
			return true
		}
	}
	return false
}

func buildPrompt(message string, history []logmodel.ChatTurn, evidenceJSON []string) string {
	var b strings.Builder

	if len(history) > 0 {
		start := 0
		if len(history) > historyContextTurns {
			start = len(history) - historyContextTurns
		}
		b.WriteString("Previous conversation:\n")
		for _, turn := range history[start:] {
			role := "User"
			if turn.Role == logmodel.RoleAssistant {
				role = "AI"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, turn.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "USER QUESTION: %s\n\nRELEVANT LOGS:\n%s\n\n", message, strings.Join(evidenceJSON, "\n"))
	b.WriteString("INSTRUCTIONS:\n" +
		"1. Analyze the logs carefully\n" +
		"2. Identify patterns, errors, or anomalies relevant to the question\n" +
		"3. Be concise; vary sentence structure across turns\n" +
		"4. Quote a log line directly when it clarifies the answer\n" +
		"5. Never list the same log line twice\n\nANSWER:")
	return b.String()
}
