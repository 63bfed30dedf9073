// Package query implements the Query Analyzer (C1): pure, deterministic
// (except for reading the wall clock) classification of a natural
// language question into an AnalyzedQuery.
package query

import (
	"regexp"
	"strings"
	"time"

	"github.com/logai/logai/internal/logmodel"
)

// Analyze classifies text into an AnalyzedQuery, resolving relative time
// phrases against now.
func Analyze(text string, now time.Time) logmodel.AnalyzedQuery {
	lower := strings.ToLower(text)

	intent := classifyIntent(lower)
	from := extractTemporal(lower, now)
	service := extractService(lower)
	level := extractLevel(lower)
	cleaned := cleanQuery(text)

	return logmodel.AnalyzedQuery{
		Original: text,
		Cleaned:  cleaned,
		From:     from,
		Service:  service,
		Level:    level,
		Intent:   intent,
	}
}

func classifyIntent(lower string) logmodel.Intent {
	if strings.HasPrefix(lower, "why") || containsAny(lower,
		"what caused", "root cause", "reason for", "what led to",
		"explain the crash", "what happened before") {
		return logmodel.IntentCausal
	}
	if containsAny(lower, "trace", "request id", "trace-id") {
		return logmodel.IntentTrace
	}
	if strings.HasPrefix(lower, "summarize") || strings.HasPrefix(lower, "summary") || strings.Contains(lower, "overview") {
		return logmodel.IntentSummary
	}
	return logmodel.IntentSearch
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var numericWindowRe = regexp.MustCompile(`\b(?:last|past)\s+(\d+)\s*(h|hr|hrs|hour|hours|m|min|mins|minute|minutes|d|day|days)\b`)

func extractTemporal(lower string, now time.Time) *time.Time {
	if m := numericWindowRe.FindStringSubmatch(lower); m != nil {
		n := parseInt(m[1])
		unit := unitDuration(m[2])
		from := now.Add(-time.Duration(n) * unit)
		return &from
	}

	switch {
	case strings.Contains(lower, "yesterday"):
		from := now.Add(-24 * time.Hour)
		return &from
	case strings.Contains(lower, "today"):
		from := now.Add(-12 * time.Hour)
		return &from
	case strings.Contains(lower, "this week"):
		from := now.Add(-7 * 24 * time.Hour)
		return &from
	case strings.Contains(lower, "this month"):
		from := now.Add(-30 * 24 * time.Hour)
		return &from
	case strings.Contains(lower, "last hour"):
		from := now.Add(-time.Hour)
		return &from
	case strings.Contains(lower, "recent"):
		from := now.Add(-30 * time.Minute)
		return &from
	default:
		return nil
	}
}

func parseInt(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

func unitDuration(unit string) time.Duration {
	switch unit {
	case "h", "hr", "hrs", "hour", "hours":
		return time.Hour
	case "m", "min", "mins", "minute", "minutes":
		return time.Minute
	case "d", "day", "days":
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

var serviceLexicon = []string{
	"nginx", "apache", "mysql", "postgres", "redis", "kafka",
	"docker", "kubernetes", "k8s", "api", "auth", "gateway",
	"payment", "order", "user", "checkout",
}

func extractService(lower string) string {
	for _, svc := range serviceLexicon {
		if wordBoundaryContains(lower, svc) {
			return svc
		}
	}
	return ""
}

func wordBoundaryContains(s, word string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	return re.MatchString(s)
}

func extractLevel(lower string) string {
	switch {
	case containsAny(lower, "error", "fail", "failed", "crash"):
		return "Error"
	case containsAny(lower, "warn", "warning"):
		return "Warn"
	case strings.Contains(lower, "debug"):
		return "Debug"
	case containsAny(lower, "anomaly", "incident", "outage", "problem"):
		return "Error"
	case strings.Contains(lower, "info") && !strings.Contains(lower, "information about"):
		return "Info"
	default:
		return ""
	}
}

var temporalPhraseRe = regexp.MustCompile(
	`(?i)\b(yesterday|today|this week|this month|recent|last hour|(?:last|past)\s+\d+\s*(?:h|hr|hrs|hour|hours|m|min|mins|minute|minutes|d|day|days))\b`,
)

var leadingFillerRe = regexp.MustCompile(
	`(?i)^(show me|give me|find|list all|display|tell me about|what is|what are)\s+`,
)

var trailingPleaseRe = regexp.MustCompile(`(?i)\s*please\s*$`)

var whitespaceRe = regexp.MustCompile(`\s+`)

func cleanQuery(text string) string {
	cleaned := temporalPhraseRe.ReplaceAllString(text, "")
	cleaned = leadingFillerRe.ReplaceAllString(cleaned, "")
	cleaned = trailingPleaseRe.ReplaceAllString(cleaned, "")
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
