package errors

import (
	"strings"
	"testing"
)

func TestStructuredError(t *testing.T) {
	tests := []struct {
		name     string
		error    *StructuredError
		wantCode ErrorCode
		wantCat  ErrorCategory
	}{
		{"invalid input", NewInvalidInput("test message"), CodeInvalidInput, ClientError},
		{"missing parameter", NewMissingParameter("param1"), CodeMissingParameter, ClientError},
		{"invalid query", NewInvalidQuery("syntax error"), CodeInvalidQuery, ClientError},
		{"resource not found", NewResourceNotFound("session", "123"), CodeResourceNotFound, ClientError},
		{"unauthorized", NewUnauthorized(), CodeUnauthorized, ClientError},
		{"rate limit exceeded", NewRateLimitExceeded(), CodeRateLimitExceeded, ClientError},
		{"internal error", NewInternalError("something went wrong"), CodeInternalError, ServerError},
		{"service unavailable", NewServiceUnavailable(), CodeServiceUnavailable, ServerError},
		{"timeout", NewTimeout("query"), CodeTimeout, ServerError},
		{"API error", NewAPIError("vector-index", 500, "internal error"), CodeAPIError, ExternalError},
		{"auth failed", NewAuthFailed("invalid credentials"), CodeAuthFailed, ExternalError},
		{"network error", NewNetworkError("connection refused"), CodeNetworkError, ExternalError},
		{"no evidence", NewNoEvidence(), CodeNoEvidence, ClientError},
		{"no logs found", NewNoLogsFound(), CodeNoLogsFound, ClientError},
		{"no error found", NewNoErrorFound(), CodeNoErrorFound, ClientError},
		{"no root cause", NewNoRootCause(), CodeNoRootCause, ClientError},
		{"llm error", NewLLMError("provider timeout"), CodeLLMError, ExternalError},
		{"parse error", NewParseError("bad json"), CodeParseError, ClientError},
		{"unknown format", NewUnknownFormat("weird"), CodeUnknownFormat, ClientError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.error.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", tt.error.Code, tt.wantCode)
			}
			if tt.error.Category != tt.wantCat {
				t.Errorf("Category = %v, want %v", tt.error.Category, tt.wantCat)
			}
			if tt.error.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestStructuredErrorWithDetails(t *testing.T) {
	err := NewInvalidInput("test").WithDetails(map[string]interface{}{
		"field": "name",
		"value": "invalid",
	})

	details, ok := err.Details.(map[string]interface{})
	if !ok {
		t.Fatal("Details should be a map")
	}
	if details["field"] != "name" {
		t.Errorf("Details[field] = %v, want 'name'", details["field"])
	}
}

func TestStructuredErrorWithSuggestion(t *testing.T) {
	err := NewInvalidInput("test").WithSuggestion("try again")
	if err.Suggestion != "try again" {
		t.Errorf("Suggestion = %v, want 'try again'", err.Suggestion)
	}
}

func TestStructuredErrorToJSON(t *testing.T) {
	err := NewInvalidInput("test message")
	out := err.ToJSON()

	if !strings.Contains(out, string(CodeInvalidInput)) {
		t.Errorf("JSON should contain code: %s", out)
	}
	if !strings.Contains(out, string(ClientError)) {
		t.Errorf("JSON should contain category: %s", out)
	}
	if !strings.Contains(out, "test message") {
		t.Errorf("JSON should contain message: %s", out)
	}
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantCode   ErrorCode
		wantCat    ErrorCategory
	}{
		{"400 bad request", 400, "invalid input", CodeInvalidInput, ClientError},
		{"401 unauthorized", 401, "unauthorized", CodeUnauthorized, ClientError},
		{"403 forbidden", 403, "forbidden", CodeForbidden, ClientError},
		{"404 not found", 404, "not found", CodeResourceNotFound, ClientError},
		{"409 conflict", 409, "conflict", CodeConflict, ClientError},
		{"429 rate limit", 429, "too many requests", CodeRateLimitExceeded, ClientError},
		{"500 internal error", 500, "internal error", CodeAPIError, ExternalError},
		{"503 service unavailable", 503, "service unavailable", CodeAPIError, ExternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromHTTPStatus("llm-provider", tt.statusCode, tt.body)
			if err.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", err.Code, tt.wantCode)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %v, want %v", err.Category, tt.wantCat)
			}
		})
	}
}

func TestErrorInterface(t *testing.T) {
	err := NewInvalidInput("test")
	var _ error = err

	errStr := err.Error()
	if !strings.Contains(errStr, string(CodeInvalidInput)) {
		t.Errorf("Error() should contain code: %s", errStr)
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(NewRateLimitExceeded()) {
		t.Error("expected rate-limited error to be classified as such")
	}
	if IsRateLimited(NewInternalError("x")) {
		t.Error("expected non-rate-limit error to not be classified as rate-limited")
	}
}
