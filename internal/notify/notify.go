// Package notify provides the outbound alert notifier collaborator used
// by the anomaly engine (C7) to deliver firing alerts.
package notify

import (
	"context"

	"github.com/logai/logai/internal/logmodel"
)

// Sink delivers a notification for one active alert.
type Sink interface {
	Notify(ctx context.Context, alert logmodel.ActiveAlert) error
}

// Color maps an alert severity to a Slack attachment color:
// Critical=danger, Warning=warning, Info=good.
func Color(severity string) string {
	switch severity {
	case "Critical", "critical":
		return "danger"
	case "Warning", "warning":
		return "warning"
	default:
		return "good"
	}
}
