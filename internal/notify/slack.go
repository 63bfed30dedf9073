package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/logai/logai/internal/logmodel"
)

// SlackSink posts alert notifications to a Slack-compatible incoming
// webhook.
type SlackSink struct {
	webhookURL string
	logger     *zap.Logger
}

// NewSlackSink builds a Slack webhook sink.
func NewSlackSink(webhookURL string, logger *zap.Logger) *SlackSink {
	return &SlackSink{webhookURL: webhookURL, logger: logger}
}

func (s *SlackSink) Notify(_ context.Context, alert logmodel.ActiveAlert) error {
	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf("%s alert for %s: %s", alert.Severity, alert.Key.Service, alert.Message),
		Attachments: []slack.Attachment{
			{
				Color: Color(alert.Severity),
				Title: fmt.Sprintf("%s / %s", alert.Key.RuleName, alert.Key.Service),
				Text:  alert.Message,
				Fields: []slack.AttachmentField{
					{Title: "Service", Value: alert.Key.Service, Short: true},
					{Title: "Severity", Value: alert.Severity, Short: true},
					{Title: "State", Value: string(alert.State), Short: true},
				},
				Footer: alert.Key.RuleName,
				Ts:     json.Number(fmt.Sprintf("%d", alert.FiringAt.Unix())),
			},
		},
	}

	if err := slack.PostWebhook(s.webhookURL, msg); err != nil {
		s.logger.Warn("slack webhook delivery failed", zap.Error(err), zap.String("rule", alert.Key.RuleName))
		return fmt.Errorf("slack notify failed: %w", err)
	}
	return nil
}
