// Package anomalyconfig loads the TOML-like anomaly rule configuration:
// check interval, Slack sink settings, and one or more detection rules.
package anomalyconfig

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/logai/logai/internal/logmodel"
)

// SlackConfig configures the outbound Slack webhook sink.
type SlackConfig struct {
	Enabled    bool   `toml:"enabled"`
	WebhookURL string `toml:"webhook_url"`
}

// Detection is the tagged detection variant for one rule, discriminated
// by Type ("statistical" | "threshold").
type Detection struct {
	Type              string  `toml:"type"`
	Metric            string  `toml:"metric"`
	Sensitivity       string  `toml:"sensitivity,omitempty"`
	BaselineWindowMin int     `toml:"baseline_window_min,omitempty"`
	Operator          string  `toml:"operator,omitempty"`
	Value             float64 `toml:"value,omitempty"`
	WindowMin         int     `toml:"window_min,omitempty"`
}

// Alert configures severity and cooldown for one rule.
type Alert struct {
	Severity    string `toml:"severity"`
	CooldownMin int    `toml:"cooldown_min"`
}

// RuleConfig is one [[rules]] table.
type RuleConfig struct {
	Name      string    `toml:"name"`
	Enabled   bool      `toml:"enabled"`
	Services  []string  `toml:"services"`
	Detection Detection `toml:"detection"`
	Alert     Alert     `toml:"alert"`
}

// Config is the full anomaly-rule configuration file.
type Config struct {
	CheckIntervalSeconds int          `toml:"check_interval_seconds"`
	Slack                SlackConfig  `toml:"slack"`
	Rules                []RuleConfig `toml:"rules"`
}

// Load reads and parses a TOML anomaly-rule file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("failed to read anomaly rules file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse anomaly rules file: %w", err)
	}
	return &cfg, nil
}

// ToLogmodelRules converts the parsed configuration into logmodel.Rule
// values, skipping disabled rules.
func (c *Config) ToLogmodelRules() []logmodel.Rule {
	out := make([]logmodel.Rule, 0, len(c.Rules))
	for _, rc := range c.Rules {
		if !rc.Enabled {
			continue
		}
		rule := logmodel.Rule{
			Name:        rc.Name,
			Enabled:     rc.Enabled,
			Services:    rc.Services,
			Severity:    rc.Alert.Severity,
			CooldownMin: rc.Alert.CooldownMin,
		}

		switch rc.Detection.Type {
		case "statistical":
			rule.Statistical = &logmodel.StatisticalDetection{
				Metric:            logmodel.Metric(rc.Detection.Metric),
				Sensitivity:       logmodel.Sensitivity(rc.Detection.Sensitivity),
				BaselineWindowMin: rc.Detection.BaselineWindowMin,
			}
		case "threshold":
			rule.Threshold = &logmodel.ThresholdDetection{
				Metric:    logmodel.Metric(rc.Detection.Metric),
				Operator:  logmodel.Operator(rc.Detection.Operator),
				Value:     rc.Detection.Value,
				WindowMin: rc.Detection.WindowMin,
			}
		}

		out = append(out, rule)
	}
	return out
}
