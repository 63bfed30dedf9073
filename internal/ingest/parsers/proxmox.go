package parsers

import (
	"regexp"
	"strings"
	"time"

	"github.com/logai/logai/internal/logmodel"
)

// proxmoxLine matches Proxmox VE's syslog-derived task log shape:
//
//	2023-10-11 13:55:36 node1 pvedaemon[12345]: <root@pam> end task UPID:...: OK
var proxmoxLine = regexp.MustCompile(
	`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) (\S+) ([\w.-]+)(?:\[(\d+)\])?: (.*)$`,
)

const proxmoxTimeLayout = "2006-01-02 15:04:05"

// ProxmoxParser parses Proxmox VE task/daemon log lines.
type ProxmoxParser struct{}

func (ProxmoxParser) Parse(line string) (logmodel.RawLogEntry, error) {
	m := proxmoxLine.FindStringSubmatch(line)
	if m == nil {
		return logmodel.RawLogEntry{}, errUnmatched("proxmox", line)
	}

	rawTS, node, daemon, pid, message := m[1], m[2], m[3], m[4], m[5]

	var ts *time.Time
	if t, err := time.Parse(proxmoxTimeLayout, rawTS); err == nil {
		t = t.UTC()
		ts = &t
	}

	fields := map[string]interface{}{
		"node":   node,
		"daemon": daemon,
	}
	if pid != "" {
		fields["pid"] = pid
	}

	return logmodel.RawLogEntry{
		Message:   message,
		Timestamp: ts,
		Service:   daemon,
		Severity:  proxmoxSeverityKeyword(message),
		Fields:    fields,
	}, nil
}

// proxmoxSeverityKeyword infers a severity keyword from task-log markers
// ("TASK OK"/"TASK ERROR") and common failure wording, since Proxmox's
// task log has no dedicated severity field.
func proxmoxSeverityKeyword(message string) string {
	upper := strings.ToUpper(message)
	switch {
	case strings.Contains(upper, "TASK ERROR"), strings.Contains(upper, "FAILED"), strings.Contains(upper, "ERROR"):
		return "error"
	case strings.Contains(upper, "WARN"):
		return "warn"
	default:
		return "info"
	}
}
