package parsers

import (
	"regexp"
	"time"

	"github.com/logai/logai/internal/logmodel"
)

// nginxLine matches nginx's default "combined" access log format, which is
// byte-for-byte identical in shape to Apache's but ships its own
// log_format default and occasionally omits the referrer/user-agent pair
// ("-" placeholders), so it gets its own parser and regex.
var nginxLine = regexp.MustCompile(
	`^(\S+) - \S+ \[([^\]]+)\] "(\S+) (\S+)[^"]*" (\d{3}) (\S+) "([^"]*)" "([^"]*)"$`,
)

const nginxTimeLayout = "02/Jan/2006:15:04:05 -0700"

// NginxParser parses nginx's default combined-format access log lines.
type NginxParser struct{}

func (NginxParser) Parse(line string) (logmodel.RawLogEntry, error) {
	m := nginxLine.FindStringSubmatch(line)
	if m == nil {
		return logmodel.RawLogEntry{}, errUnmatched("nginx", line)
	}

	clientIP, rawTS, method, path, status, referrer, userAgent := m[1], m[2], m[3], m[4], m[5], m[7], m[8]

	var ts *time.Time
	if t, err := time.Parse(nginxTimeLayout, rawTS); err == nil {
		ts = &t
	}

	fields := map[string]interface{}{
		"client_ip": clientIP,
		"method":    method,
		"path":      path,
		"status":    status,
	}
	if referrer != "-" {
		fields["referrer"] = referrer
	}
	if userAgent != "-" {
		fields["user_agent"] = userAgent
	}

	return logmodel.RawLogEntry{
		Message:   method + " " + path + " " + status,
		Timestamp: ts,
		Severity:  severityForStatus(status),
		Fields:    fields,
	}, nil
}
