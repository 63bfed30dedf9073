package parsers

import (
	"regexp"
	"time"

	"github.com/logai/logai/internal/logmodel"
)

// apacheLine matches the Apache/NCSA "combined" access log format:
//
//	127.0.0.1 - - [10/Oct/2023:13:55:36 -0700] "GET /index.html HTTP/1.1" 200 2326 "http://ref" "UA"
var apacheLine = regexp.MustCompile(
	`^(\S+) \S+ \S+ \[([^\]]+)\] "(\S+) (\S+)[^"]*" (\d{3}) (\S+)(?: "([^"]*)" "([^"]*)")?$`,
)

const apacheTimeLayout = "02/Jan/2006:15:04:05 -0700"

// ApacheParser parses Apache/NCSA combined-format access log lines.
type ApacheParser struct{}

func (ApacheParser) Parse(line string) (logmodel.RawLogEntry, error) {
	m := apacheLine.FindStringSubmatch(line)
	if m == nil {
		return logmodel.RawLogEntry{}, errUnmatched("apache", line)
	}

	clientIP, rawTS, method, path, status, referrer, userAgent := m[1], m[2], m[3], m[4], m[5], m[7], m[8]

	var ts *time.Time
	if t, err := time.Parse(apacheTimeLayout, rawTS); err == nil {
		ts = &t
	}

	return logmodel.RawLogEntry{
		Message:   method + " " + path + " " + status,
		Timestamp: ts,
		Severity:  severityForStatus(status),
		Fields: map[string]interface{}{
			"client_ip":  clientIP,
			"method":     method,
			"path":       path,
			"status":     status,
			"referrer":   referrer,
			"user_agent": userAgent,
		},
	}, nil
}

// severityForStatus maps an HTTP status code string to a severity keyword,
// shared by the apache and nginx parsers.
func severityForStatus(status string) string {
	if len(status) == 0 {
		return "info"
	}
	switch status[0] {
	case '5':
		return "error"
	case '4':
		return "warn"
	default:
		return "info"
	}
}
