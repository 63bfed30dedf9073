package parsers

import (
	"regexp"
	"strconv"
	"time"

	"github.com/logai/logai/internal/logmodel"
)

// syslogLine matches RFC3164-style BSD syslog:
//
//	<34>Oct 11 22:14:15 mymachine su: 'su root' failed for lonvick on /dev/pts/8
var syslogLine = regexp.MustCompile(
	`^<(\d+)>(\w+\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}) (\S+) ([^:]+): (.*)$`,
)

const syslogTimeLayout = "Jan 2 15:04:05"

// SyslogParser parses RFC3164 BSD syslog lines.
type SyslogParser struct{}

func (SyslogParser) Parse(line string) (logmodel.RawLogEntry, error) {
	m := syslogLine.FindStringSubmatch(line)
	if m == nil {
		return logmodel.RawLogEntry{}, errUnmatched("syslog", line)
	}

	pri, err := strconv.Atoi(m[1])
	if err != nil {
		return logmodel.RawLogEntry{}, errUnmatched("syslog", line)
	}
	facility := pri / 8
	severity := pri % 8

	host, tag, message := m[3], m[4], m[5]

	var ts *time.Time
	// RFC3164 carries no year; anchor to the current one.
	if t, err := time.Parse(syslogTimeLayout, m[2]); err == nil {
		stamped := time.Date(time.Now().Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
		ts = &stamped
	}

	return logmodel.RawLogEntry{
		Message:   message,
		Timestamp: ts,
		Severity:  syslogSeverityKeyword(severity),
		Fields: map[string]interface{}{
			"facility": facility,
			"host":     host,
			"tag":      tag,
			"pri":      pri,
		},
	}, nil
}

// syslogSeverityKeyword maps an RFC3164 severity code (0=Emergency ...
// 7=Debug) onto LogAI's level vocabulary.
func syslogSeverityKeyword(severity int) string {
	switch {
	case severity <= 2:
		return "fatal"
	case severity == 3:
		return "error"
	case severity == 4:
		return "warn"
	case severity == 7:
		return "debug"
	default:
		return "info"
	}
}
