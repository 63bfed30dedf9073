// Package parsers implements the raw-batch log grammars named by
// internal/ingest's batch entry point: apache, nginx, syslog, and proxmox.
// Each is a straightforward regex match over one line of text; none
// attempt full RFC conformance, only the fields the normalized LogEntry
// needs.
package parsers

import (
	"fmt"

	"github.com/logai/logai/internal/logmodel"
)

// Parser turns one raw log line into a RawLogEntry.
type Parser interface {
	Parse(line string) (logmodel.RawLogEntry, error)
}

// Registry resolves a format name to its Parser. Immutable after
// construction, safe for concurrent use without locking.
var Registry = map[string]Parser{
	"apache":  ApacheParser{},
	"nginx":   NginxParser{},
	"syslog":  SyslogParser{},
	"proxmox": ProxmoxParser{},
}

// Lookup resolves a format name, case-sensitively, to its Parser.
func Lookup(format string) (Parser, bool) {
	p, ok := Registry[format]
	return p, ok
}

// errUnmatched builds the descriptive error returned when a line does not
// match a parser's expected shape.
func errUnmatched(format, line string) error {
	return fmt.Errorf("ingest: line does not match %s format: %q", format, truncate(line, 120))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
