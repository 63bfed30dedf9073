package parsers

import "testing"

func TestApacheParserExtractsFields(t *testing.T) {
	line := `127.0.0.1 - - [10/Oct/2023:13:55:36 -0700] "GET /index.html HTTP/1.1" 200 2326 "http://example.com" "Mozilla/5.0"`
	raw, err := ApacheParser{}.Parse(line)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if raw.Fields["client_ip"] != "127.0.0.1" {
		t.Errorf("client_ip = %v, want 127.0.0.1", raw.Fields["client_ip"])
	}
	if raw.Fields["status"] != "200" {
		t.Errorf("status = %v, want 200", raw.Fields["status"])
	}
	if raw.Severity != "info" {
		t.Errorf("Severity = %q, want info", raw.Severity)
	}
	if raw.Timestamp == nil {
		t.Fatal("Timestamp = nil, want parsed")
	}
}

func TestApacheParserMarksServerErrorsAsError(t *testing.T) {
	line := `10.0.0.1 - - [10/Oct/2023:13:55:36 -0700] "POST /checkout HTTP/1.1" 503 120 "-" "-"`
	raw, err := ApacheParser{}.Parse(line)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if raw.Severity != "error" {
		t.Errorf("Severity = %q, want error", raw.Severity)
	}
}

func TestApacheParserRejectsUnmatchedLine(t *testing.T) {
	if _, err := (ApacheParser{}).Parse("not an access log line"); err == nil {
		t.Fatal("Parse() error = nil, want unmatched error")
	}
}

func TestNginxParserHandlesDashPlaceholders(t *testing.T) {
	line := `10.1.1.2 - - [11/Oct/2023:09:00:00 -0700] "GET /health HTTP/1.1" 200 15 "-" "-"`
	raw, err := NginxParser{}.Parse(line)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, ok := raw.Fields["referrer"]; ok {
		t.Error("referrer should be omitted for a \"-\" placeholder")
	}
}

func TestSyslogParserExtractsFacilityAndSeverity(t *testing.T) {
	line := `<34>Oct 11 22:14:15 mymachine su: 'su root' failed for lonvick on /dev/pts/8`
	raw, err := SyslogParser{}.Parse(line)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if raw.Fields["host"] != "mymachine" {
		t.Errorf("host = %v, want mymachine", raw.Fields["host"])
	}
	if raw.Fields["tag"] != "su" {
		t.Errorf("tag = %v, want su", raw.Fields["tag"])
	}
	// pri=34 -> facility=4, severity=2 (Critical) -> fatal.
	if raw.Severity != "fatal" {
		t.Errorf("Severity = %q, want fatal", raw.Severity)
	}
}

func TestProxmoxParserExtractsNodeAndDaemon(t *testing.T) {
	line := `2023-10-11 13:55:36 node1 pvedaemon[12345]: <root@pam> end task UPID:node1:00003039:0000ABCD:652A1234:vzdump::root@pam: TASK ERROR: command failed`
	raw, err := ProxmoxParser{}.Parse(line)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if raw.Fields["node"] != "node1" {
		t.Errorf("node = %v, want node1", raw.Fields["node"])
	}
	if raw.Service != "pvedaemon" {
		t.Errorf("Service = %q, want pvedaemon", raw.Service)
	}
	if raw.Severity != "error" {
		t.Errorf("Severity = %q, want error", raw.Severity)
	}
}

func TestLookupUnknownFormat(t *testing.T) {
	if _, ok := Lookup("haproxy"); ok {
		t.Error("Lookup(\"haproxy\") ok = true, want false")
	}
}
