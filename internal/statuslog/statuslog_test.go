package statuslog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pathcl/osquery/pkg/logging"
)

func TestRelayStatusLogsClearsBuffer(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewLogger(logging.DEBUG, false)
	log.SetOutput(&buf)
	sink := NewSink(log)

	sink.Buffer(logging.WARN, "disk nearly full")
	sink.Buffer(logging.INFO, "extension registered")
	if got := sink.Pending(); got != 2 {
		t.Fatalf("Pending() = %d, want 2", got)
	}

	sink.RelayStatusLogs()

	if got := sink.Pending(); got != 0 {
		t.Fatalf("Pending() after relay = %d, want 0", got)
	}
	if out := buf.String(); !strings.Contains(out, "disk nearly full") || !strings.Contains(out, "extension registered") {
		t.Fatalf("relayed output missing buffered messages: %q", out)
	}
}

func TestRelayStatusLogsWithNilLoggerDoesNotPanic(t *testing.T) {
	sink := NewSink(nil)
	sink.Buffer(logging.INFO, "hello")
	sink.RelayStatusLogs()
}
