package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewWithWriterHonoursLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn", "json")
	logger.Info("dropped")
	logger.Warn("kept", "phone", "***000")
	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info line should be filtered at warn: %s", out)
	}
	if !strings.Contains(out, `"msg":"kept"`) {
		t.Fatalf("expected json warn line, got %s", out)
	}

	buf.Reset()
	NewWithWriter(&buf, "bogus", "text").Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("expected text info line with default level, got %s", buf.String())
	}
}
