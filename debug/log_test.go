package debug

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	charmlog "github.com/charmbracelet/log"
)

func TestLoggerDiscardsWhenDisabled(t *testing.T) {
	Disable()
	l := Logger("test")
	l.Error("nobody hears this")
	if Enabled() {
		t.Error("expected logging to be disabled")
	}
}

// TestLoggerRedirect verifies loggers created before EnableWriter follow the sink
func TestLoggerRedirect(t *testing.T) {
	Disable()
	early := Logger("early")

	var buf bytes.Buffer
	EnableWriter(&buf, charmlog.DebugLevel)
	defer Disable()

	early.Warn("after redirect")
	Logger("late").Debug("hello", "step", 3)

	got := buf.String()
	if !strings.Contains(got, "after redirect") {
		t.Errorf("early logger output missing: %q", got)
	}
	if !strings.Contains(got, "late") || !strings.Contains(got, "step=3") {
		t.Errorf("late logger output missing prefix or fields: %q", got)
	}
}

func TestEnableFile(t *testing.T) {
	Disable()
	path := filepath.Join(t.TempDir(), "sub", "debug.log")
	if err := Enable(path, "debug"); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	Logger("clock").Info("tick", "count", 1)
	Disable()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "debug logging started") {
		t.Errorf("missing start banner: %q", data)
	}
	if !strings.Contains(string(data), "clock") {
		t.Errorf("missing prefixed entry: %q", data)
	}
}
