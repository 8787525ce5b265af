package debug

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// sink lets Enable/Disable redirect loggers that were already handed out
type sink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return len(p), nil
	}
	return s.w.Write(p)
}

func (s *sink) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

var (
	mu      sync.Mutex
	file    *os.File
	enabled bool
	out     = &sink{}
	root    = newRoot(charmlog.InfoLevel)
)

func newRoot(level charmlog.Level) *charmlog.Logger {
	return charmlog.NewWithOptions(out, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		ReportCaller:    true,
		TimeFormat:      "15:04:05.000",
	})
}

// DefaultPath returns ~/.config/go-acid/debug.log
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "go-acid", "debug.log")
}

// Enable starts logging to path at the given level ("debug", "info", ...).
// Call it before constructing components: sub-loggers copy the level of the
// root logger when they are created.
func Enable(path, level string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	lvl, err := charmlog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = charmlog.InfoLevel
	}

	file = f
	enabled = true
	out.set(f)
	root = newRoot(lvl)
	root.Info("=== debug logging started ===", "at", time.Now().Format(time.RFC3339))

	return nil
}

// EnableWriter routes logging to w (tests, stderr tools)
func EnableWriter(w io.Writer, level charmlog.Level) {
	mu.Lock()
	defer mu.Unlock()
	out.set(w)
	root = newRoot(level)
	enabled = true
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	out.set(nil)
	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
}

// Enabled reports whether log output goes anywhere
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Logger returns a logger with the given category prefix
func Logger(prefix string) *charmlog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return root.WithPrefix(prefix)
}
