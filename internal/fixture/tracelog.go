package fixture

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// TraceLog appends human-readable lines describing fixture traffic:
//
//	wrote new mock <path>
//	read mock <path>
//	could not find <path>
//
// A nil *TraceLog, or one with an empty path, discards everything. Append
// failures are logged and otherwise ignored; the trace never affects the
// outcome of a call.
type TraceLog struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewTraceLog returns a trace log appending to path.
func NewTraceLog(path string, logger *slog.Logger) *TraceLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &TraceLog{path: path, logger: logger}
}

// Path returns the file the trace appends to.
func (t *TraceLog) Path() string {
	if t == nil {
		return ""
	}
	return t.path
}

func (t *TraceLog) wrote(path string)    { t.printf("wrote new mock %s", path) }
func (t *TraceLog) read(path string)     { t.printf("read mock %s", path) }
func (t *TraceLog) notFound(path string) { t.printf("could not find %s", path) }

func (t *TraceLog) printf(format string, args ...any) {
	if t == nil || t.path == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.append(fmt.Sprintf(format, args...) + "\n"); err != nil {
		t.logger.Warn("trace log append failed", "path", t.path, "error", err)
	}
}

func (t *TraceLog) append(line string) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
