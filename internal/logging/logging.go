// Package logging routes the application's log output to stdout and an optional log file.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	mu      sync.Mutex
	logFile *os.File
	debug   atomic.Bool
)

// Init points the standard logger at the given file. When quiet is true the
// terminal copy is dropped, which the workbench needs so log lines do not
// tear through the rendered UI.
func Init(logPath string, quiet bool) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writers []io.Writer
	if !quiet {
		writers = append(writers, os.Stdout)
	}

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = file
		writers = append(writers, logFile)
	}

	if len(writers) == 0 {
		log.SetOutput(io.Discard)
		return nil
	}
	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := logFile.Close()
	logFile = nil
	return err
}

// SetDebug toggles engine call tracing.
func SetDebug(enabled bool) { debug.Store(enabled) }

// DebugEnabled reports whether engine call tracing is on.
func DebugEnabled() bool { return debug.Load() }

func LogEvent(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Println(msg)
}

// LogEngineCall traces a single engine call. It is a no-op unless debug is enabled.
func LogEngineCall(call, mode string, args []any, payload any) {
	if !debug.Load() {
		return
	}
	log.Println(buildCallMessage(call, mode, args, payload))
}

func buildCallMessage(call, mode string, args []any, payload any) string {
	name := strings.TrimSpace(call)
	if name == "" {
		name = "unknown"
	}
	modeValue := strings.TrimSpace(mode)
	if modeValue == "" {
		modeValue = "unknown"
	}
	parts := []string{fmt.Sprintf("[ENGINE] %s", name)}
	parts = append(parts, fmt.Sprintf("mode=%s", modeValue))
	if len(args) > 0 {
		rendered := make([]string, 0, len(args))
		for _, arg := range args {
			rendered = append(rendered, formatPayload(arg))
		}
		parts = append(parts, fmt.Sprintf("args=%s", strings.Join(rendered, ",")))
	}
	parts = append(parts, fmt.Sprintf("result=%s", formatPayload(payload)))
	return strings.Join(parts, " ")
}

func formatPayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "null"
	case string:
		if strings.TrimSpace(v) == "" {
			return `""`
		}
		return v
	case []byte:
		if len(v) == 0 {
			return "[]"
		}
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
