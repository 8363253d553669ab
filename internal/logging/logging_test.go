package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testStringer string

func (s testStringer) String() string { return string(s) }

func TestInitAndLoggingToFile(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "nested", "aletheia.log")

	if err := Init(logPath, true); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close()
		SetDebug(false)
	})

	LogEvent("hello %s", "world")
	SetDebug(true)
	LogEngineCall("bestGuess", "threaded", []any{true}, "crane|1.5")
	_ = Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "hello world") {
		t.Fatalf("expected LogEvent content, got: %s", content)
	}
	if !strings.Contains(content, "[ENGINE] bestGuess mode=threaded args=true result=crane|1.5") {
		t.Fatalf("expected LogEngineCall content, got: %s", content)
	}
}

func TestEngineCallSilentWithoutDebug(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	SetDebug(false)
	LogEngineCall("resetSession", "", nil, nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output without debug, got: %s", buf.String())
	}
}

func TestBuildCallMessageDefaults(t *testing.T) {
	msg := buildCallMessage(" ", " ", []any{"crane", map[string]any{"ok": true}}, nil)
	if !strings.Contains(msg, "[ENGINE] unknown") {
		t.Fatalf("expected default call name, got: %s", msg)
	}
	if !strings.Contains(msg, "mode=unknown") {
		t.Fatalf("expected default mode, got: %s", msg)
	}
	if !strings.Contains(msg, `args=crane,{"ok":true}`) {
		t.Fatalf("expected rendered args, got: %s", msg)
	}
	if !strings.Contains(msg, "result=null") {
		t.Fatalf("expected null result, got: %s", msg)
	}
}

func TestFormatPayloadVariants(t *testing.T) {
	if got := formatPayload(nil); got != "null" {
		t.Fatalf("nil payload: %s", got)
	}
	if got := formatPayload(" "); got != `""` {
		t.Fatalf("empty string payload: %s", got)
	}
	if got := formatPayload([]byte("hi")); got != "hi" {
		t.Fatalf("byte payload: %s", got)
	}
	if got := formatPayload(testStringer("ok")); got != "ok" {
		t.Fatalf("stringer payload: %s", got)
	}
}

func TestInitQuietWithoutFileDiscards(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	if err := Init("", true); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	LogEvent("discard")
	if buf.Len() != 0 {
		t.Fatalf("expected log output discarded, got: %s", buf.String())
	}
}
