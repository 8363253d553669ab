package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mwiater/aletheia/internal/appconfig"
	"github.com/mwiater/aletheia/internal/flagstore"
	"github.com/mwiater/aletheia/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) appconfig.Config {
	t.Helper()
	cfg := appconfig.Defaults()
	off := false
	cfg.DataDir = t.TempDir()
	cfg.HelperAddr = "127.0.0.1:0"
	cfg.Threads = 2
	cfg.BenchmarkSeed = 7
	cfg.Plot.Offscreen = &off
	return cfg
}

func openTestApp(t *testing.T, cfg appconfig.Config) *App {
	t.Helper()
	a, err := Open(cfg, Options{Durable: flagstore.NewMemory()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func feedHas(a *App, sub string) bool {
	for _, line := range a.Feed().Lines() {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}

func TestNewSessionSingleCore(t *testing.T) {
	cfg := testConfig(t)
	dict := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(dict, []byte("crane\nslate\ntrace\n"), 0o644))
	cfg.DictionaryPath = dict
	a := openTestApp(t, cfg)

	session, err := a.NewSession(context.Background(), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	assert.Equal(t, "single-core", session.ModeLabel())
	assert.Equal(t, 3, session.Remaining())
	assert.True(t, feedHas(a, "Engine ready ("))
	assert.True(t, feedHas(a, "Use multicore enable to switch to multi-threaded mode."))
	assert.Equal(t, "Threads: 0/1", session.Activity())
}

func TestNewSessionMissingDictionary(t *testing.T) {
	cfg := testConfig(t)
	cfg.DictionaryPath = filepath.Join(t.TempDir(), "missing.txt")
	a := openTestApp(t, cfg)

	_, err := a.NewSession(context.Background(), false)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildEngineSelection(t *testing.T) {
	cfg := testConfig(t)
	eng, err := buildEngine(context.Background(), cfg, true)
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	cfg.Engine = appconfig.EngineWASM
	cfg.WASMPath = filepath.Join(t.TempDir(), "engine.wasm")
	_, err = buildEngine(context.Background(), cfg, false)
	require.ErrorIs(t, err, os.ErrNotExist)

	cfg.Engine = "quantum"
	_, err = buildEngine(context.Background(), cfg, false)
	require.Error(t, err)
}

func TestStatusWithoutSession(t *testing.T) {
	a := openTestApp(t, testConfig(t))
	st, ok := a.Status().(Status)
	require.True(t, ok)
	assert.Equal(t, "idle", st.Mode)
	assert.Equal(t, "unknown", st.State)
}

func TestStatusReportsRunningSession(t *testing.T) {
	cfg := testConfig(t)
	dict := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(dict, []byte("crane\nslate\ntrace\n"), 0o644))
	cfg.DictionaryPath = dict
	a := openTestApp(t, cfg)
	session, err := a.NewSession(context.Background(), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	a.setSession(session)

	st := a.Status().(Status)
	assert.Equal(t, "single-core", st.Mode)
	assert.Equal(t, "Threads: 0/1", st.Activity)
	assert.Equal(t, 3, st.Remaining)
	assert.Zero(t, st.Progress.Total)
}

func TestRunReloadsIntoThreadedSession(t *testing.T) {
	a := openTestApp(t, testConfig(t))

	var (
		mu    sync.Mutex
		modes []bool
	)
	front := func(ctx context.Context, session *orchestrator.Session) error {
		mu.Lock()
		modes = append(modes, session.Threaded())
		first := len(modes) == 1
		mu.Unlock()
		if !first {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			t.Error("first session was never reloaded")
			return nil
		}
	}

	require.NoError(t, a.Run(context.Background(), front))
	assert.Equal(t, []bool{false, true}, modes)
	assert.Nil(t, a.Session())
	assert.True(t, a.Store().Has(flagstore.Session, flagstore.KeyCOIReloaded))
}

func TestRunReturnsFrontendError(t *testing.T) {
	a := openTestApp(t, testConfig(t))
	require.NoError(t, a.Store().Set(flagstore.Session, flagstore.KeyCOIReloaded, "1"))

	boom := assert.AnError
	err := a.Run(context.Background(), func(context.Context, *orchestrator.Session) error { return boom })
	require.ErrorIs(t, err, boom)
}
