// Package app owns the process-lifetime resources (flag store, isolation
// helper, scheduler, diagnostic feed) and builds one orchestrator session per
// load. A reload request tears the session down and builds a new one in the
// mode the helper now reports.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mwiater/aletheia/internal/appconfig"
	"github.com/mwiater/aletheia/internal/benchmark"
	"github.com/mwiater/aletheia/internal/diag"
	"github.com/mwiater/aletheia/internal/engine"
	"github.com/mwiater/aletheia/internal/engine/native"
	"github.com/mwiater/aletheia/internal/engine/wasm"
	"github.com/mwiater/aletheia/internal/flagstore"
	"github.com/mwiater/aletheia/internal/isolation"
	"github.com/mwiater/aletheia/internal/logging"
	"github.com/mwiater/aletheia/internal/orchestrator"
	"github.com/mwiater/aletheia/internal/render"
)

// Frontend drives one session until ctx is cancelled or the user quits.
// Returning nil ends the application.
type Frontend func(ctx context.Context, session *orchestrator.Session) error

var (
	newEngineFn   = buildEngine
	openDurableFn = func(dir string) (flagstore.KV, func() error, error) {
		db, err := flagstore.OpenPebble(dir)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}
)

// App holds the resources shared across sessions.
type App struct {
	cfg        appconfig.Config
	store      *flagstore.Store
	closeStore func() error
	feed       *diag.Feed
	platform   *isolation.HelperPlatform
	sched      *isolation.Scheduler
	controller *isolation.Controller

	reloadCh chan struct{}

	mu      sync.Mutex
	session *orchestrator.Session
}

// Options override process resources, mostly for tests.
type Options struct {
	// Durable replaces the pebble-backed durable scope.
	Durable flagstore.KV
	Clock   isolation.Clock
}

// Open prepares the flag store, helper and controller. It does not start a session.
func Open(cfg appconfig.Config, opts Options) (*App, error) {
	durable := opts.Durable
	closeStore := func() error { return nil }
	if durable == nil {
		kv, closer, err := openDurableFn(cfg.DataPath())
		if err != nil {
			return nil, fmt.Errorf("open flag store: %w", err)
		}
		durable, closeStore = kv, closer
	}
	clock := opts.Clock
	if clock == nil {
		clock = isolation.SystemClock{}
	}

	a := &App{
		cfg:        cfg,
		store:      flagstore.New(flagstore.NewMemory(), durable),
		closeStore: closeStore,
		feed:       diag.New(cfg.DiagCapacity()),
		sched:      isolation.NewScheduler(clock),
		reloadCh:   make(chan struct{}, 1),
	}
	a.platform = isolation.NewHelperPlatform(a.store, cfg.HelperAddress(), isolation.StatusHandler(a.Status))
	a.platform.SetReloader(a.requestReload)
	a.controller = isolation.NewController(a.platform, a.store, a.sched, isolation.Options{
		Wait: cfg.IsolationWait(),
		Logf: a.feed.Logf,
	})
	return a, nil
}

func (a *App) Config() appconfig.Config            { return a.cfg }
func (a *App) Store() *flagstore.Store             { return a.store }
func (a *App) Feed() *diag.Feed                    { return a.feed }
func (a *App) Controller() *isolation.Controller   { return a.controller }
func (a *App) Platform() *isolation.HelperPlatform { return a.platform }

// requestReload only signals; the running session is torn down by Run.
func (a *App) requestReload() {
	select {
	case a.reloadCh <- struct{}{}:
	default:
	}
}

// Status is the document served on the helper's /status endpoint.
type Status struct {
	Mode      string                `json:"mode"`
	State     string                `json:"state"`
	Activity  string                `json:"activity"`
	Remaining int                   `json:"remaining"`
	Progress  orchestrator.Progress `json:"progress"`
}

func (a *App) Status() any {
	a.mu.Lock()
	session := a.session
	a.mu.Unlock()
	st := Status{Mode: "idle", State: a.controller.State().String()}
	if session != nil {
		st.Mode = session.ModeLabel()
		st.Activity = session.Activity()
		st.Remaining = session.Remaining()
		st.Progress = session.Progress()
	}
	return st
}

// Revive restarts a helper left registered by an earlier run. Errors are
// logged; the session then starts single-core.
func (a *App) Revive(ctx context.Context) bool {
	ok, err := a.platform.Revive(ctx)
	if err != nil {
		logging.LogEvent("helper revive failed: %v", err)
	}
	return ok
}

// NewSession builds an engine in the requested mode and wraps it in a session.
func (a *App) NewSession(ctx context.Context, threaded bool) (*orchestrator.Session, error) {
	cfg := a.cfg
	start := time.Now()
	eng, err := newEngineFn(ctx, cfg, threaded)
	if err != nil {
		return nil, err
	}
	mode := "single"
	maxThreads := 1
	if threaded {
		mode = "threaded"
		maxThreads = cfg.ThreadCount()
	}
	adapter := engine.NewAdapter(eng, mode)

	plot := cfg.PlotConfig()
	frame := render.Frame{Width: plot.Width, Height: plot.Height, DPR: plot.DPR, Colors: render.DefaultColors}
	var channel *render.Channel
	if plot.OffscreenEnabled() {
		channel = render.NewChannel(func(error) { a.feed.Logf("PCA worker render failed.") })
	}

	seed := cfg.BenchmarkSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	harness := benchmark.New(adapter, benchmark.Options{
		Store:      a.store,
		Rand:       rand.New(rand.NewSource(seed)),
		YieldEvery: cfg.YieldInterval(),
		Threaded:   threaded,
		Logf:       a.feed.Logf,
		DataDir:    cfg.DataPath(),
	})

	session := orchestrator.New(orchestrator.Options{
		Adapter:       adapter,
		Channel:       channel,
		Surface:       render.PNGSurface{Path: plot.Output},
		HistogramPath: plot.HistogramOutput,
		Frame:         frame,
		Store:         a.store,
		Feed:          a.feed,
		Harness:       harness,
		Threaded:      threaded,
		MaxThreads:    maxThreads,
		HardMode:      cfg.HardMode,
		LexicalWeight: cfg.LexicalWeight,
		Simd:          cfg.Simd,
	})

	if path := strings.TrimSpace(cfg.DictionaryPath); path != "" {
		text, err := os.ReadFile(path)
		if err != nil {
			_ = session.Close()
			return nil, fmt.Errorf("read dictionary %s: %w", path, err)
		}
		session.LoadDictionary(string(text))
	}

	label := session.ModeLabel()
	a.feed.Logf("Engine ready (%.2fs, %s).", time.Since(start).Seconds(), label)
	if !threaded {
		a.feed.Logf("Use multicore enable to switch to multi-threaded mode.")
	}
	return session, nil
}

// Run starts sessions until the frontend returns without a pending reload.
func (a *App) Run(ctx context.Context, front Frontend) error {
	a.Revive(ctx)
	for {
		threaded := a.platform.Isolated(ctx)
		session, err := a.NewSession(ctx, threaded)
		if err != nil {
			return err
		}
		a.setSession(session)
		a.controller.OnLoad(ctx)

		sessionCtx, cancel := context.WithCancel(ctx)
		watch := make(chan bool, 1)
		go func() {
			select {
			case <-a.reloadCh:
				cancel()
				watch <- true
			case <-sessionCtx.Done():
				watch <- false
			}
		}()

		err = front(sessionCtx, session)
		cancel()
		reload := <-watch
		a.setSession(nil)
		if closeErr := session.Close(); closeErr != nil {
			logging.LogEvent("session close: %v", closeErr)
		}
		if reload {
			logging.LogEvent("reloading session")
			continue
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

func (a *App) setSession(s *orchestrator.Session) {
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
}

// Session returns the running session, or nil between loads.
func (a *App) Session() *orchestrator.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// Close stops scheduled tasks and the helper, then closes the flag store.
// The helper registration is kept for the next start.
func (a *App) Close() error {
	a.sched.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := a.platform.Close(ctx)
	if closeErr := a.closeStore(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func buildEngine(ctx context.Context, cfg appconfig.Config, threaded bool) (engine.Engine, error) {
	switch cfg.EngineKind() {
	case appconfig.EngineWASM:
		path := cfg.WASMPath
		if threaded && strings.TrimSpace(cfg.WASMThreadedPath) != "" {
			path = cfg.WASMThreadedPath
		}
		eng, err := wasm.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("load engine module: %w", err)
		}
		return eng, nil
	case appconfig.EngineNative:
		threads := 1
		if threaded {
			threads = cfg.ThreadCount()
		}
		return native.New(native.Options{Threads: threads, Simd: cfg.Simd}), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}
