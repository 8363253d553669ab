package isolation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mwiater/aletheia/internal/flagstore"
	"github.com/mwiater/aletheia/internal/logging"
)

const (
	HeaderOpenerPolicy   = "Cross-Origin-Opener-Policy"
	HeaderEmbedderPolicy = "Cross-Origin-Embedder-Policy"
	OpenerPolicyValue    = "same-origin"
	EmbedderPolicyValue  = "require-corp"

	healthPath   = "/healthz"
	checkTimeout = 2 * time.Second
)

// HelperPlatform runs the helper as a local HTTP interceptor in front of the
// workbench status handler. The helper sets the isolation headers on every
// response; a session counts as isolated when a check through the helper
// sees both headers.
type HelperPlatform struct {
	store    *flagstore.Store
	addr     string
	upstream http.Handler
	client   *http.Client
	now      func() time.Time

	mu         sync.Mutex
	server     *http.Server
	baseURL    string
	controlled bool
	controlCh  chan struct{}
	reload     func()
}

// NewHelperPlatform builds an unregistered helper. upstream may be nil, in
// which case only the health endpoint is served.
func NewHelperPlatform(store *flagstore.Store, addr string, upstream http.Handler) *HelperPlatform {
	if upstream == nil {
		upstream = StatusHandler(nil)
	}
	return &HelperPlatform{
		store:     store,
		addr:      addr,
		upstream:  upstream,
		client:    &http.Client{Timeout: checkTimeout},
		now:       time.Now,
		controlCh: make(chan struct{}),
	}
}

// StatusHandler serves the health endpoint and, when status is non-nil, a
// JSON status document.
func StatusHandler(status func() any) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+healthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if status != nil {
		mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(status())
		})
	}
	return mux
}

// Intercept wraps next so every response carries the isolation headers.
func Intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderOpenerPolicy, OpenerPolicyValue)
		w.Header().Set(HeaderEmbedderPolicy, EmbedderPolicyValue)
		next.ServeHTTP(w, r)
	})
}

// SetReloader installs the function Reload delegates to.
func (p *HelperPlatform) SetReloader(fn func()) {
	p.mu.Lock()
	p.reload = fn
	p.mu.Unlock()
}

// BaseURL returns the helper URL, or "" when the helper is not running.
func (p *HelperPlatform) BaseURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.baseURL
}

// Isolated checks the health endpoint through the helper.
func (p *HelperPlatform) Isolated(ctx context.Context) bool {
	base := p.BaseURL()
	if base == "" {
		return false
	}
	return p.check(ctx, base) == nil
}

func (p *HelperPlatform) check(ctx context.Context, base string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("helper check status %d", resp.StatusCode)
	}
	if resp.Header.Get(HeaderOpenerPolicy) != OpenerPolicyValue || resp.Header.Get(HeaderEmbedderPolicy) != EmbedderPolicyValue {
		return errors.New("helper check missing isolation headers")
	}
	return nil
}

// Register starts the helper, records the registration durably and claims
// control once the first check round-trips.
func (p *HelperPlatform) Register(ctx context.Context) error {
	base, err := p.start()
	if err != nil {
		return err
	}
	reg := Registration{ID: fmt.Sprintf("helper-%d", p.now().UnixNano()), Addr: strings.TrimPrefix(base, "http://"), Created: p.now()}
	data, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	if err := p.store.Set(flagstore.Durable, flagstore.KeyHelperRegistration, string(data)); err != nil {
		return fmt.Errorf("record helper registration: %w", err)
	}
	go p.claim(context.WithoutCancel(ctx), base)
	return nil
}

// Revive restarts a helper registered by an earlier process.
func (p *HelperPlatform) Revive(ctx context.Context) (bool, error) {
	regs, err := p.Registrations(ctx)
	if err != nil || len(regs) == 0 {
		return false, err
	}
	if p.addr == "" || strings.HasSuffix(p.addr, ":0") {
		p.addr = regs[0].Addr
	}
	base, err := p.start()
	if err != nil {
		return false, err
	}
	if err := p.check(ctx, base); err != nil {
		return false, err
	}
	p.markControlled()
	return true, nil
}

func (p *HelperPlatform) start() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server != nil {
		return p.baseURL, nil
	}
	listener, err := net.Listen("tcp", p.addr)
	if err != nil {
		return "", fmt.Errorf("helper listen on %s: %w", p.addr, err)
	}
	srv := &http.Server{
		Handler:           Intercept(p.upstream),
		ReadHeaderTimeout: 10 * time.Second,
	}
	p.server = srv
	p.baseURL = "http://" + listener.Addr().String()
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.LogEvent("helper stopped: %v", err)
		}
	}()
	logging.LogEvent("helper listening on %s", p.baseURL)
	return p.baseURL, nil
}

func (p *HelperPlatform) claim(ctx context.Context, base string) {
	if err := p.check(ctx, base); err != nil {
		logging.LogEvent("helper check failed: %v", err)
		return
	}
	p.markControlled()
}

func (p *HelperPlatform) markControlled() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.controlled {
		return
	}
	p.controlled = true
	close(p.controlCh)
}

func (p *HelperPlatform) Controlled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controlled
}

func (p *HelperPlatform) ControlChanged() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controlCh
}

func (p *HelperPlatform) Registrations(context.Context) ([]Registration, error) {
	raw, ok := p.store.Get(flagstore.Durable, flagstore.KeyHelperRegistration)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var reg Registration
	if err := json.Unmarshal([]byte(raw), &reg); err != nil {
		return nil, fmt.Errorf("parse helper registration: %w", err)
	}
	return []Registration{reg}, nil
}

// Unregister stops the helper and forgets the registration.
func (p *HelperPlatform) Unregister(ctx context.Context, reg Registration) error {
	if err := p.shutdown(ctx); err != nil {
		return err
	}
	return p.store.Remove(flagstore.Durable, flagstore.KeyHelperRegistration)
}

func (p *HelperPlatform) Reload() {
	p.mu.Lock()
	fn := p.reload
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Close stops the helper but keeps its registration for the next start.
func (p *HelperPlatform) Close(ctx context.Context) error {
	return p.shutdown(ctx)
}

func (p *HelperPlatform) shutdown(ctx context.Context) error {
	p.mu.Lock()
	srv := p.server
	p.server = nil
	p.baseURL = ""
	if p.controlled {
		p.controlled = false
		p.controlCh = make(chan struct{})
	}
	p.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
