// Package orchestrator wires user actions to the engine, the statistics
// layer, the rendering channel and the benchmark harness. A Session is the
// single context object for one loaded engine.
package orchestrator

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/mwiater/aletheia/internal/benchmark"
	"github.com/mwiater/aletheia/internal/diag"
	"github.com/mwiater/aletheia/internal/engine"
	"github.com/mwiater/aletheia/internal/flagstore"
	"github.com/mwiater/aletheia/internal/render"
	"github.com/mwiater/aletheia/internal/trigger"
)

const (
	// TopGuessCount is the number of entropy bars refreshed after a best guess.
	TopGuessCount = 5
	// DefaultStressCount is used when a stress run asks for no trials.
	DefaultStressCount = 25
	wordLength         = 5
)

// Options configure a Session. Adapter and Feed are required.
type Options struct {
	Adapter *engine.Adapter
	// Channel renders plots off the calling goroutine. When nil, plots are
	// drawn synchronously onto Surface.
	Channel       *render.Channel
	Surface       render.Surface
	HistogramPath string
	Frame         render.Frame
	Store         *flagstore.Store
	Feed          *diag.Feed
	Harness       *benchmark.Harness
	Threaded      bool
	MaxThreads    int
	HardMode      bool
	LexicalWeight float64
	Simd          bool
	// OnActivity receives the "Threads: n/max" label whenever it changes.
	OnActivity func(label string)
}

// Session holds the per-load state. Actions serialize on mu, which is held
// for the whole engine call. The labels and preferences the workbench reads
// while an action runs live behind stateMu so reads never wait on the engine.
type Session struct {
	mu sync.Mutex

	adapter       *engine.Adapter
	channel       *render.Channel
	surface       render.Surface
	histogramPath string
	frame         render.Frame
	store         *flagstore.Store
	feed          *diag.Feed
	harness       *benchmark.Harness
	words         []string
	lastPoints    []engine.RenderPoint

	threaded   bool
	maxThreads int

	stateMu       sync.RWMutex
	activityFn    func(string)
	progressFn    func(done, total int)
	active        bool
	progress      Progress
	hardMode      bool
	lexicalWeight float64
	simdPref      bool
	remaining     int
	status        string

	bestTrigger  *trigger.Trigger
	solveTrigger *trigger.Trigger
	benchTrigger *trigger.Trigger
}

// Progress is the trial position of the running benchmark. Total is zero
// when no benchmark is running.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

func New(opts Options) *Session {
	s := &Session{
		adapter:       opts.Adapter,
		channel:       opts.Channel,
		surface:       opts.Surface,
		histogramPath: opts.HistogramPath,
		frame:         opts.Frame,
		store:         opts.Store,
		feed:          opts.Feed,
		harness:       opts.Harness,
		threaded:      opts.Threaded,
		maxThreads:    opts.MaxThreads,
		activityFn:    opts.OnActivity,
		hardMode:      opts.HardMode,
		lexicalWeight: opts.LexicalWeight,
		simdPref:      opts.Simd,
		bestTrigger:   trigger.New("best"),
		solveTrigger:  trigger.New("solve"),
		benchTrigger:  trigger.New("bench"),
	}
	if s.store == nil {
		s.store = flagstore.New(nil, nil)
	}
	if s.feed == nil {
		s.feed = diag.New(diag.DefaultCapacity)
	}
	if s.harness == nil {
		s.harness = benchmark.New(s.adapter, benchmark.Options{Store: s.store, Threaded: s.threaded, Logf: s.feed.Logf})
	}
	if s.maxThreads <= 0 || !s.threaded {
		s.maxThreads = 1
	}
	if weight, ok := s.store.LexicalWeight(); ok {
		s.lexicalWeight = weight
	}
	if s.channel != nil {
		s.channel.Init(s.surface, s.frame.Width, s.frame.Height, s.frame.DPR, s.frame.Colors)
	}
	s.adapter.SetSimdEnabled(s.simdPref)
	s.harness.SetProgress(s.setProgress)
	s.remaining = s.adapter.Remaining()
	return s
}

func (s *Session) Feed() *diag.Feed { return s.feed }

func (s *Session) Threaded() bool { return s.threaded }

// ModeLabel names the execution mode for status lines.
func (s *Session) ModeLabel() string {
	if s.threaded {
		return "multi-core"
	}
	return "single-core"
}

// Status is the most recent status label.
func (s *Session) Status() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.status
}

func (s *Session) setStatus(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.stateMu.Lock()
	s.status = msg
	s.stateMu.Unlock()
}

// Activity returns the "Threads: n/max" indicator.
func (s *Session) Activity() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.activityLabel()
}

func (s *Session) activityLabel() string {
	active := 0
	if s.active {
		active = s.maxThreads
	}
	return fmt.Sprintf("Threads: %d/%d", active, s.maxThreads)
}

// OnActivity registers a callback fired with the new label whenever the
// activity indicator changes. A nil fn removes it.
func (s *Session) OnActivity(fn func(label string)) {
	s.stateMu.Lock()
	s.activityFn = fn
	s.stateMu.Unlock()
}

func (s *Session) setActive(active bool) {
	s.stateMu.Lock()
	s.active = active
	if !active {
		s.progress = Progress{}
	}
	label, fn := s.activityLabel(), s.activityFn
	s.stateMu.Unlock()
	if fn != nil {
		fn(label)
	}
}

// Progress returns the position of the running benchmark.
func (s *Session) Progress() Progress {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.progress
}

// OnProgress registers a callback fired at every benchmark yield point.
func (s *Session) OnProgress(fn func(done, total int)) {
	s.stateMu.Lock()
	s.progressFn = fn
	s.stateMu.Unlock()
}

func (s *Session) setProgress(done, total int) {
	s.stateMu.Lock()
	s.progress = Progress{Done: done, Total: total}
	fn := s.progressFn
	s.stateMu.Unlock()
	if fn != nil {
		fn(done, total)
	}
}

// Remaining returns the candidate count as of the last finished action.
func (s *Session) Remaining() int {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.remaining
}

// syncRemaining reads the pool size from the engine. Callers hold mu.
func (s *Session) syncRemaining() int {
	remaining := s.adapter.Remaining()
	s.stateMu.Lock()
	s.remaining = remaining
	s.stateMu.Unlock()
	return remaining
}

func (s *Session) HardMode() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.hardMode
}

// SetHardMode applies from the next action on.
func (s *Session) SetHardMode(enabled bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.hardMode = enabled
}

func (s *Session) LexicalWeight() float64 {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.lexicalWeight
}

// SetLexicalWeight stores the blending weight durably. It must lie in [0,1].
func (s *Session) SetLexicalWeight(weight float64) error {
	if weight < 0 || weight > 1 {
		return fmt.Errorf("lexical weight %.2f outside [0,1]", weight)
	}
	s.stateMu.Lock()
	s.lexicalWeight = weight
	s.stateMu.Unlock()
	if err := s.store.SaveLexicalWeight(weight); err != nil {
		return err
	}
	s.feed.Logf("Lexical weight set to %.2f.", weight)
	return nil
}

// SetSimd records the vectorization preference and applies it. It waits for
// a running action since the SIMD comparison toggles the engine itself.
func (s *Session) SetSimd(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateMu.Lock()
	s.simdPref = enabled
	s.stateMu.Unlock()
	s.adapter.SetSimdEnabled(enabled)
	mode := "scalar"
	if enabled {
		mode = "SIMD"
	}
	s.feed.Logf("Wordle filtering set to %s mode.", mode)
}

func (s *Session) SimdPreference() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.simdPref
}

// Close stops the rendering goroutine and releases the engine.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel != nil {
		s.channel.Close()
	}
	return s.adapter.Close()
}

// dictionaryWords keeps the five-letter entries of a dictionary text.
func dictionaryWords(text string) []string {
	var words []string
	for _, field := range strings.Fields(text) {
		word := strings.ToLower(strings.TrimSpace(field))
		if utf8.RuneCountInString(word) == wordLength {
			words = append(words, word)
		}
	}
	return words
}

// splitWords lowercases and splits a grouping puzzle input.
func splitWords(text string) []string {
	fields := strings.Fields(text)
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		if word := strings.ToLower(strings.TrimSpace(field)); word != "" {
			words = append(words, word)
		}
	}
	return words
}

func modeLabel(hardMode bool) string {
	if hardMode {
		return "hard"
	}
	return "normal"
}
