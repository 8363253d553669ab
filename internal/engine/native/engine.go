// Package native is the in-process reference implementation of the engine
// contract: entropy-driven guessing for the five-letter puzzle and the
// exhaustive 4x4 grouping solve with its PCA projection.
package native

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/mwiater/aletheia/internal/engine"
	"golang.org/x/sync/errgroup"
)

var _ engine.Engine = (*Engine)(nil)

// Options configures an Engine.
type Options struct {
	// Threads is the worker count for best-guess scoring. Values below 2 score sequentially.
	Threads int
	Simd    bool
}

// Engine holds one dictionary and one solving session.
type Engine struct {
	mu        sync.Mutex
	words     []wordEntry
	index     map[string]int
	remaining []int
	loaded    bool
	threads   int
	simd      bool
}

func New(opts Options) *Engine {
	threads := opts.Threads
	if threads < 1 {
		threads = 1
	}
	return &Engine{threads: threads, simd: opts.Simd, index: map[string]int{}}
}

// Threads returns the configured worker count.
func (e *Engine) Threads() int { return e.threads }

func (e *Engine) LoadDictionary(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.words = e.words[:0]
	e.index = make(map[string]int)
	for _, token := range splitWords(text) {
		word := normalizeWord(token)
		if !isValidWord(word) {
			continue
		}
		if _, dup := e.index[word]; dup {
			continue
		}
		e.index[word] = len(e.words)
		e.words = append(e.words, wordEntry{text: word, packed: encodeWord(word)})
	}
	e.loaded = len(e.words) > 0
	e.resetLocked()
}

func (e *Engine) ResetSession() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

func (e *Engine) resetLocked() {
	e.remaining = e.allIndices()
	if !e.loaded {
		e.remaining = e.remaining[:0]
	}
}

func (e *Engine) allIndices() []int {
	out := make([]int, len(e.words))
	for i := range out {
		out[i] = i
	}
	return out
}

func (e *Engine) RemainingCandidateCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.remaining)
}

func (e *Engine) ComputePattern(guess, target string) (string, bool) {
	g, t := normalizeWord(guess), normalizeWord(target)
	if !isValidWord(g) || !isValidWord(t) {
		return "", false
	}
	return patternString(computePattern(encodeWord(g), encodeWord(t))), true
}

func (e *Engine) ApplyFeedback(guess, pattern string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded || len(e.remaining) == 0 {
		return -1
	}
	g := normalizeWord(guess)
	if !isValidWord(g) || !isValidPattern(pattern) {
		return -1
	}
	e.remaining = e.filter(e.remaining, g, pattern)
	return len(e.remaining)
}

func (e *Engine) filter(remaining []int, guess, pattern string) []int {
	if e.simd {
		return filterPacked(e.words, remaining, guess, pattern)
	}
	return filterScalar(e.words, remaining, guess, pattern)
}

func (e *Engine) IsCandidate(guess string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return false
	}
	g := normalizeWord(guess)
	if !isValidWord(g) {
		return false
	}
	idx, ok := e.index[g]
	if !ok {
		return false
	}
	for _, r := range e.remaining {
		if r == idx {
			return true
		}
	}
	return false
}

func (e *Engine) BestGuess(hardMode bool) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return "", false
	}
	targets, candidates := e.pools(e.remaining, hardMode)
	best, entropy := e.bestGuessIndex(candidates, targets)
	if best < 0 {
		return "", false
	}
	return e.words[best].text + "|" + strconv.FormatFloat(entropy, 'g', 6, 64), true
}

// pools returns the targets (remaining, or everything when empty) and the
// guess candidates (targets in hard mode, else the whole dictionary).
func (e *Engine) pools(remaining []int, hardMode bool) (targets, candidates []int) {
	all := e.allIndices()
	targets = remaining
	if len(targets) == 0 {
		targets = all
	}
	candidates = all
	if hardMode {
		candidates = targets
	}
	return targets, candidates
}

type scored struct {
	index   int
	pos     int
	entropy float64
}

// bestGuessIndex scores every candidate, split across the configured workers.
// Ties resolve to the earliest candidate so the answer does not depend on
// the worker count.
func (e *Engine) bestGuessIndex(candidates, targets []int) (int, float64) {
	if len(candidates) == 0 {
		return -1, 0
	}
	workers := min(e.threads, len(candidates))
	if workers <= 1 {
		best := e.scoreRange(candidates, targets, 0, len(candidates))
		return best.index, best.entropy
	}

	results := make([]scored, workers)
	chunk := (len(candidates) + workers - 1) / workers
	g, _ := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, min((w+1)*chunk, len(candidates))
		if lo >= hi {
			results[w] = scored{index: -1, entropy: math.Inf(-1)}
			continue
		}
		g.Go(func() error {
			results[w] = e.scoreRange(candidates, targets, lo, hi)
			return nil
		})
	}
	_ = g.Wait()

	best := scored{index: -1, entropy: math.Inf(-1)}
	for _, r := range results {
		if r.index < 0 {
			continue
		}
		if best.index < 0 || r.entropy > best.entropy || (r.entropy == best.entropy && r.pos < best.pos) {
			best = r
		}
	}
	return best.index, best.entropy
}

func (e *Engine) scoreRange(candidates, targets []int, lo, hi int) scored {
	best := scored{index: -1, entropy: math.Inf(-1)}
	for pos := lo; pos < hi; pos++ {
		counts := patternCounts(e.words, candidates[pos], targets)
		entropy := entropyOf(&counts, len(targets))
		if best.index < 0 || entropy > best.entropy {
			best = scored{index: candidates[pos], pos: pos, entropy: entropy}
		}
	}
	return best
}

func (e *Engine) PatternHistogram(guess string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return encode(errorPayload{Error: "Dictionary not loaded"})
	}
	g := normalizeWord(guess)
	if !isValidWord(g) {
		return encode(errorPayload{Error: "Invalid guess"})
	}
	targets, _ := e.pools(e.remaining, false)
	var counts [patternCount]int
	packed := encodeWord(g)
	for _, t := range targets {
		counts[computePattern(packed, e.words[t].packed)]++
	}
	return encode(struct {
		Counts []int `json:"counts"`
		Total  int   `json:"total"`
	}{Counts: counts[:], Total: len(targets)})
}

func (e *Engine) TopGuesses(k int, hardMode bool) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	type item struct {
		Word    string  `json:"word"`
		Entropy float64 `json:"entropy"`
	}
	items := []item{}
	if e.loaded && k > 0 {
		targets, candidates := e.pools(e.remaining, hardMode)
		for _, c := range candidates {
			counts := patternCounts(e.words, c, targets)
			items = append(items, item{Word: e.words[c].text, Entropy: entropyOf(&counts, len(targets))})
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].Entropy > items[j].Entropy })
		if len(items) > k {
			items = items[:k]
		}
	}
	return encode(struct {
		Items []item `json:"items"`
	}{Items: items})
}

func (e *Engine) SolveGroups(wordsText string, hardMode bool, lexicalWeight float64) string {
	return encode(solveGroupsPayload(wordsText, hardMode, lexicalWeight))
}

func (e *Engine) SimdEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.simd
}

func (e *Engine) SetSimdEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.simd = enabled
}

func (e *Engine) Close() error { return nil }
