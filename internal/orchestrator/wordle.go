package orchestrator

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/mwiater/aletheia/internal/engine"
	"github.com/mwiater/aletheia/internal/render"
)

const (
	histogramWidth  = 240
	histogramHeight = 60
	minBarPercent   = 8.0
)

// EntropyBar is one row of the top-guess chart.
type EntropyBar struct {
	Word    string
	Entropy float64
	// Percent is the bar width relative to the highest entropy, at least 8.
	Percent float64
}

// Label renders the uppercased word with its entropy in bits.
func (b EntropyBar) Label() string {
	return fmt.Sprintf("%s %.2fb", strings.ToUpper(b.Word), b.Entropy)
}

// LoadDictionary hands the text to the engine and keeps the five-letter
// words as benchmark targets. It returns the engine's word count.
func (s *Session) LoadDictionary(text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := s.adapter.LoadDictionary(text)
	s.syncRemaining()
	s.words = dictionaryWords(text)
	s.harness.SetWords(s.words)
	s.feed.Logf("Wordle dictionary loaded (%d words).", count)
	s.setStatus("Dictionary loaded.")
	return count
}

// ResetSession restores the candidate pool and clears the histogram.
func (s *Session) ResetSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapter.ResetSession()
	s.syncRemaining()
	s.feed.Logf("Wordle session reset.")
	s.setStatus("Session reset.")
	s.clearHistogram()
}

// ComputePattern returns "Pattern: X" or "Invalid input.".
func (s *Session) ComputePattern(guess, target string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	guess = strings.ToLower(strings.TrimSpace(guess))
	target = strings.ToLower(strings.TrimSpace(target))
	pattern, err := s.adapter.ComputePattern(guess, target)
	if err != nil {
		return "Invalid input."
	}
	return "Pattern: " + pattern
}

// ApplyFeedback filters the pool by the observed pattern and returns the
// remaining count, or -1 when the feedback was rejected.
func (s *Session) ApplyFeedback(guess, pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	guess = strings.ToLower(strings.TrimSpace(guess))
	pattern = strings.TrimSpace(pattern)
	if s.HardMode() && !s.adapter.IsCandidate(guess) {
		s.feed.Logf("Hard mode: guess must match all revealed hints.")
		s.setStatus("Hard mode: guess must match all revealed hints.")
		return -1
	}
	remaining := s.adapter.ApplyFeedback(guess, pattern)
	s.syncRemaining()
	if remaining < 0 {
		s.feed.Logf("Invalid Wordle feedback.")
		s.setStatus("Invalid Wordle feedback.")
		return -1
	}
	s.feed.Logf("Applied feedback: %s %s, remaining %d.", strings.ToUpper(guess), pattern, remaining)
	s.setStatus("Remaining: %d", remaining)
	return remaining
}

// BestGuess asks the engine for the highest-entropy guess, then refreshes the
// entropy bars and the pattern histogram for it. The returned string is the
// line shown next to the best-guess control.
func (s *Session) BestGuess() (string, []EntropyBar) {
	var (
		out  string
		bars []EntropyBar
	)
	ran := s.bestTrigger.Run(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.setActive(true)
		defer s.setActive(false)
		out, bars = s.bestGuessLocked()
	})
	if !ran {
		return "Best guess already running.", nil
	}
	return out, bars
}

func (s *Session) bestGuessLocked() (string, []EntropyBar) {
	hardMode := s.HardMode()
	guess, err := s.adapter.BestGuess(hardMode)
	if err != nil {
		if errors.Is(err, engine.ErrNoResult) {
			s.setStatus("Load a dictionary first.")
			return "Load a dictionary first.", nil
		}
		s.feed.Logf("Best guess failed: %v", err)
		return "Best guess failed.", nil
	}
	remaining := s.syncRemaining()
	s.feed.Logf("Best guess (%s): %s, entropy %.4f, remaining %d", modeLabel(hardMode), strings.ToUpper(guess.Word), guess.Entropy, remaining)
	s.setStatus("Remaining: %d", remaining)

	bars, err := s.topGuessesLocked(TopGuessCount)
	if err != nil {
		s.feed.Logf("Entropy data parse failed.")
	}
	s.drawHistogram(guess.Word)
	return fmt.Sprintf("Best guess: %s (entropy %.4f)", guess.Word, guess.Entropy), bars
}

// TopGuesses returns up to k entropy bars for the current pool.
func (s *Session) TopGuesses(k int) ([]EntropyBar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topGuessesLocked(k)
}

func (s *Session) topGuessesLocked(k int) ([]EntropyBar, error) {
	guesses, err := s.adapter.TopGuesses(k, s.HardMode())
	if err != nil {
		return nil, err
	}
	return FormatEntropyBars(guesses), nil
}

// FormatEntropyBars scales entropies against the largest one. Bars never drop
// below 8% so low values stay visible.
func FormatEntropyBars(guesses []engine.Guess) []EntropyBar {
	var peak float64
	for _, g := range guesses {
		if g.Entropy > peak {
			peak = g.Entropy
		}
	}
	bars := make([]EntropyBar, 0, len(guesses))
	for _, g := range guesses {
		pct := minBarPercent
		if peak > 0 {
			pct = math.Max(minBarPercent, g.Entropy/peak*100)
		}
		bars = append(bars, EntropyBar{Word: g.Word, Entropy: g.Entropy, Percent: pct})
	}
	return bars
}

// drawHistogram writes the pattern histogram sparkline for word. An empty or
// flat histogram clears the image to the background.
func (s *Session) drawHistogram(word string) {
	if s.histogramPath == "" {
		return
	}
	hist, err := s.adapter.PatternHistogram(word)
	if err != nil || hist.Total <= 0 {
		s.clearHistogram()
		return
	}
	if err := s.writeHistogram(hist.Counts); err != nil {
		if !errors.Is(err, render.ErrFlatHistogram) {
			s.feed.Logf("Histogram render failed: %v", err)
		}
		s.clearHistogram()
	}
}

func (s *Session) writeHistogram(counts []int) error {
	if err := os.MkdirAll(filepath.Dir(s.histogramPath), 0o755); err != nil {
		return err
	}
	tmp := s.histogramPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := render.RenderHistogram(f, counts, histogramWidth, histogramHeight, s.frame.DPR); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.histogramPath)
}

func (s *Session) clearHistogram() {
	if s.histogramPath == "" {
		return
	}
	blank := render.Draw(render.Frame{Width: histogramWidth, Height: histogramHeight, DPR: s.frame.DPR}, nil, nil)
	if err := (render.PNGSurface{Path: s.histogramPath}).Present(blank); err != nil {
		s.feed.Logf("Histogram render failed: %v", err)
	}
}
