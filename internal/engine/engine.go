// Package engine defines the call contract to the word-puzzle computation
// engine and the adapter that decodes its payloads into typed results.
package engine

import (
	"errors"
	"fmt"
)

// Engine is the raw call surface. Calls are synchronous and return
// primitives or JSON-encoded payloads. JSON payloads may carry an "error"
// field instead of data.
type Engine interface {
	LoadDictionary(text string)
	ResetSession()
	RemainingCandidateCount() int
	// ComputePattern returns ok=false when either word is invalid.
	ComputePattern(guess, target string) (pattern string, ok bool)
	// ApplyFeedback returns the new remaining count, or a negative value for invalid input.
	ApplyFeedback(guess, pattern string) int
	IsCandidate(guess string) bool
	// BestGuess returns "word|entropy", or ok=false when no dictionary is loaded.
	BestGuess(hardMode bool) (result string, ok bool)
	PatternHistogram(guess string) string
	TopGuesses(k int, hardMode bool) string
	SolveGroups(wordsText string, hardMode bool, lexicalWeight float64) string
	SpeedTest(count int, hardMode bool) string
	AdversarialStress(count int, hardMode bool) string
	SimdEnabled() bool
	SetSimdEnabled(enabled bool)
	Close() error
}

// SolvedPattern is the feedback pattern of a correct guess.
const SolvedPattern = "22222"

// ErrNoResult is returned when the engine answers a call with null.
var ErrNoResult = errors.New("engine returned no result")

// EngineError carries the message of an engine payload's "error" field.
type EngineError struct {
	Call    string
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Call, e.Message)
}

// ParseError reports a payload that is not valid JSON or does not match the
// expected shape.
type ParseError struct {
	Call    string
	Payload string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse payload: %v", e.Call, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RenderPoint is one projected word.
type RenderPoint struct {
	Word               string  `json:"word"`
	X                  float64 `json:"x"`
	Y                  float64 `json:"y"`
	Group              int     `json:"group"`
	Margin             float64 `json:"margin"`
	ConfidenceDistance float64 `json:"centroid_dist"`
	Confidence         float64 `json:"confidence"`
}

// GroupIndex returns the point's group, mapping out-of-range values to 0.
func (p RenderPoint) GroupIndex() int {
	if p.Group >= 0 && p.Group < 4 {
		return p.Group
	}
	return 0
}

type Guess struct {
	Word    string  `json:"word"`
	Entropy float64 `json:"entropy"`
}

type Histogram struct {
	Counts []int `json:"counts"`
	Total  int   `json:"total"`
}

type GroupSolution struct {
	Groups          [][]string    `json:"groups"`
	GroupConfidence []float64     `json:"group_confidence"`
	Points          []RenderPoint `json:"points"`
	Variance        []float64     `json:"variance"`
	LexicalBoosted  bool          `json:"lexical_boosted"`
	LexicalWeight   *float64      `json:"lexical_weight,omitempty"`
}

// AvgConfidence returns the mean group confidence, or 0 when none is reported.
func (s GroupSolution) AvgConfidence() float64 {
	if len(s.GroupConfidence) == 0 {
		return 0
	}
	var sum float64
	for _, c := range s.GroupConfidence {
		sum += c
	}
	return sum / float64(len(s.GroupConfidence))
}

type SpeedReport struct {
	WinRate    float64 `json:"win_rate"`
	AvgGuesses float64 `json:"avg_guesses"`
	P99Ms      float64 `json:"p99_ms"`
}

type StressReport struct {
	WorstMs float64 `json:"worst_ms"`
	AvgMs   float64 `json:"avg_ms"`
	Steps   int     `json:"steps"`
}
