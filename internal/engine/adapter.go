package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mwiater/aletheia/internal/logging"
	"github.com/xeipuuv/gojsonschema"
)

// Adapter wraps an Engine and decodes every JSON payload once, returning
// typed values or *EngineError / *ParseError.
type Adapter struct {
	eng  Engine
	mode string
}

// NewAdapter wraps eng. mode labels the execution mode in engine call traces.
func NewAdapter(eng Engine, mode string) *Adapter {
	return &Adapter{eng: eng, mode: mode}
}

func (a *Adapter) Mode() string { return a.mode }

// LoadDictionary loads text, resets the session and returns the candidate count.
func (a *Adapter) LoadDictionary(text string) int {
	a.eng.LoadDictionary(text)
	a.eng.ResetSession()
	remaining := a.eng.RemainingCandidateCount()
	logging.LogEngineCall("loadDictionary", a.mode, []any{len(text)}, remaining)
	return remaining
}

func (a *Adapter) ResetSession() {
	a.eng.ResetSession()
	logging.LogEngineCall("resetSession", a.mode, nil, nil)
}

func (a *Adapter) Remaining() int {
	return a.eng.RemainingCandidateCount()
}

func (a *Adapter) ComputePattern(guess, target string) (string, error) {
	pattern, ok := a.eng.ComputePattern(guess, target)
	logging.LogEngineCall("computePattern", a.mode, []any{guess, target}, pattern)
	if !ok || pattern == "" {
		return "", ErrNoResult
	}
	return pattern, nil
}

// ApplyFeedback returns the new remaining count, negative on invalid input.
func (a *Adapter) ApplyFeedback(guess, pattern string) int {
	remaining := a.eng.ApplyFeedback(guess, pattern)
	logging.LogEngineCall("applyFeedback", a.mode, []any{guess, pattern}, remaining)
	return remaining
}

func (a *Adapter) IsCandidate(guess string) bool {
	return a.eng.IsCandidate(guess)
}

// BestGuess parses the engine's "word|entropy" answer.
func (a *Adapter) BestGuess(hardMode bool) (Guess, error) {
	raw, ok := a.eng.BestGuess(hardMode)
	logging.LogEngineCall("bestGuess", a.mode, []any{hardMode}, raw)
	if !ok || raw == "" {
		return Guess{}, ErrNoResult
	}
	return ParseGuess(raw)
}

// ParseGuess decodes "word|entropy".
func ParseGuess(raw string) (Guess, error) {
	word, entropyText, found := strings.Cut(raw, "|")
	if !found || strings.TrimSpace(word) == "" {
		return Guess{}, &ParseError{Call: "bestGuess", Payload: raw, Err: errors.New("expected word|entropy")}
	}
	entropy, err := strconv.ParseFloat(strings.TrimSpace(entropyText), 64)
	if err != nil {
		return Guess{}, &ParseError{Call: "bestGuess", Payload: raw, Err: err}
	}
	return Guess{Word: strings.TrimSpace(word), Entropy: entropy}, nil
}

func (a *Adapter) PatternHistogram(guess string) (Histogram, error) {
	raw := a.eng.PatternHistogram(guess)
	var out Histogram
	err := a.decode("patternHistogram", raw, histogramSchema, &out)
	return out, err
}

func (a *Adapter) TopGuesses(k int, hardMode bool) ([]Guess, error) {
	raw := a.eng.TopGuesses(k, hardMode)
	var out struct {
		Items []Guess `json:"items"`
	}
	if err := a.decode("topGuesses", raw, topGuessesSchema, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (a *Adapter) SolveGroups(wordsText string, hardMode bool, lexicalWeight float64) (GroupSolution, error) {
	raw := a.eng.SolveGroups(wordsText, hardMode, lexicalWeight)
	var out GroupSolution
	err := a.decode("solveGroups", raw, solveGroupsSchema, &out)
	return out, err
}

func (a *Adapter) SpeedTest(count int, hardMode bool) (SpeedReport, error) {
	raw := a.eng.SpeedTest(count, hardMode)
	var out SpeedReport
	err := a.decode("speedTest", raw, speedSchema, &out)
	return out, err
}

func (a *Adapter) AdversarialStress(count int, hardMode bool) (StressReport, error) {
	raw := a.eng.AdversarialStress(count, hardMode)
	var out StressReport
	err := a.decode("adversarialStress", raw, stressSchema, &out)
	return out, err
}

func (a *Adapter) SimdEnabled() bool { return a.eng.SimdEnabled() }

func (a *Adapter) SetSimdEnabled(enabled bool) {
	a.eng.SetSimdEnabled(enabled)
	logging.LogEngineCall("setSimdEnabled", a.mode, []any{enabled}, nil)
}

func (a *Adapter) Close() error { return a.eng.Close() }

// decode checks the error field first, then the schema, then unmarshals into out.
func (a *Adapter) decode(call, raw string, schema gojsonschema.JSONLoader, out any) error {
	logging.LogEngineCall(call, a.mode, nil, raw)
	payload := []byte(strings.TrimSpace(raw))
	if len(payload) == 0 {
		return &ParseError{Call: call, Payload: raw, Err: errors.New("empty payload")}
	}

	var envelope struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return &ParseError{Call: call, Payload: raw, Err: err}
	}
	if envelope.Error != nil {
		return &EngineError{Call: call, Message: *envelope.Error}
	}

	if err := validate(schema, payload); err != nil {
		return &ParseError{Call: call, Payload: raw, Err: err}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &ParseError{Call: call, Payload: raw, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
