package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	best       string
	bestOK     bool
	histogram  string
	top        string
	groups     string
	speed      string
	stress     string
	simd       bool
	applied    []string
	remaining  int
	resetCalls int
}

func (s *stubEngine) LoadDictionary(text string)   {}
func (s *stubEngine) ResetSession()                { s.resetCalls++ }
func (s *stubEngine) RemainingCandidateCount() int { return s.remaining }
func (s *stubEngine) ComputePattern(guess, target string) (string, bool) {
	if guess == "" {
		return "", false
	}
	return "20100", true
}
func (s *stubEngine) ApplyFeedback(guess, pattern string) int {
	s.applied = append(s.applied, guess+" "+pattern)
	if len(pattern) != 5 {
		return -1
	}
	return 1
}
func (s *stubEngine) IsCandidate(guess string) bool             { return true }
func (s *stubEngine) BestGuess(hardMode bool) (string, bool)    { return s.best, s.bestOK }
func (s *stubEngine) PatternHistogram(guess string) string      { return s.histogram }
func (s *stubEngine) TopGuesses(k int, hardMode bool) string    { return s.top }
func (s *stubEngine) SpeedTest(count int, hardMode bool) string { return s.speed }
func (s *stubEngine) AdversarialStress(count int, hardMode bool) string {
	return s.stress
}
func (s *stubEngine) SolveGroups(wordsText string, hardMode bool, lexicalWeight float64) string {
	return s.groups
}
func (s *stubEngine) SimdEnabled() bool           { return s.simd }
func (s *stubEngine) SetSimdEnabled(enabled bool) { s.simd = enabled }
func (s *stubEngine) Close() error                { return nil }

func TestBestGuessParsing(t *testing.T) {
	stub := &stubEngine{best: "crane|2.5000", bestOK: true}
	adapter := NewAdapter(stub, "unthreaded")

	guess, err := adapter.BestGuess(false)
	require.NoError(t, err)
	assert.Equal(t, Guess{Word: "crane", Entropy: 2.5}, guess)

	stub.bestOK = false
	_, err = adapter.BestGuess(false)
	assert.ErrorIs(t, err, ErrNoResult)

	stub.best, stub.bestOK = "crane", true
	_, err = adapter.BestGuess(false)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestLoadDictionaryResetsSession(t *testing.T) {
	stub := &stubEngine{remaining: 12}
	adapter := NewAdapter(stub, "threaded")
	assert.Equal(t, 12, adapter.LoadDictionary("raise crane"))
	assert.Equal(t, 1, stub.resetCalls)
	assert.Equal(t, "threaded", adapter.Mode())
}

func TestApplyFeedbackPassesSentinelThrough(t *testing.T) {
	adapter := NewAdapter(&stubEngine{}, "")
	assert.Negative(t, adapter.ApplyFeedback("crane", "222"))
	assert.Equal(t, 1, adapter.ApplyFeedback("crane", "22222"))
}

func TestComputePatternNull(t *testing.T) {
	adapter := NewAdapter(&stubEngine{}, "")
	_, err := adapter.ComputePattern("", "crane")
	assert.ErrorIs(t, err, ErrNoResult)

	pattern, err := adapter.ComputePattern("slate", "crane")
	require.NoError(t, err)
	assert.Equal(t, "20100", pattern)
}

func TestSolveGroupsEngineError(t *testing.T) {
	adapter := NewAdapter(&stubEngine{groups: `{"error":"Expected 16 words"}`}, "")
	_, err := adapter.SolveGroups("a b c", false, 0)

	var engErr *EngineError
	require.True(t, errors.As(err, &engErr))
	assert.Equal(t, "Expected 16 words", engErr.Message)
	assert.Equal(t, "solveGroups", engErr.Call)
}

func TestSolveGroupsDecodes(t *testing.T) {
	payload := `{"groups":[["a","b","c","d"]],"group_confidence":[0.5,0.7],` +
		`"points":[{"word":"a","x":1,"y":2,"group":0,"margin":0.1,"centroid_dist":0.2,"confidence":0.5}],` +
		`"variance":[0.6,0.3],"lexical_boosted":true,"lexical_weight":0.25}`
	adapter := NewAdapter(&stubEngine{groups: payload}, "")

	solution, err := adapter.SolveGroups("", true, 0)
	require.NoError(t, err)
	require.Len(t, solution.Points, 1)
	assert.Equal(t, 0.2, solution.Points[0].ConfidenceDistance)
	assert.True(t, solution.LexicalBoosted)
	require.NotNil(t, solution.LexicalWeight)
	assert.Equal(t, 0.25, *solution.LexicalWeight)
	assert.InDelta(t, 0.6, solution.AvgConfidence(), 1e-9)
}

func TestDecodeParseFailures(t *testing.T) {
	cases := map[string]string{
		"empty":     "",
		"malformed": `{"groups":`,
		"schema":    `{"groups":"nope"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			adapter := NewAdapter(&stubEngine{groups: payload}, "")
			_, err := adapter.SolveGroups("", false, 0)
			var parseErr *ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestJSONReports(t *testing.T) {
	stub := &stubEngine{
		histogram: `{"counts":[1,0,3],"total":4}`,
		top:       `{"items":[{"word":"crane","entropy":1.5},{"word":"slate","entropy":1.2}]}`,
		speed:     `{"win_rate":92.5,"avg_guesses":3.6,"p99_ms":4.2}`,
		stress:    `{"worst_ms":1.2,"avg_ms":0.3,"steps":40}`,
	}
	adapter := NewAdapter(stub, "")

	hist, err := adapter.PatternHistogram("crane")
	require.NoError(t, err)
	assert.Equal(t, 4, hist.Total)

	top, err := adapter.TopGuesses(2, false)
	require.NoError(t, err)
	assert.Equal(t, "slate", top[1].Word)

	speed, err := adapter.SpeedTest(10, false)
	require.NoError(t, err)
	assert.Equal(t, 92.5, speed.WinRate)

	stress, err := adapter.AdversarialStress(10, false)
	require.NoError(t, err)
	assert.Equal(t, 40, stress.Steps)

	stub.stress = `{"worst_ms":1.2,"avg_ms":0.3,"steps":-1}`
	_, err = adapter.AdversarialStress(10, false)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestRenderPointGroupIndex(t *testing.T) {
	assert.Equal(t, 3, RenderPoint{Group: 3}.GroupIndex())
	assert.Equal(t, 0, RenderPoint{Group: 7}.GroupIndex())
	assert.Equal(t, 0, RenderPoint{Group: -1}.GroupIndex())
}
