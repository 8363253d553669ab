package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mwiater/aletheia/internal/engine"
	"github.com/mwiater/aletheia/internal/render"
	"github.com/mwiater/aletheia/internal/stats"
)

// GroupsResult is what the grouping view shows after a solve.
type GroupsResult struct {
	Lines    []string
	Meta     string
	Fallback bool
	Points   []engine.RenderPoint
	Solution engine.GroupSolution
}

// Text joins the group lines for display.
func (r GroupsResult) Text() string {
	return strings.Join(r.Lines, "\n")
}

// SolveGroups partitions the sixteen words, builds the meta line and renders
// the vector space. Points that are missing, the wrong count or degenerate are
// replaced with the deterministic fallback projection.
func (s *Session) SolveGroups(text string) (GroupsResult, error) {
	var (
		result GroupsResult
		err    error
	)
	ran := s.solveTrigger.Run(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.setActive(true)
		defer s.setActive(false)
		result, err = s.solveGroupsLocked(text)
	})
	if !ran {
		return GroupsResult{}, errors.New("connections solve already running")
	}
	return result, err
}

func (s *Session) solveGroupsLocked(text string) (GroupsResult, error) {
	s.setStatus("Running clustering + PCA...")
	hardMode := s.HardMode()
	solution, err := s.adapter.SolveGroups(text, hardMode, s.LexicalWeight())
	if err != nil {
		var engErr *engine.EngineError
		switch {
		case errors.As(err, &engErr):
			s.feed.Logf("Connections error: %s", engErr.Message)
			s.setStatus("Connections error: %s", engErr.Message)
		default:
			s.feed.Logf("Failed to parse output.")
			s.setStatus("Failed to parse output.")
		}
		return GroupsResult{}, err
	}

	result := GroupsResult{Solution: solution}
	for idx, group := range solution.Groups {
		result.Lines = append(result.Lines, fmt.Sprintf("Group %d: %s", idx+1, strings.Join(group, ", ")))
	}

	points := solution.Points
	if stats.NeedsFallback(points) {
		points = stats.BuildFallbackProjection(splitWords(text), solution.Groups, solution.GroupConfidence)
		result.Fallback = true
		s.feed.Logf("Vector space invalid; using fallback projection.")
	}
	result.Meta = metaLine(solution, result.Fallback)
	s.feed.Logf("Connections solved (%s). Avg confidence %.3f.", modeLabel(hardMode), solution.AvgConfidence())
	s.setStatus("Connections solved.")

	rendered, ok := s.renderPoints(points)
	if !ok && !result.Fallback {
		s.feed.Logf("PCA points invalid; using fallback projection.")
		points = stats.BuildFallbackProjection(splitWords(text), solution.Groups, solution.GroupConfidence)
		result.Fallback = true
		result.Meta = metaLine(solution, true)
		rendered, _ = s.renderPoints(points)
	}
	result.Points = rendered
	return result, nil
}

// metaLine summarizes confidence, lexical blending and the projection source.
func metaLine(solution engine.GroupSolution, fallback bool) string {
	parts := []string{fmt.Sprintf("Avg confidence: %.3f", solution.AvgConfidence())}
	boost := "no"
	if solution.LexicalBoosted {
		boost = "yes"
	}
	parts = append(parts, "Lexical boost: "+boost)
	if solution.LexicalWeight != nil {
		parts = append(parts, fmt.Sprintf("Lexical weight: %.2f", *solution.LexicalWeight))
	}
	if len(solution.Variance) >= 2 {
		parts = append(parts, fmt.Sprintf("EVR: %.2f/%.2f", solution.Variance[0], solution.Variance[1]))
	}
	space := "PCA"
	if fallback {
		space = "fallback"
	}
	parts = append(parts, "Vector space: "+space, "Envelopes: on")
	return strings.Join(parts, " | ")
}

// renderPoints draws the finite points with their envelopes, through the
// channel when one is configured. It reports false when nothing was drawable.
func (s *Session) renderPoints(points []engine.RenderPoint) ([]engine.RenderPoint, bool) {
	valid := stats.FiniteOnly(points)
	if len(valid) == 0 {
		s.feed.Logf("PCA points missing or invalid.")
		return nil, false
	}
	envelopes := stats.ComputeEnvelopes(valid)
	s.lastPoints = valid
	if s.channel != nil {
		s.channel.Render(valid, envelopes)
		return valid, true
	}
	if s.surface == nil {
		s.feed.Logf("Vector space canvas unavailable.")
		return valid, true
	}
	if err := s.surface.Present(render.Draw(s.frame, valid, envelopes)); err != nil {
		s.feed.Logf("Vector space canvas unavailable.")
	}
	return valid, true
}

// Resize updates the drawing geometry and redraws the last points.
func (s *Session) Resize(width, height int, dpr float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame.Width, s.frame.Height, s.frame.DPR = width, height, dpr
	if s.channel != nil {
		s.channel.Resize(width, height, dpr)
	}
	if len(s.lastPoints) > 0 {
		s.renderPoints(s.lastPoints)
	}
}

// LastPoints returns the most recently rendered points.
func (s *Session) LastPoints() []engine.RenderPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]engine.RenderPoint(nil), s.lastPoints...)
}

// Flush waits for queued renders. It is a no-op without a channel.
func (s *Session) Flush() {
	if s.channel != nil {
		s.channel.Flush()
	}
}
