// cli/cli.go
// Package cli provides the interactive workbench for the Aletheia application.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mwiater/aletheia/internal/appconfig"
	"github.com/mwiater/aletheia/internal/isolation"
	"github.com/mwiater/aletheia/internal/orchestrator"
)

// Controller is the multi-core activation surface the workbench drives.
type Controller interface {
	Enable(ctx context.Context) error
	Reset(ctx context.Context) error
	State() isolation.State
}

const (
	barWidth   = 30
	feedLines  = 8
	defaultTop = orchestrator.TopGuessCount
)

// model is the main application model for the Bubble Tea UI.
type model struct {
	ctx              context.Context
	config           appconfig.Config
	session          *orchestrator.Session
	controller       Controller
	textArea         textarea.Model
	viewport         viewport.Model
	spinner          spinner.Model
	isLoading        bool
	loadingLabel     string
	output           string
	err              error
	width, height    int
	requestStartTime time.Time
	progress         orchestrator.Progress
}

// initialModel creates the workbench model for one session.
func initialModel(ctx context.Context, cfg appconfig.Config, session *orchestrator.Session, controller Controller) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ta := textarea.New()
	ta.Placeholder = "Type a command (help for a list)..."
	ta.Focus()
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = -1
	ta.SetHeight(1)
	ta.KeyMap.InsertNewline.SetEnabled(false)

	return &model{
		ctx:        ctx,
		config:     cfg,
		session:    session,
		controller: controller,
		textArea:   ta,
		viewport:   viewport.New(100, 10),
		spinner:    s,
		output:     helpText,
	}
}

// actionDoneMsg carries the outcome of a command that ran off the update loop.
type actionDoneMsg struct {
	output string
	err    error
}

// feedMsg is sent whenever the diagnostic feed gains a line.
type feedMsg struct{}

// activityMsg carries the thread indicator after it changes.
type activityMsg string

// progressMsg is sent at every benchmark yield point.
type progressMsg orchestrator.Progress

// tickMsg is a message sent at regular intervals while a command runs.
type tickMsg time.Time

// tickCmd creates a Bubble Tea command that sends a tickMsg at a regular interval.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init initializes the Bubble Tea model and returns a command to start the spinner animation.
func (m *model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update is the central update function for the Bubble Tea model.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if m.isLoading {
				return m, nil
			}
			line := strings.TrimSpace(m.textArea.Value())
			m.textArea.Reset()
			if line == "" {
				return m, nil
			}
			return m, m.execute(line)
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.textArea.SetWidth(msg.Width - 3)
		headerHeight := 3
		footerHeight := feedLines + 4
		m.viewport.Width = msg.Width
		m.viewport.Height = max(3, msg.Height-headerHeight-footerHeight)

	case actionDoneMsg:
		m.isLoading = false
		m.progress = orchestrator.Progress{}
		m.err = msg.err
		if msg.output != "" {
			m.output = msg.output
		}
		m.viewport.GotoTop()
		return m, nil

	case feedMsg, activityMsg:
		return m, nil

	case progressMsg:
		m.progress = orchestrator.Progress(msg)
		return m, nil

	case tickMsg:
		if m.isLoading {
			return m, tickCmd()
		}
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	m.textArea, cmd = m.textArea.Update(msg)
	cmds = append(cmds, cmd)

	if m.isLoading {
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// execute runs one workbench command. Quick commands update the output in
// place; engine-heavy ones run as a tea.Cmd behind the spinner.
func (m *model) execute(line string) tea.Cmd {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]
	m.err = nil

	switch name {
	case "quit", "exit", "q":
		return tea.Quit
	case "help":
		m.output = helpText
	case "load":
		if len(args) != 1 {
			m.output = "usage: load <path>"
			return nil
		}
		text, err := os.ReadFile(args[0])
		if err != nil {
			m.err = err
			return nil
		}
		count := m.session.LoadDictionary(string(text))
		m.output = fmt.Sprintf("Loaded %d words.", count)
	case "reset":
		m.session.ResetSession()
		m.output = fmt.Sprintf("Remaining: %d", m.session.Remaining())
	case "pattern":
		if len(args) != 2 {
			m.output = "usage: pattern <guess> <target>"
			return nil
		}
		m.output = m.session.ComputePattern(args[0], args[1])
	case "apply":
		if len(args) != 2 {
			m.output = "usage: apply <guess> <pattern>"
			return nil
		}
		if remaining := m.session.ApplyFeedback(args[0], args[1]); remaining >= 0 {
			m.output = fmt.Sprintf("Remaining: %d", remaining)
		} else {
			m.output = m.session.Status()
		}
	case "weight":
		if len(args) != 1 {
			m.output = fmt.Sprintf("Lexical weight: %.2f", m.session.LexicalWeight())
			return nil
		}
		weight, err := strconv.ParseFloat(args[0], 64)
		if err == nil {
			err = m.session.SetLexicalWeight(weight)
		}
		if err != nil {
			m.err = err
			return nil
		}
		m.output = fmt.Sprintf("Lexical weight: %.2f", weight)
	case "hard":
		enabled, ok := parseToggle(args, !m.session.HardMode())
		if !ok {
			m.output = "usage: hard [on|off]"
			return nil
		}
		m.session.SetHardMode(enabled)
		m.output = "Hard mode: " + onOff(enabled)
	case "resize":
		return m.resize(args)
	case "best":
		return m.run("Scoring guesses", func() (string, error) {
			out, bars := m.session.BestGuess()
			return out + "\n\n" + renderBars(bars), nil
		})
	case "top":
		k := defaultTop
		if len(args) == 1 {
			if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
				k = n
			}
		}
		return m.run("Scoring guesses", func() (string, error) {
			bars, err := m.session.TopGuesses(k)
			if err != nil {
				return "Entropy data parse failed.", err
			}
			return renderBars(bars), nil
		})
	case "groups":
		return m.groups(args)
	case "bench":
		return m.bench(args)
	case "stress":
		count := m.config.StressTrials()
		if len(args) == 1 {
			if n, err := strconv.Atoi(args[0]); err == nil {
				count = n
			}
		}
		return m.run("Running stress test", func() (string, error) {
			result, err := m.session.RunStress(m.ctx, count)
			if err != nil {
				return m.session.Status(), err
			}
			return result.Summary(), nil
		})
	case "simd":
		return m.simd(args)
	case "multicore":
		if m.controller == nil {
			m.output = "Multi-core activation is unavailable."
			return nil
		}
		return m.run("Enabling multi-core", func() (string, error) {
			err := m.controller.Enable(m.ctx)
			return "Multi-core: " + m.controller.State().String(), err
		})
	case "reset-helper":
		if m.controller == nil {
			m.output = "Multi-core activation is unavailable."
			return nil
		}
		return m.run("Resetting helper", func() (string, error) {
			err := m.controller.Reset(m.ctx)
			return "Multi-core: " + m.controller.State().String(), err
		})
	default:
		m.output = fmt.Sprintf("Unknown command %q. Type help for a list.", name)
	}
	return nil
}

// run starts fn behind the spinner and reports its result as an actionDoneMsg.
func (m *model) run(label string, fn func() (string, error)) tea.Cmd {
	m.isLoading = true
	m.progress = orchestrator.Progress{}
	m.loadingLabel = label
	m.requestStartTime = time.Now()
	return tea.Batch(m.spinner.Tick, tickCmd(), func() tea.Msg {
		out, err := fn()
		return actionDoneMsg{output: out, err: err}
	})
}

func (m *model) groups(args []string) tea.Cmd {
	text := strings.Join(args, " ")
	if text == "" {
		path := strings.TrimSpace(m.config.GroupWordsPath)
		if path == "" {
			m.output = "usage: groups <16 words>"
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			m.err = err
			return nil
		}
		text = string(data)
	}
	m.output = "Solving..."
	return m.run("Running clustering + PCA", func() (string, error) {
		result, err := m.session.SolveGroups(text)
		if err != nil {
			return m.session.Status(), err
		}
		m.session.Flush()
		return result.Text() + "\n\n" + result.Meta, nil
	})
}

func (m *model) bench(args []string) tea.Cmd {
	count := m.config.BenchmarkTrials()
	useEngine := false
	for _, arg := range args {
		if arg == "--engine" {
			useEngine = true
			continue
		}
		if n, err := strconv.Atoi(arg); err == nil {
			count = n
		}
	}
	return m.run("Running speed test", func() (string, error) {
		run := m.session.RunBenchmark
		if useEngine {
			run = m.session.RunEngineSpeedTest
		}
		report, err := run(m.ctx, count)
		if err != nil {
			return m.session.Status(), err
		}
		out := report.Result.Summary()
		if report.Simd != nil {
			out += fmt.Sprintf("\nThroughput scalar: %.2f words/us | SIMD: %.2f words/us",
				report.Simd.Scalar.WordsPerMicro, report.Simd.Simd.WordsPerMicro)
		}
		return out, nil
	})
}

func (m *model) simd(args []string) tea.Cmd {
	if len(args) > 0 && strings.EqualFold(args[0], "compare") {
		guess := ""
		if len(args) > 1 {
			guess = args[1]
		}
		return m.run("Comparing SIMD and scalar", func() (string, error) {
			cmp, err := m.session.RunSimdComparison(m.ctx, guess)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Throughput scalar: %.2f words/us | SIMD: %.2f words/us",
				cmp.Scalar.WordsPerMicro, cmp.Simd.WordsPerMicro), nil
		})
	}
	enabled, ok := parseToggle(args, !m.session.SimdPreference())
	if !ok {
		m.output = "usage: simd [on|off|compare [guess]]"
		return nil
	}
	m.session.SetSimd(enabled)
	m.output = "SIMD: " + onOff(enabled)
	return nil
}

func (m *model) resize(args []string) tea.Cmd {
	if len(args) < 2 {
		m.output = "usage: resize <width> <height> [dpr]"
		return nil
	}
	width, errW := strconv.Atoi(args[0])
	height, errH := strconv.Atoi(args[1])
	dpr := 1.0
	var errD error
	if len(args) > 2 {
		dpr, errD = strconv.ParseFloat(args[2], 64)
	}
	if err := errors.Join(errW, errH, errD); err != nil || width <= 0 || height <= 0 || dpr <= 0 {
		m.output = "usage: resize <width> <height> [dpr]"
		return nil
	}
	m.session.Resize(width, height, dpr)
	m.output = fmt.Sprintf("Plot size: %dx%d @%.1fx", width, height, dpr)
	return nil
}

func parseToggle(args []string, toggled bool) (bool, bool) {
	if len(args) == 0 {
		return toggled, true
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		return true, true
	case "off", "false", "0":
		return false, true
	}
	return false, false
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// renderBars draws the entropy bars as block characters.
func renderBars(bars []orchestrator.EntropyBar) string {
	if len(bars) == 0 {
		return ""
	}
	barStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	var b strings.Builder
	for _, bar := range bars {
		cells := int(bar.Percent / 100 * barWidth)
		cells = max(1, cells)
		fmt.Fprintf(&b, "%-14s %s\n", bar.Label(), barStyle.Render(strings.Repeat("█", cells)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// View renders the workbench.
func (m *model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var builder strings.Builder
	headerStyle := lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1)
	labelStyle := lipgloss.NewStyle().Background(lipgloss.Color("0")).Foreground(lipgloss.Color("255")).Padding(0, 1)
	badgeStyle := lipgloss.NewStyle().Background(lipgloss.Color("255")).Foreground(lipgloss.Color("0")).Padding(0, 1).MarginLeft(1)

	multicore := "n/a"
	if m.controller != nil {
		multicore = m.controller.State().String()
	}
	status := lipgloss.JoinHorizontal(lipgloss.Top,
		labelStyle.Render("Aletheia"),
		headerStyle.MarginLeft(1).Render(m.session.ModeLabel()),
		headerStyle.MarginLeft(1).Render(m.session.Activity()),
		badgeStyle.Render("Hard: "+onOff(m.session.HardMode())),
		badgeStyle.Render("SIMD: "+onOff(m.session.SimdPreference())),
		badgeStyle.Render(fmt.Sprintf("Weight: %.2f", m.session.LexicalWeight())),
		badgeStyle.Render("Multi-core: "+multicore),
	)
	help := lipgloss.NewStyle().Render(" (esc to quit)")
	builder.WriteString(status + help + "\n")

	statusLine := lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render(m.session.Status())
	builder.WriteString(statusLine + "\n\n")

	m.viewport.SetContent(lipgloss.NewStyle().Width(max(10, m.width-2)).Render(m.output))
	builder.WriteString(m.viewport.View())

	if m.err != nil {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
		builder.WriteString("\n" + errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	feedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	lines := m.session.Feed().Lines()
	if len(lines) > feedLines {
		lines = lines[:feedLines]
	}
	builder.WriteString("\n\n" + feedStyle.Render(strings.Join(lines, "\n")))

	if m.isLoading {
		timer := fmt.Sprintf("%.1f", time.Since(m.requestStartTime).Seconds())
		builder.WriteString(fmt.Sprintf("\n%s %s... %ss", m.spinner.View(), m.loadingLabel, timer))
		if m.progress.Total > 0 {
			builder.WriteString(fmt.Sprintf(" (%d/%d trials)", m.progress.Done, m.progress.Total))
		}
	} else {
		builder.WriteString("\n" + m.textArea.View())
	}
	return builder.String()
}

const helpText = `Commands:
  load <path>                 load a dictionary file
  reset                       restore the full candidate pool
  pattern <guess> <target>    compute a feedback pattern
  apply <guess> <pattern>     filter candidates by feedback
  best                        best guess, entropy bars and histogram
  top [k]                     top guesses by entropy
  groups [16 words]           solve the grouping puzzle
  bench [n] [--engine]        speed test, then SIMD comparison
  stress [n]                  adversarial stress test
  simd [on|off|compare]       toggle or compare vectorized filtering
  weight [0..1]               lexical blending weight
  hard [on|off]               hard mode
  multicore                   enable multi-threaded mode
  reset-helper                unregister the isolation helper
  resize <w> <h> [dpr]        change the plot size
  quit                        exit`

// watchSession forwards feed lines, activity changes and benchmark progress
// to send. The callbacks fire while an action holds the session, so send runs
// on its own goroutine. The returned func unregisters them.
func watchSession(session *orchestrator.Session, send func(tea.Msg)) func() {
	session.Feed().OnAppend(func() { go send(feedMsg{}) })
	session.OnActivity(func(label string) { go send(activityMsg(label)) })
	session.OnProgress(func(done, total int) {
		go send(progressMsg{Done: done, Total: total})
	})
	return func() {
		session.Feed().OnAppend(nil)
		session.OnActivity(nil)
		session.OnProgress(nil)
	}
}

// StartWorkbench runs the TUI for one session until ctx is cancelled (a
// reload) or the user quits.
func StartWorkbench(ctx context.Context, cfg appconfig.Config, session *orchestrator.Session, controller Controller) error {
	m := initialModel(ctx, cfg, session, controller)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	stop := watchSession(session, p.Send)
	defer stop()

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
			return ctx.Err()
		}
		log.Printf("workbench stopped: %v", err)
		return err
	}
	return nil
}
