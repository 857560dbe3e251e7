package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"maestro-go-agents/agent"
	"maestro-go-agents/client"
	"maestro-go-agents/config"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginBottom(1)

	errorStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#EF4444")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
	labelStyle  = lipgloss.NewStyle().Bold(true)
)

type phase int

const (
	phaseKey phase = iota
	phaseConnecting
	phaseInput
	phaseRunning
	phaseDone
)

const (
	focusObjective = iota
	focusTextFile
	focusImage
	focusCount
)

// maxEvents bounds the progress lines kept on screen while running.
const maxEvents = 12

// tuiModel represents the application state for the bubbletea TUI.
type tuiModel struct {
	cfg    *config.Config
	logger *log.Logger
	phase  phase

	keyInput  textinput.Model
	objective textarea.Model
	textFile  textinput.Model
	imageFile textinput.Model
	focus     int
	tier      agent.Tier
	saveLog   bool

	spinner  spinner.Model
	viewport viewport.Model
	ready    bool
	width    int

	gateway      client.Gateway
	closeGateway func()
	cancel       context.CancelFunc
	cancelling   bool
	progress     <-chan agent.ProgressUpdate

	events    []string
	usage     agent.TokenUsage
	result    *agent.RunResult
	savedPath string
	status    string
	err       error
}

type connectedMsg struct {
	gateway client.Gateway
	close   func()
	err     error
}

type progressMsg struct {
	update agent.ProgressUpdate
	idle   bool
}

type runDoneMsg struct {
	result    *agent.RunResult
	err       error
	savedPath string
	saveErr   error
}

func newTUIModel(cfg *config.Config, logger *log.Logger) (tuiModel, error) {
	tier, err := agent.ParseTier(cfg.WorkerTier)
	if err != nil {
		return tuiModel{}, err
	}

	key := textinput.New()
	key.Placeholder = "sk-..."
	key.EchoMode = textinput.EchoPassword
	key.EchoCharacter = '•'
	key.Width = 60

	objective := textarea.New()
	objective.Placeholder = "Enter your objective..."
	objective.ShowLineNumbers = false
	objective.SetWidth(80)
	objective.SetHeight(5)

	textFile := textinput.New()
	textFile.Placeholder = "optional: path to a txt, md, html, csv or json file"
	textFile.Width = 60

	imageFile := textinput.New()
	imageFile.Placeholder = "optional: path to a jpg, png, gif, bmp, tiff or webp image"
	imageFile.Width = 60

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED"))

	m := tuiModel{
		cfg:       cfg,
		logger:    logger,
		keyInput:  key,
		objective: objective,
		textFile:  textFile,
		imageFile: imageFile,
		tier:      tier,
		saveLog:   cfg.SaveLog,
		spinner:   s,
	}
	if len(cfg.APIKeys) == 0 {
		m.phase = phaseKey
		m.status = "Enter your OpenAI API key"
		m.keyInput.Focus()
	} else {
		m.phase = phaseConnecting
		m.status = "Validating API key..."
	}
	return m, nil
}

// Init initializes the model and returns the initial command to run.
func (m tuiModel) Init() tea.Cmd {
	if m.phase == phaseConnecting {
		return tea.Batch(m.spinner.Tick, connectCmd(m.cfg, m.logger))
	}
	return textinput.Blink
}

func connectCmd(cfg *config.Config, logger *log.Logger) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		gw, closeGateway, err := connect(ctx, cfg, logger)
		return connectedMsg{gateway: gw, close: closeGateway, err: err}
	}
}

// listenForProgress waits briefly for the next update so the command never
// outlives the run by more than one poll.
func listenForProgress(ch <-chan agent.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		select {
		case update := <-ch:
			return progressMsg{update: update}
		case <-time.After(100 * time.Millisecond):
			return progressMsg{idle: true}
		}
	}
}

// Update handles incoming messages and updates the model state accordingly.
func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.objective.SetWidth(min(msg.Width-4, 100))
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-5)
			m.ready = true
		}
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 5
		if m.phase == phaseDone {
			m.viewport.SetContent(m.renderResult())
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.phase == phaseRunning || m.phase == phaseConnecting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case connectedMsg:
		if msg.err != nil {
			m.phase = phaseKey
			m.err = msg.err
			m.status = "Invalid API key. Please enter a valid API key to proceed."
			m.cfg.APIKeys = nil
			m.keyInput.Reset()
			cmd := m.keyInput.Focus()
			return m, cmd
		}
		m.gateway = msg.gateway
		m.closeGateway = msg.close
		m.err = nil
		m.phase = phaseInput
		m.status = "API key is valid."
		cmd := m.focusField(focusObjective)
		return m, cmd

	case progressMsg:
		if !msg.idle {
			m.recordProgress(msg.update)
		}
		if m.phase == phaseRunning {
			cmds = append(cmds, listenForProgress(m.progress))
		}
		return m, tea.Batch(cmds...)

	case runDoneMsg:
		m.drainProgress()
		m.phase = phaseDone
		m.cancel = nil
		m.result = msg.result
		m.savedPath = msg.savedPath
		m.err = errors.Join(msg.err, msg.saveErr)
		if msg.result != nil {
			m.status = msg.result.Describe()
		}
		if m.ready {
			m.viewport.SetContent(m.renderResult())
			m.viewport.GotoTop()
		}
		return m, nil
	}

	return m.updateFocused(msg)
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	}

	switch m.phase {
	case phaseKey:
		switch msg.String() {
		case "esc":
			return m, tea.Quit
		case "enter":
			key := strings.TrimSpace(m.keyInput.Value())
			if key == "" {
				return m, nil
			}
			m.cfg.APIKeys = []string{key}
			m.phase = phaseConnecting
			m.status = "Validating API key..."
			return m, tea.Batch(m.spinner.Tick, connectCmd(m.cfg, m.logger))
		}

	case phaseInput:
		switch msg.String() {
		case "esc":
			return m, tea.Quit
		case "tab":
			cmd := m.focusField((m.focus + 1) % focusCount)
			return m, cmd
		case "shift+tab":
			cmd := m.focusField((m.focus + focusCount - 1) % focusCount)
			return m, cmd
		case "ctrl+t":
			m.tier = m.tier.Next()
			return m, nil
		case "ctrl+s":
			m.saveLog = !m.saveLog
			return m, nil
		case "ctrl+r":
			return m.startRun()
		}

	case phaseRunning:
		switch msg.String() {
		case "esc", "ctrl+x":
			if m.cancel != nil && !m.cancelling {
				m.cancel()
				m.cancelling = true
				m.status = "Stopping after the current step..."
			}
		}
		return m, nil

	case phaseDone:
		switch msg.String() {
		case "q", "esc":
			return m, tea.Quit
		case "n":
			m.phase = phaseInput
			m.result = nil
			m.err = nil
			m.events = nil
			m.savedPath = ""
			m.status = "Enter your next objective"
			cmd := m.focusField(focusObjective)
			return m, cmd
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case phaseConnecting:
		return m, nil
	}

	return m.updateFocused(msg)
}

func (m tuiModel) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.phase {
	case phaseKey:
		m.keyInput, cmd = m.keyInput.Update(msg)
	case phaseInput:
		switch m.focus {
		case focusObjective:
			m.objective, cmd = m.objective.Update(msg)
		case focusTextFile:
			m.textFile, cmd = m.textFile.Update(msg)
		case focusImage:
			m.imageFile, cmd = m.imageFile.Update(msg)
		}
	}
	return m, cmd
}

func (m *tuiModel) focusField(field int) tea.Cmd {
	m.focus = field
	m.objective.Blur()
	m.textFile.Blur()
	m.imageFile.Blur()
	switch field {
	case focusTextFile:
		return m.textFile.Focus()
	case focusImage:
		return m.imageFile.Focus()
	default:
		return m.objective.Focus()
	}
}

func (m tuiModel) startRun() (tea.Model, tea.Cmd) {
	objective, bundle, err := prepareObjective(m.objective.Value(), m.textFile.Value(), m.imageFile.Value())
	if err != nil {
		m.err = err
		return m, nil
	}
	if objective == "" {
		m.err = errors.New("please enter an objective to start the task execution")
		return m, nil
	}

	loop, err := newLoop(m.cfg, m.gateway, m.tier, m.logger)
	if err != nil {
		m.err = err
		return m, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cfg := *m.cfg
	cfg.SaveLog = m.saveLog

	m.phase = phaseRunning
	m.cancel = cancel
	m.cancelling = false
	m.progress = loop.Progress()
	m.events = nil
	m.usage = agent.TokenUsage{}
	m.err = nil
	m.status = "Working on your objective..."
	m.objective.Blur()

	run := func() tea.Msg {
		result, err := loop.Run(ctx, objective, bundle)
		path, saveErr := saveArtifacts(&cfg, result, m.logger)
		return runDoneMsg{result: result, err: err, savedPath: path, saveErr: saveErr}
	}
	return m, tea.Batch(m.spinner.Tick, run, listenForProgress(m.progress))
}

func (m *tuiModel) recordProgress(u agent.ProgressUpdate) {
	m.usage = u.Usage
	if line := formatProgress(u); line != "" {
		first, _, _ := strings.Cut(line, "\n")
		if u.Status == agent.StatusCompleted && u.Role != agent.RefinerRole {
			first += " " + truncateString(strings.ReplaceAll(u.Message, "\n", " "), 80)
		}
		m.events = append(m.events, first)
		if len(m.events) > maxEvents {
			m.events = m.events[len(m.events)-maxEvents:]
		}
	}
}

func (m *tuiModel) drainProgress() {
	for {
		select {
		case u := <-m.progress:
			m.recordProgress(u)
		default:
			return
		}
	}
}

// shutdown stops any run in flight and releases the gateway.
func (m tuiModel) shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.closeGateway != nil {
		m.closeGateway()
	}
}

// View renders the current state of the model as a string for display.
func (m tuiModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("🎼 Maestro"))
	b.WriteString("\n")

	switch m.phase {
	case phaseKey:
		b.WriteString(labelStyle.Render("OpenAI API key") + "\n")
		b.WriteString(m.keyInput.View() + "\n\n")
		b.WriteString(helpStyle.Render("enter: validate • esc: quit"))

	case phaseConnecting:
		fmt.Fprintf(&b, "%s %s", m.spinner.View(), m.status)
		return b.String()

	case phaseInput:
		b.WriteString(labelStyle.Render("Objective") + "\n")
		b.WriteString(m.objective.View() + "\n\n")
		b.WriteString(labelStyle.Render("Text file ") + m.textFile.View() + "\n")
		b.WriteString(labelStyle.Render("Image     ") + m.imageFile.View() + "\n\n")
		fmt.Fprintf(&b, "Worker tier: %s %s    Save exchange log: %s\n\n",
			labelStyle.Render(string(m.tier)), statusStyle.Render("("+m.tier.Description()+")"), onOff(m.saveLog))
		b.WriteString(helpStyle.Render("ctrl+r: start • tab: next field • ctrl+t: worker tier • ctrl+s: toggle log • esc: quit"))

	case phaseRunning:
		fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), m.status)
		for _, line := range m.events {
			b.WriteString(line + "\n")
		}
		fmt.Fprintf(&b, "\n%s\n", statusStyle.Render(fmt.Sprintf("%s tokens • $%.4f", formatNumber(m.usage.TotalTokens), m.usage.Cost)))
		b.WriteString(helpStyle.Render("esc: stop after the current step • ctrl+c: quit"))

	case phaseDone:
		if !m.ready {
			return "\nInitializing...\n"
		}
		b.WriteString(m.viewport.View() + "\n")
		b.WriteString(helpStyle.Render("↑/↓: scroll • n: new objective • q: quit"))
	}

	if m.err != nil && m.phase != phaseDone {
		b.WriteString("\n\n" + errorStyle.Render(m.err.Error()))
	}
	if m.phase != phaseRunning && m.phase != phaseDone && m.status != "" {
		b.WriteString("\n" + statusStyle.Render(m.status))
	}
	return b.String()
}

// renderResult formats the finished run for the viewport.
func (m tuiModel) renderResult() string {
	var out strings.Builder
	out.WriteString(statusStyle.Render(m.status) + "\n\n")

	if m.err != nil {
		out.WriteString(errorStyle.Render(m.err.Error()) + "\n\n")
	}
	if m.result != nil && m.result.HasRefined {
		rendered, err := renderMarkdown(m.result.Refined, m.viewport.Width-4)
		if err != nil {
			out.WriteString(errorStyle.Render(err.Error()) + "\n")
			rendered = m.result.Refined
		}
		out.WriteString(rendered + "\n")
	}
	if m.savedPath != "" {
		out.WriteString("\n" + statusStyle.Render("Full exchange log saved to "+m.savedPath) + "\n")
	}
	if m.result != nil {
		out.WriteString(statusStyle.Render(fmt.Sprintf("%d sub-task(s) • %s tokens • $%.4f",
			len(m.result.Exchanges), formatNumber(m.result.Usage.TotalUsage.TotalTokens), m.result.Usage.TotalUsage.Cost)) + "\n")
	}
	return out.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// truncateString truncates a string to the specified maximum length and adds ellipsis if needed.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// formatNumber formats a number with commas for better readability
func formatNumber(n int) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	for i, digit := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}
	return result.String()
}
