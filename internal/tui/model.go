package tui

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zombor/jain-scan/internal/capture"
	"github.com/zombor/jain-scan/internal/screen"
)

type scanDoneMsg struct {
	err error
}

type checkDoneMsg struct {
	err error
}

// Model is the terminal rendering of a scanning screen
type Model struct {
	app    *screen.App
	camera capture.Camera
	ctx    context.Context

	width    int
	scanning bool
	checks   int
	quitting bool
}

// NewModel creates a model driving app with camera
func NewModel(ctx context.Context, app *screen.App, camera capture.Camera) *Model {
	return &Model{
		app:    app,
		camera: camera,
		ctx:    ctx,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		return m.handleKey(msg)

	case scanDoneMsg:
		m.scanning = false

	case checkDoneMsg:
		if m.checks > 0 {
			m.checks--
		}
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	// A notice is modal until acknowledged
	if m.app.Snapshot().Notice != "" {
		if key == "enter" || key == "esc" {
			m.app.DismissNotice()
		}
		return m, nil
	}

	switch key {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "s":
		if m.scanning {
			return m, nil
		}
		m.scanning = true
		return m, m.scan()
	case "c":
		m.checks++
		return m, m.check()
	}
	return m, nil
}

func (m *Model) scan() tea.Cmd {
	app, camera, ctx := m.app, m.camera, m.ctx
	return func() tea.Msg {
		return scanDoneMsg{err: app.Scan(ctx, camera)}
	}
}

func (m *Model) check() tea.Cmd {
	app, ctx := m.app, m.ctx
	return func() tea.Msg {
		return checkDoneMsg{err: app.Check(ctx)}
	}
}

// View renders the model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	state := m.app.Snapshot()

	var b strings.Builder
	b.WriteString(titleStyle.Render("Jain Scan"))
	b.WriteString("\n")

	scanLabel := "[s] Scan Ingredients"
	checkLabel := "[c] Check ingredients"
	scanButton := buttonStyle
	checkButton := buttonStyle
	if m.scanning {
		scanLabel = "Scanning..."
		scanButton = disabledButtonStyle
	}
	if m.checks > 0 {
		checkLabel = "Checking..."
		checkButton = disabledButtonStyle
	}

	b.WriteString(scanButton.Render(scanLabel))
	b.WriteString("\n")
	if state.DisplayImage != "" {
		b.WriteString(imageStyle.Render("Photo: " + state.DisplayImage))
		b.WriteString("\n")
	}
	b.WriteString(checkButton.Render(checkLabel))
	b.WriteString("\n")

	width := m.width - 4
	if width < 20 {
		width = 60
	}
	b.WriteString(headlineStyle.Width(width).Render(state.HeaderText))
	if state.ExplanationText != "" {
		b.WriteString("\n")
		b.WriteString(explanationStyle.Width(width).Render(state.ExplanationText))
	}
	b.WriteString("\n")

	if state.Notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(state.Notice + "\n\n[enter] OK"))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("s: scan  c: check  q: quit"))

	return screenStyle.Render(b.String())
}

// Run runs the terminal screen until the user quits
func Run(ctx context.Context, app *screen.App, camera capture.Camera) error {
	p := tea.NewProgram(NewModel(ctx, app, camera), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return err
	}
	return nil
}
