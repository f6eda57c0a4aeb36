package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// Lister is the read side of the lead store used to fill the board.
type Lister interface {
	List(ctx context.Context, status *model.Status) ([]model.Lead, error)
}

var errLoadCancelled = errors.New("loading cancelled")

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const loadTimeout = 30 * time.Second

type leadsLoadedMsg struct {
	leads []model.Lead
	err   error
}

type spinnerTickMsg struct{}

// loaderModel lists leads, optionally restricted to one status, and leaves a
// per-status summary line behind once done.
type loaderModel struct {
	store  Lister
	status *model.Status
	frame  int
	leads  []model.Lead
	err    error
	done   bool
}

func (m loaderModel) Init() tea.Cmd {
	return tea.Batch(m.load(), m.tick())
}

func (m loaderModel) load() tea.Cmd {
	store, status := m.store, m.status
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		leads, err := store.List(ctx, status)
		return leadsLoadedMsg{leads: leads, err: err}
	}
}

func (m loaderModel) tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

func (m loaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case leadsLoadedMsg:
		m.leads, m.err, m.done = msg.leads, msg.err, true
		return m, tea.Quit
	case spinnerTickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, m.tick()
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.err, m.done = errLoadCancelled, true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m loaderModel) subject() string {
	if m.status == nil {
		return "leads"
	}
	return string(*m.status) + " leads"
}

func (m loaderModel) View() string {
	if !m.done {
		spinner := lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Render(spinnerFrames[m.frame])
		return fmt.Sprintf("%s Loading %s...\n", spinner, m.subject())
	}
	if m.err != nil {
		return ""
	}
	if len(m.leads) == 0 {
		return fmt.Sprintf("No %s found.\n", m.subject())
	}
	return fmt.Sprintf("Loaded %d %s: %s\n", len(m.leads), m.subject(), summarize(m.leads))
}

// Load lists leads behind an inline spinner. A nil status loads every lead.
func Load(store Lister, status *model.Status) ([]model.Lead, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownStatus, *status)
	}
	p := tea.NewProgram(loaderModel{store: store, status: status})
	result, err := p.Run()
	if err != nil {
		return nil, err
	}
	final := result.(loaderModel)
	return final.leads, final.err
}
