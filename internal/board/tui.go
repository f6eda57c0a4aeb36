package board

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// Lines per lead item in the list view (title + subtitle + blank separator).
const leadItemHeight = 3

const (
	paneActive = iota
	paneClosed
)

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

// Transitioner applies a status change; *pipeline.Tracker satisfies it.
type Transitioner interface {
	Transition(ctx context.Context, id int64, status model.Status, feedback *string) (model.Lead, error)
}

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	leadTitleStyle = lipgloss.NewStyle().
			Bold(true)

	leadSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(16)

	detailValueStyle = lipgloss.NewStyle()

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// statusColors tints the status badge in list and detail views.
var statusColors = map[model.Status]lipgloss.Color{
	model.StatusNew:              lipgloss.Color("250"),
	model.StatusAnalysisComplete: lipgloss.Color("214"),
	model.StatusContacted:        lipgloss.Color("39"),
	model.StatusMeetingScheduled: lipgloss.Color("141"),
	model.StatusHired:            lipgloss.Color("42"),
	model.StatusRejected:         lipgloss.Color("196"),
}

// transitionedMsg is sent when an async status change completes.
type transitionedMsg struct {
	lead model.Lead
	err  error
}

type boardModel struct {
	activeLeads   []model.Lead
	closedLeads   []model.Lead
	leftViewport  viewport.Model
	rightViewport viewport.Model
	activePane    int
	leftCursor    int
	rightCursor   int
	width         int
	height        int
	ready         bool

	// Detail view state
	view           viewState
	detailLead     model.Lead
	detailViewport viewport.Model
	showResponse   bool

	// Transition state
	tracker      Transitioner
	transitionOn bool
	transitionEr string
}

func newBoardModel(leads []model.Lead, tracker Transitioner) boardModel {
	m := boardModel{tracker: tracker}
	for _, l := range leads {
		if l.Status.Terminal() {
			m.closedLeads = append(m.closedLeads, l)
		} else {
			m.activeLeads = append(m.activeLeads, l)
		}
	}
	sortLeadsByUpdated(m.activeLeads)
	sortLeadsByUpdated(m.closedLeads)
	return m
}

func (m boardModel) Init() tea.Cmd {
	return nil
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case transitionedMsg:
		m.transitionOn = false
		if msg.err != nil {
			m.transitionEr = fmt.Sprintf("status change failed: %v", msg.err)
		} else {
			m.transitionEr = ""
			m.detailLead = msg.lead
			m.replaceLead(msg.lead)
		}
		m.detailViewport.SetContent(m.renderDetail())
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m boardModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "tab", "left", "right":
		m.activePane = 1 - m.activePane
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		return m.openDetailView()
	}

	// Forward other keys (pgup/pgdn/home/end) to the active viewport.
	var cmd tea.Cmd
	if m.activePane == paneActive {
		m.leftViewport, cmd = m.leftViewport.Update(msg)
	} else {
		m.rightViewport, cmd = m.rightViewport.Update(msg)
	}
	return m, cmd
}

func (m boardModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		m.recalcContent()
		return m, nil
	case "o":
		openURL(m.detailLead.URL)
		return m, nil
	case "m":
		if m.detailLead.MeetingLink != nil {
			openURL(*m.detailLead.MeetingLink)
		}
		return m, nil
	case "r":
		m.showResponse = !m.showResponse
		m.detailViewport.SetContent(m.renderDetail())
		m.detailViewport.SetYOffset(0)
		return m, nil
	}

	// 1..9 pick an allowed next status.
	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' && m.tracker != nil && !m.transitionOn {
		next := m.detailLead.Status.Next()
		idx := int(key[0] - '1')
		if idx < len(next) {
			m.transitionOn = true
			m.transitionEr = ""
			m.detailViewport.SetContent(m.renderDetail())
			return m, m.transitionCmd(m.detailLead.ID, next[idx])
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m boardModel) transitionCmd(id int64, status model.Status) tea.Cmd {
	tracker := m.tracker
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		lead, err := tracker.Transition(ctx, id, status, nil)
		return transitionedMsg{lead: lead, err: err}
	}
}

func (m *boardModel) moveCursor(delta int) {
	if m.activePane == paneActive {
		m.leftCursor = clamp(m.leftCursor+delta, 0, max(len(m.activeLeads)-1, 0))
	} else {
		m.rightCursor = clamp(m.rightCursor+delta, 0, max(len(m.closedLeads)-1, 0))
	}
}

func (m *boardModel) ensureCursorVisible() {
	var vp *viewport.Model
	var cursor int
	if m.activePane == paneActive {
		vp = &m.leftViewport
		cursor = m.leftCursor
	} else {
		vp = &m.rightViewport
		cursor = m.rightCursor
	}

	cursorTop := cursor * leadItemHeight
	cursorBottom := cursorTop + leadItemHeight - 1

	if cursorTop < vp.YOffset {
		vp.SetYOffset(cursorTop)
	} else if cursorBottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(cursorBottom - vp.Height + 1)
	}
}

func (m boardModel) openDetailView() (tea.Model, tea.Cmd) {
	leads := m.paneLeads()
	if len(leads) == 0 {
		return m, nil
	}

	m.view = viewDetail
	m.detailLead = leads[m.paneCursor()]
	m.transitionEr = ""
	m.showResponse = false
	m.detailViewport = viewport.New(max(m.width-4, 20), max(m.height-4, 5))
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

// replaceLead updates a lead in place and moves it to the closed pane once
// it reaches a terminal status.
func (m *boardModel) replaceLead(lead model.Lead) {
	for i := range m.activeLeads {
		if m.activeLeads[i].ID != lead.ID {
			continue
		}
		if lead.Status.Terminal() {
			m.activeLeads = append(m.activeLeads[:i], m.activeLeads[i+1:]...)
			m.closedLeads = append([]model.Lead{lead}, m.closedLeads...)
			m.leftCursor = clamp(m.leftCursor, 0, max(len(m.activeLeads)-1, 0))
		} else {
			m.activeLeads[i] = lead
		}
		return
	}
}

func (m *boardModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	paneWidth := max((m.width-5)/2, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.leftViewport = viewport.New(paneWidth, paneHeight)
		m.rightViewport = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		m.leftViewport.Width = paneWidth
		m.leftViewport.Height = paneHeight
		m.rightViewport.Width = paneWidth
		m.rightViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *boardModel) recalcContent() {
	m.leftViewport.SetContent(renderLeads(m.activeLeads, m.leftCursor, m.activePane == paneActive))
	m.rightViewport.SetContent(renderLeads(m.closedLeads, m.rightCursor, m.activePane == paneClosed))
}

func (m boardModel) paneLeads() []model.Lead {
	if m.activePane == paneActive {
		return m.activeLeads
	}
	return m.closedLeads
}

func (m boardModel) paneCursor() int {
	if m.activePane == paneActive {
		return m.leftCursor
	}
	return m.rightCursor
}

func (m boardModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.view == viewDetail {
		return m.viewDetail()
	}

	return m.viewList()
}

func (m boardModel) viewList() string {
	paneWidth := m.leftViewport.Width

	leftHeader := fmt.Sprintf(" Open Leads (%d)", len(m.activeLeads))
	rightHeader := fmt.Sprintf(" Closed (%d)", len(m.closedLeads))

	var leftHeaderRendered, rightHeaderRendered string
	var leftBorder, rightBorder lipgloss.Style

	if m.activePane == paneActive {
		leftHeaderRendered = activeHeaderStyle.Render(leftHeader)
		rightHeaderRendered = inactiveHeaderStyle.Render(rightHeader)
		leftBorder = activeBorderStyle.Width(paneWidth)
		rightBorder = inactiveBorderStyle.Width(paneWidth)
	} else {
		leftHeaderRendered = inactiveHeaderStyle.Render(leftHeader)
		rightHeaderRendered = activeHeaderStyle.Render(rightHeader)
		leftBorder = inactiveBorderStyle.Width(paneWidth)
		rightBorder = activeBorderStyle.Width(paneWidth)
	}

	leftPane := leftBorder.Render(m.leftViewport.View())
	rightPane := rightBorder.Render(m.rightViewport.View())

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(paneWidth+2).Render(leftHeaderRendered),
		" ",
		lipgloss.NewStyle().Width(paneWidth+2).Render(rightHeaderRendered),
	)

	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, " ", rightPane)

	statusText := fmt.Sprintf(" %s    ←/→/Tab switch  ↑/↓ cursor  Enter detail  q quit",
		summarize(append(append([]model.Lead(nil), m.activeLeads...), m.closedLeads...)))
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func (m boardModel) viewDetail() string {
	title := detailTitleStyle.Render(fmt.Sprintf("Lead #%d", m.detailLead.ID))
	if m.transitionOn {
		title += "  (updating...)"
	}

	border := activeBorderStyle.Width(m.width - 2)
	content := border.Render(m.detailViewport.View())

	statusText := " o open vacancy  r response  esc/backspace back  ↑/↓ scroll  q quit"
	if m.detailLead.MeetingLink != nil {
		statusText = " o open vacancy  m meeting link  r response  esc/backspace back  ↑/↓ scroll  q quit"
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return title + "\n" + content + "\n" + statusBar
}

func (m boardModel) renderDetail() string {
	l := m.detailLead
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteByte('\n')
	}

	addField("Title", l.Title)
	addField("Company", l.Company)
	addField("Vacancy ID", l.VacancyID)
	b.WriteString(detailLabelStyle.Render("Status"))
	b.WriteString(statusBadge(l.Status))
	b.WriteByte('\n')

	b.WriteByte('\n')
	addField("Recruiter", l.RecruiterName)
	addField("Email", l.RecruiterEmail)
	if l.MeetingLink != nil {
		addField("Meeting Link", *l.MeetingLink)
	} else {
		addField("Meeting Link", "n/a")
	}
	addField("Vacancy URL", l.URL)

	b.WriteByte('\n')
	addField("Created", l.CreatedAt.Local().Format("2006-01-02 15:04 MST"))
	addField("Updated", l.UpdatedAt.Local().Format("2006-01-02 15:04 MST"))
	addField("Feedback", l.Feedback)

	wrapWidth := max(m.width-8, 20)
	divider := func(label string) string {
		fill := strings.Repeat("─", max(wrapWidth-len(label), 3))
		return dividerStyle.Render(label + fill)
	}

	b.WriteByte('\n')
	if next := l.Status.Next(); len(next) > 0 && m.tracker != nil {
		b.WriteString(divider("── Move to ") + "\n\n")
		for i, st := range next {
			b.WriteString(fmt.Sprintf("  %d  %s\n", i+1, statusBadge(st)))
		}
	} else if l.Status.Terminal() {
		b.WriteString(hintStyle.Render("  lead is closed") + "\n")
	}

	if m.transitionEr != "" {
		b.WriteByte('\n')
		b.WriteString(errorStyle.Render("⚠ "+m.transitionEr) + "\n")
	}

	if l.GeneratedResponse != "" {
		b.WriteByte('\n')
		if m.showResponse {
			b.WriteString(divider("── Generated Response ") + "\n\n")
			b.WriteString(bodyStyle.Render(wordWrap(l.GeneratedResponse, wrapWidth)) + "\n")
		} else {
			b.WriteString(hintStyle.Render("  press r to read the generated response") + "\n")
		}
	}

	return b.String()
}

func statusBadge(s model.Status) string {
	return lipgloss.NewStyle().Foreground(statusColors[s]).Bold(true).Render(string(s))
}

// summarize renders per-status counts in lifecycle order.
func summarize(leads []model.Lead) string {
	counts := make(map[model.Status]int)
	for _, l := range leads {
		counts[l.Status]++
	}
	var parts []string
	for _, st := range model.AllStatuses {
		if n := counts[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, st))
		}
	}
	if len(parts) == 0 {
		return "no leads"
	}
	return strings.Join(parts, " | ")
}

func renderLeads(leads []model.Lead, cursor int, isActive bool) string {
	if len(leads) == 0 {
		return "  (no leads)"
	}

	var b strings.Builder
	for i, l := range leads {
		isSelected := isActive && i == cursor

		titleSt := leadTitleStyle
		subtitleSt := leadSubtitleStyle
		prefix := "  "
		if isSelected {
			titleSt = selectedTitleStyle
			subtitleSt = selectedSubtitleStyle
			prefix = "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(l.Title))
		b.WriteByte('\n')

		company := l.Company
		if company == "" {
			company = "n/a"
		}
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%s · %s · %s", company, l.Status, l.UpdatedAt.Format("2006-01-02"))))
		b.WriteByte('\n')

		if i < len(leads)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func sortLeadsByUpdated(leads []model.Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		return leads[i].UpdatedAt.After(leads[j].UpdatedAt)
	})
}

func wordWrap(text string, width int) string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len(line)+1+len(w) <= width {
				line += " " + w
			} else {
				out = append(out, line)
				line = w
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	if url == "" {
		return
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// Run launches the interactive lead board. tracker may be nil, which makes
// the board read-only.
func Run(leads []model.Lead, tracker Transitioner) error {
	p := tea.NewProgram(newBoardModel(leads, tracker), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
