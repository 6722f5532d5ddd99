package deliveries

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/ui/common"
	"github.com/deemkeen/versiond/util"
	"github.com/google/uuid"
)

const listLimit = 200

var (
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(common.COLOR_YELLOW))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(common.COLOR_RED))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(common.COLOR_BLUE))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(common.COLOR_GREY)).PaddingLeft(4)
)

// filters cycles through the statuses the queue can be narrowed to. The
// empty status lists every unfinished job.
var filters = []domain.DeliveryStatus{"", domain.DeliveryPending, domain.DeliveryFailed}

// Model is the delivery queue screen.
type Model struct {
	store    common.Store
	Jobs     []domain.DeliveryJob
	Filter   int
	Selected int
	Width    int
	Height   int
	Status   string
	Error    string
	now      func() time.Time
}

func InitialModel(store common.Store, width, height int) Model {
	return Model{store: store, Width: width, Height: height, now: time.Now}
}

func (m Model) Init() tea.Cmd {
	return m.load()
}

type jobsLoadedMsg struct {
	jobs []domain.DeliveryJob
	err  error
}

type jobChangedMsg struct {
	status string
	err    error
}

func (m Model) load() tea.Cmd {
	store, status := m.store, filters[m.Filter]
	return func() tea.Msg {
		ctx, cancel := common.QueryContext()
		defer cancel()
		jobs, err := store.ListDeliveryJobs(ctx, status, listLimit)
		return jobsLoadedMsg{jobs: jobs, err: err}
	}
}

func retry(store common.Store, id uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := common.QueryContext()
		defer cancel()
		if err := store.RetryDeliveryJob(ctx, id); err != nil {
			return jobChangedMsg{err: err}
		}
		return jobChangedMsg{status: "Job scheduled for immediate retry"}
	}
}

func drop(store common.Store, id uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := common.QueryContext()
		defer cancel()
		if err := store.DropDeliveryJob(ctx, id); err != nil {
			return jobChangedMsg{err: err}
		}
		return jobChangedMsg{status: "Job dropped"}
	}
}

func (m Model) selected() (domain.DeliveryJob, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Jobs) {
		return domain.DeliveryJob{}, false
	}
	return m.Jobs[m.Selected], true
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case jobsLoadedMsg:
		if msg.err != nil {
			m.Error = msg.err.Error()
			return m, nil
		}
		m.Jobs = msg.jobs
		if m.Selected >= len(m.Jobs) {
			m.Selected = max(0, len(m.Jobs)-1)
		}
		return m, nil

	case jobChangedMsg:
		if msg.err != nil {
			m.Error = msg.err.Error()
			return m, nil
		}
		m.Status = msg.status
		return m, m.load()

	case tea.KeyMsg:
		m.Status = ""
		m.Error = ""

		switch msg.String() {
		case "up", "k":
			if m.Selected > 0 {
				m.Selected--
			}
		case "down", "j":
			if m.Selected < len(m.Jobs)-1 {
				m.Selected++
			}
		case "f":
			m.Filter = (m.Filter + 1) % len(filters)
			m.Selected = 0
			return m, m.load()
		case "ctrl+r":
			return m, m.load()
		case "r":
			job, ok := m.selected()
			if !ok {
				return m, nil
			}
			if job.Status == domain.DeliveryInProgress {
				m.Error = "Job is being delivered right now"
				return m, nil
			}
			return m, retry(m.store, job.Id)
		case "x":
			if job, ok := m.selected(); ok {
				return m, drop(m.store, job.Id)
			}
		}
	}
	return m, nil
}

func filterName(status domain.DeliveryStatus) string {
	if status == "" {
		return "unfinished"
	}
	return string(status)
}

func statusLabel(status domain.DeliveryStatus) string {
	label := fmt.Sprintf("%-11s", status)
	switch status {
	case domain.DeliveryPending:
		return pendingStyle.Render(label)
	case domain.DeliveryFailed:
		return failedStyle.Render(label)
	case domain.DeliveryInProgress:
		return runningStyle.Render(label)
	}
	return label
}

// due describes when a job runs next relative to now.
func due(job domain.DeliveryJob, now time.Time) string {
	switch {
	case job.Status == domain.DeliveryFailed:
		return "gave up"
	case job.Status == domain.DeliveryInProgress:
		return "running"
	case !job.NextAttemptAt.After(now):
		return "due"
	}
	return "in " + job.NextAttemptAt.Sub(now).Round(time.Second).String()
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("delivery queue: %d %s jobs", len(m.Jobs), filterName(filters[m.Filter]))))
	s.WriteString("\n")

	if len(m.Jobs) == 0 {
		s.WriteString(common.EmptyStyle.Render("Nothing queued."))
		s.WriteString("\n")
	} else {
		now := m.now()
		start, end := common.Window(len(m.Jobs), m.Selected, common.VisibleRows(m.Height)-1)
		for i := start; i < end; i++ {
			job := m.Jobs[i]
			prefix, style := "  ", common.RowStyle
			if i == m.Selected {
				prefix, style = "> ", common.SelectedStyle
			}
			line := fmt.Sprintf("%s%s %-14s attempts %d  %s",
				prefix, statusLabel(job.Status), job.EntityType, job.Attempts, due(job, now))
			s.WriteString(style.Render(line))
			s.WriteString("\n")
		}

		if job, ok := m.selected(); ok {
			s.WriteString(detailStyle.Render(fmt.Sprintf("id %s  created %s", job.Id, job.CreatedAt.Format(util.DateTimeFormat()))))
			s.WriteString("\n")
			if job.LastError != "" {
				s.WriteString(detailStyle.Render("last error: " + util.Truncate(job.LastError, max(20, m.Width-20))))
				s.WriteString("\n")
			}
		}
	}

	if m.Status != "" {
		s.WriteString(common.StatusStyle.Render(m.Status))
		s.WriteString("\n")
	}
	if m.Error != "" {
		s.WriteString(common.ErrorStyle.Render("Error: " + m.Error))
		s.WriteString("\n")
	}
	return s.String()
}
