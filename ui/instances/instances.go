package instances

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/ui/common"
	"github.com/deemkeen/versiond/util"
)

var bridgedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(common.COLOR_YELLOW))

// Model lists the remote instances this server has resolved.
type Model struct {
	store     common.Store
	Instances []domain.Instance
	Selected  int
	Width     int
	Height    int
	Error     string
}

func InitialModel(store common.Store, width, height int) Model {
	return Model{store: store, Width: width, Height: height}
}

func (m Model) Init() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		ctx, cancel := common.QueryContext()
		defer cancel()
		instances, err := store.ListInstances(ctx)
		return instancesLoadedMsg{instances: instances, err: err}
	}
}

type instancesLoadedMsg struct {
	instances []domain.Instance
	err       error
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case instancesLoadedMsg:
		if msg.err != nil {
			m.Error = msg.err.Error()
			return m, nil
		}
		m.Error = ""
		m.Instances = msg.instances
		if m.Selected >= len(m.Instances) {
			m.Selected = max(0, len(m.Instances)-1)
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.Selected > 0 {
				m.Selected--
			}
		case "down", "j":
			if m.Selected < len(m.Instances)-1 {
				m.Selected++
			}
		case "ctrl+r":
			return m, m.Init()
		}
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("known instances (%d)", len(m.Instances))))
	s.WriteString("\n")

	if len(m.Instances) == 0 {
		s.WriteString(common.EmptyStyle.Render("No remote instance has been seen yet."))
		s.WriteString("\n")
	}

	start, end := common.Window(len(m.Instances), m.Selected, common.VisibleRows(m.Height))
	for i := start; i < end; i++ {
		instance := m.Instances[i]
		prefix, style := "  ", common.RowStyle
		if i == m.Selected {
			prefix, style = "> ", common.SelectedStyle
		}
		protocol := string(instance.Protocol)
		if instance.Protocol == domain.ProtocolBridged {
			protocol = bridgedStyle.Render(protocol)
		}
		line := fmt.Sprintf("%s%-32s %-8s %-24s since %s",
			prefix,
			util.Truncate(instance.Host, 32),
			protocol,
			util.Truncate(instance.Software, 24),
			instance.CreatedAt.Format(util.DateTimeFormat()))
		s.WriteString(style.Render(line))
		s.WriteString("\n")
	}

	if m.Error != "" {
		s.WriteString(common.ErrorStyle.Render("Error: " + m.Error))
		s.WriteString("\n")
	}
	return s.String()
}
