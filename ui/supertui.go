package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/versiond/ui/common"
	"github.com/deemkeen/versiond/ui/createuser"
	"github.com/deemkeen/versiond/ui/deliveries"
	"github.com/deemkeen/versiond/ui/header"
	"github.com/deemkeen/versiond/ui/instances"
	"github.com/deemkeen/versiond/ui/localusers"
)

var (
	focusedModelStyle = lipgloss.NewStyle().
		Align(lipgloss.Left, lipgloss.Top).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(common.COLOR_LIGHTBLUE)).
		MarginLeft(1)
)

var (
	tabStyle       = lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color(common.COLOR_GREY))
	activeTabStyle = tabStyle.Foreground(lipgloss.Color(common.COLOR_MAGENTA)).Bold(true).Underline(true)
)

// tabs is the order tab and shift+tab cycle through.
var tabs = []common.SessionState{common.DeliveriesView, common.InstancesView, common.LocalUsersView}

// MainModel is the admin console shown to an authorized SSH session.
type MainModel struct {
	width           int
	height          int
	state           common.SessionState
	headerModel     header.Model
	deliveriesModel deliveries.Model
	instancesModel  instances.Model
	localUsersModel localusers.Model
	newUserModel    createuser.Model
}

func NewModel(store common.Store, create common.CreateUserFunc, domain, admin string, width int, height int) MainModel {
	width = common.DefaultWindowWidth(width)
	height = common.DefaultWindowHeight(height)

	return MainModel{
		width:           width,
		height:          height,
		state:           common.DeliveriesView,
		headerModel:     header.Model{Width: width, Domain: domain, Admin: admin},
		deliveriesModel: deliveries.InitialModel(store, width, height),
		instancesModel:  instances.InitialModel(store, width, height),
		localUsersModel: localusers.InitialModel(store, width, height),
		newUserModel:    createuser.InitialModel(create),
	}
}

func (m MainModel) Init() tea.Cmd {
	return tea.Batch(m.deliveriesModel.Init(), m.instancesModel.Init(), m.localUsersModel.Init())
}

func (m *MainModel) resize(width, height int) {
	m.width = common.DefaultWindowWidth(width)
	m.height = common.DefaultWindowHeight(height)
	m.headerModel.Width = m.width
	m.deliveriesModel.Width, m.deliveriesModel.Height = m.width, m.height
	m.instancesModel.Width, m.instancesModel.Height = m.width, m.height
	m.localUsersModel.Width, m.localUsersModel.Height = m.width, m.height
}

// cycle moves step tabs forward or back and reloads the new view.
func (m MainModel) cycle(step int) (MainModel, tea.Cmd) {
	current := 0
	for i, s := range tabs {
		if s == m.state {
			current = i
		}
	}
	m.state = tabs[(current+step+len(tabs))%len(tabs)]
	return m, m.viewInitCmd()
}

func (m MainModel) viewInitCmd() tea.Cmd {
	switch m.state {
	case common.DeliveriesView:
		return m.deliveriesModel.Init()
	case common.InstancesView:
		return m.instancesModel.Init()
	case common.LocalUsersView:
		return m.localUsersModel.Init()
	case common.CreateUserView:
		return m.newUserModel.Init()
	}
	return nil
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case common.SessionState:
		m.state = msg
		if msg == common.CreateUserView {
			m.newUserModel = m.newUserModel.Reset()
		}
		return m, m.viewInitCmd()

	case common.UserCreatedMsg:
		m.state = common.LocalUsersView
		m.newUserModel = m.newUserModel.Reset()
		m.localUsersModel, cmd = m.localUsersModel.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "tab":
			if m.state != common.CreateUserView {
				return m.cycle(1)
			}
		case "shift+tab":
			if m.state != common.CreateUserView {
				return m.cycle(-1)
			}
		}

		// keys only reach the focused view
		switch m.state {
		case common.DeliveriesView:
			m.deliveriesModel, cmd = m.deliveriesModel.Update(msg)
		case common.InstancesView:
			m.instancesModel, cmd = m.instancesModel.Update(msg)
		case common.LocalUsersView:
			m.localUsersModel, cmd = m.localUsersModel.Update(msg)
		case common.CreateUserView:
			m.newUserModel, cmd = m.newUserModel.Update(msg)
		}
		return m, cmd
	}

	// data messages go to every view, each ignores what is not its own
	m.deliveriesModel, cmd = m.deliveriesModel.Update(msg)
	cmds = append(cmds, cmd)
	m.instancesModel, cmd = m.instancesModel.Update(msg)
	cmds = append(cmds, cmd)
	m.localUsersModel, cmd = m.localUsersModel.Update(msg)
	cmds = append(cmds, cmd)
	m.newUserModel, cmd = m.newUserModel.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m MainModel) tabBar() string {
	var rendered []string
	for _, s := range tabs {
		style := tabStyle
		if s == m.state || (m.state == common.CreateUserView && s == common.LocalUsersView) {
			style = activeTabStyle
		}
		rendered = append(rendered, style.Render(viewName(s)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m MainModel) View() string {
	var body string
	switch m.state {
	case common.DeliveriesView:
		body = m.deliveriesModel.View()
	case common.InstancesView:
		body = m.instancesModel.View()
	case common.LocalUsersView:
		body = m.localUsersModel.View()
	case common.CreateUserView:
		body = m.newUserModel.View()
	}

	panel := focusedModelStyle.
		Width(m.width).
		Height(m.height - 4).
		MaxHeight(m.height).
		Render(body)

	s := m.headerModel.View() + "\n"
	s += m.tabBar() + "\n"
	s += panel + "\n"
	s += common.HelpStyle.Render(fmt.Sprintf(
		"focused > %s\t\tkeys > tab: next • shift+tab: prev • %s • ctrl-c: exit",
		viewName(m.state), viewCommands(m.state)))
	return s
}

func viewName(state common.SessionState) string {
	switch state {
	case common.DeliveriesView:
		return "delivery queue"
	case common.InstancesView:
		return "instances"
	case common.LocalUsersView:
		return "local users"
	default:
		return "create user"
	}
}

func viewCommands(state common.SessionState) string {
	switch state {
	case common.DeliveriesView:
		return "↑/↓: select • r: retry • x: drop • f: filter • ctrl+r: reload"
	case common.InstancesView:
		return "↑/↓: select • ctrl+r: reload"
	case common.LocalUsersView:
		return "↑/↓: select • n: new user • ctrl+r: reload"
	default:
		return "enter: next • esc: cancel"
	}
}
