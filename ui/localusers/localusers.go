package localusers

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/ui/common"
)

// Model lists the accounts hosted on this instance.
type Model struct {
	store    common.Store
	Users    []domain.Actor
	Selected int
	Width    int
	Height   int
	Status   string
	Error    string
}

func InitialModel(store common.Store, width, height int) Model {
	return Model{store: store, Width: width, Height: height}
}

func (m Model) Init() tea.Cmd {
	return loadLocalUsers(m.store)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case usersLoadedMsg:
		if msg.err != nil {
			m.Error = msg.err.Error()
			return m, nil
		}
		m.Users = msg.users
		if m.Selected >= len(m.Users) {
			m.Selected = max(0, len(m.Users)-1)
		}
		return m, nil

	case common.UserCreatedMsg:
		m.Status = fmt.Sprintf("Created @%s", msg.Actor.Username)
		m.Error = ""
		return m, tea.Batch(loadLocalUsers(m.store), clearStatusAfter(3*time.Second))

	case clearStatusMsg:
		m.Status = ""
		m.Error = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.Selected > 0 {
				m.Selected--
			}
		case "down", "j":
			if m.Selected < len(m.Users)-1 {
				m.Selected++
			}
		case "ctrl+r":
			return m, loadLocalUsers(m.store)
		case "n":
			return m, func() tea.Msg { return common.CreateUserView }
		}
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("local users (%d)", len(m.Users))))
	s.WriteString("\n")

	if len(m.Users) == 0 {
		s.WriteString(common.EmptyStyle.Render("No local users yet. Press n to create one."))
		s.WriteString("\n")
	}

	start, end := common.Window(len(m.Users), m.Selected, common.VisibleRows(m.Height))
	for i := start; i < end; i++ {
		user := m.Users[i]
		prefix, style := "  ", common.RowStyle
		if i == m.Selected {
			prefix, style = "→ ", common.SelectedStyle
		}
		locked := ""
		if user.Locked {
			locked = " [locked]"
		}
		line := fmt.Sprintf("%s@%-20s %4d followers  %4d following  %5d notes%s",
			prefix, user.Username, user.FollowerCount, user.FollowingCount, user.StatusCount, locked)
		s.WriteString(style.Render(line))
		s.WriteString("\n")
	}

	if m.Status != "" {
		s.WriteString(common.StatusStyle.Render(m.Status))
		s.WriteString("\n")
	}
	if m.Error != "" {
		s.WriteString(common.ErrorStyle.Render(m.Error))
		s.WriteString("\n")
	}
	return s.String()
}

type usersLoadedMsg struct {
	users []domain.Actor
	err   error
}

// clearStatusMsg is sent after a delay to clear status/error messages
type clearStatusMsg struct{}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func loadLocalUsers(store common.Store) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := common.QueryContext()
		defer cancel()
		users, err := store.ListLocalActors(ctx)
		return usersLoadedMsg{users: users, err: err}
	}
}
