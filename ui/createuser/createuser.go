package createuser

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/ui/common"
)

var (
	Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(lipgloss.Color(common.COLOR_MAGENTA)).
		Padding(1, 3).
		Margin(1, 2)
)

const (
	stepUsername = iota
	stepDisplayName
	stepLocked
)

// Model is the form that registers a new local account.
type Model struct {
	create      common.CreateUserFunc
	Username    textinput.Model
	DisplayName textinput.Model
	Locked      bool
	Step        int
	Submitting  bool
	Err         error
}

type createFailedMsg struct {
	err error
}

func InitialModel(create common.CreateUserFunc) Model {
	username := textinput.New()
	username.Placeholder = "alice"
	username.Focus()
	username.CharLimit = 30
	username.Width = 30

	displayName := textinput.New()
	displayName.Placeholder = "Alice Liddell"
	displayName.CharLimit = 64
	displayName.Width = 50

	return Model{create: create, Username: username, DisplayName: displayName}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Reset clears the form for the next account.
func (m Model) Reset() Model {
	return InitialModel(m.create)
}

func (m Model) submit() tea.Cmd {
	create := m.create
	username := strings.TrimSpace(m.Username.Value())
	displayName := strings.TrimSpace(m.DisplayName.Value())
	locked := m.Locked
	return func() tea.Msg {
		ctx, cancel := common.QueryContext()
		defer cancel()
		actor, err := create(ctx, username, displayName, locked)
		if err != nil {
			return createFailedMsg{err: err}
		}
		return common.UserCreatedMsg{Actor: actor}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case createFailedMsg:
		m.Submitting = false
		m.Err = msg.err
		m.Step = stepUsername
		m.Username.Focus()
		m.DisplayName.Blur()
		return m, nil

	case tea.KeyMsg:
		if m.Submitting {
			return m, nil
		}
		switch msg.String() {
		case "esc":
			return m.Reset(), func() tea.Msg { return common.LocalUsersView }
		case "enter":
			m.Err = nil
			switch m.Step {
			case stepUsername:
				if strings.TrimSpace(m.Username.Value()) == "" {
					m.Err = fmt.Errorf("username is required")
					return m, nil
				}
				m.Step = stepDisplayName
				m.Username.Blur()
				m.DisplayName.Focus()
				return m, nil
			case stepDisplayName:
				m.Step = stepLocked
				m.DisplayName.Blur()
				return m, nil
			case stepLocked:
				m.Submitting = true
				return m, m.submit()
			}
		case " ", "y", "n":
			if m.Step == stepLocked {
				switch msg.String() {
				case " ":
					m.Locked = !m.Locked
				case "y":
					m.Locked = true
				case "n":
					m.Locked = false
				}
				return m, nil
			}
		}
	}

	switch m.Step {
	case stepUsername:
		m.Username, cmd = m.Username.Update(msg)
	case stepDisplayName:
		m.DisplayName, cmd = m.DisplayName.Update(msg)
	}
	return m, cmd
}

func errorText(err error) string {
	if apiErr, ok := domain.AsApiError(err); ok {
		if apiErr.Details != "" {
			return fmt.Sprintf("%s: %s", apiErr.Message, apiErr.Details)
		}
		return apiErr.Message
	}
	return err.Error()
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString("Create a local account\n\n")
	s.WriteString("Username (a-z, 0-9, _ and -):\n")
	s.WriteString(m.Username.View())
	s.WriteString("\n\n")

	if m.Step >= stepDisplayName {
		s.WriteString("Display name (optional):\n")
		s.WriteString(m.DisplayName.View())
		s.WriteString("\n\n")
	}
	if m.Step >= stepLocked {
		answer := "no"
		if m.Locked {
			answer = "yes"
		}
		s.WriteString(fmt.Sprintf("Approve followers manually? %s  (space to toggle)\n\n", answer))
	}

	switch {
	case m.Submitting:
		s.WriteString(common.StatusStyle.Render("Creating..."))
	case m.Err != nil:
		s.WriteString(common.ErrorStyle.Render(errorText(m.Err)))
	default:
		s.WriteString(common.HelpStyle.Render("enter: continue • esc: cancel"))
	}

	return Style.Render(s.String())
}
