package middleware

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/deemkeen/versiond/ui"
	"github.com/deemkeen/versiond/ui/common"
	"github.com/deemkeen/versiond/util"
	"github.com/muesli/termenv"
	gossh "golang.org/x/crypto/ssh"
)

// MainTui starts the admin console for sessions that passed AdminAuthMiddleware.
func MainTui(store common.Store, create common.CreateUserFunc, conf *util.AppConfig) wish.Middleware {
	teaHandler := func(s ssh.Session) *tea.Program {
		pty, _, active := s.Pty()
		if !active {
			wish.Println(s, "no active terminal, skipping")
			return nil
		}

		fingerprint := gossh.FingerprintSHA256(s.PublicKey())
		m := ui.NewModel(store, create, conf.Conf.Domain, fingerprint, pty.Window.Width, pty.Window.Height)
		return tea.NewProgram(m, tea.WithInput(s), tea.WithOutput(s), tea.WithAltScreen())
	}
	return bm.MiddlewareWithProgramHandler(teaHandler, termenv.ANSI256)
}
