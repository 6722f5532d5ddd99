package middleware

import (
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/deemkeen/versiond/util"
)

// AdminAuthMiddleware lets only configured admin keys through to the console.
func AdminAuthMiddleware(conf *util.AppConfig) wish.Middleware {
	logger := util.NewLogger("SSH")

	return func(h ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			key := s.PublicKey()
			if key == nil || !util.IsAdminKey(key, conf.Conf.AdminKeys) {
				logger.Warn("Rejected console login", "user", s.User(), "remote", s.RemoteAddr().String())
				wish.Fatalln(s, "This key is not allowed to administer this instance.")
				return
			}

			logger.Info("Console login", "user", s.User(), "key", util.PkToHash(util.PublicKeyToString(key)))
			h(s)
		}
	}
}

// PublicKeyHandler accepts every key at the handshake so that rejected
// users see a message instead of a bare auth failure.
func PublicKeyHandler(ssh.Context, ssh.PublicKey) bool {
	return true
}
