package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/deemkeen/versiond/db"
	"github.com/gin-gonic/gin"
)

type WebfingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href"`
}

type WebfingerResponse struct {
	Subject string          `json:"subject"`
	Aliases []string        `json:"aliases,omitempty"`
	Links   []WebfingerLink `json:"links"`
}

// ParseAcct splits "acct:user@host" into its parts.
func ParseAcct(resource string) (username string, host string, ok bool) {
	rest, found := strings.CutPrefix(resource, "acct:")
	if !found {
		return "", "", false
	}
	username, host, found = strings.Cut(rest, "@")
	if !found || username == "" || host == "" {
		return "", "", false
	}
	return strings.ToLower(username), strings.ToLower(host), true
}

func (s *Server) HandleWebfinger(c *gin.Context) {
	username, host, ok := ParseAcct(c.Query("resource"))
	if !ok || host != strings.ToLower(s.conf.Conf.Domain) {
		c.JSON(http.StatusNotFound, GetWebFingerNotFound())
		return
	}

	actor, err := s.store.ReadLocalActorByUsername(c.Request.Context(), username)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, GetWebFingerNotFound())
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("Content-Type", "application/jrd+json; charset=utf-8")
	c.JSON(http.StatusOK, WebfingerResponse{
		Subject: "acct:" + actor.Username + "@" + s.conf.Conf.Domain,
		Aliases: []string{actor.URI},
		Links: []WebfingerLink{
			{Rel: "self", Type: "application/json", Href: actor.URI},
			{Rel: "alternate", Type: "application/rss+xml", Href: s.uris.Feed(actor.Id)},
		},
	})
}

func GetWebFingerNotFound() gin.H {
	return gin.H{"detail": "Not Found"}
}
