package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/util"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/gorilla/feeds"
)

const feedSize = 50

// GetRSS renders the latest public notes of a local actor.
func GetRSS(actor *domain.Actor, notes []domain.Note, link string, domainName string) (string, error) {
	name := actor.DisplayName
	if name == "" {
		name = actor.Username
	}
	email := fmt.Sprintf("%s@%s", actor.Username, domainName)

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s (@%s@%s)", name, actor.Username, domainName),
		Link:        &feeds.Link{Href: link},
		Description: fmt.Sprintf("Public notes of %s", name),
		Author:      &feeds.Author{Name: name, Email: email},
		Created:     actor.CreatedAt,
	}

	var feedItems []*feeds.Item
	for _, note := range notes {
		title := note.Subject
		if title == "" {
			title = note.CreatedAt.Format(util.DateTimeFormat())
		}
		feedItems = append(feedItems,
			&feeds.Item{
				Id:      note.URI,
				Title:   title,
				Link:    &feeds.Link{Href: note.URI},
				Content: note.Content,
				Author:  &feeds.Author{Name: name, Email: email},
				Created: note.CreatedAt,
			})
	}
	if len(notes) > 0 {
		feed.Updated = notes[0].CreatedAt
	} else {
		feed.Updated = time.Now()
	}

	feed.Items = feedItems
	return feed.ToRss()
}

func (s *Server) HandleFeed(c *gin.Context) {
	actor, err := s.localActor(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	notes, err := s.store.ListPublicNotesByAuthor(c.Request.Context(), actor.Id, feedSize)
	if err != nil {
		s.writeError(c, err)
		return
	}

	rss, err := GetRSS(actor, notes, s.uris.Feed(actor.Id), s.conf.Conf.Domain)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Render(http.StatusOK, render.String{Format: rss})
}
