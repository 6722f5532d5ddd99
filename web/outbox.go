package web

import (
	"net/http"

	"github.com/deemkeen/versiond/entity"
	"github.com/gin-gonic/gin"
)

const outboxPageSize = 20

// Collection is the Versia paginated collection envelope.
type Collection struct {
	Author   string         `json:"author"`
	First    string         `json:"first"`
	Last     string         `json:"last"`
	Total    int            `json:"total"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
	Items    []*entity.Note `json:"items"`
}

// HandleOutbox lists the most recent public notes of a local actor so that
// remote servers can backfill without following. Only the first page is
// served.
func (s *Server) HandleOutbox(c *gin.Context) {
	ctx := c.Request.Context()
	actor, err := s.localActor(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	notes, err := s.store.ListPublicNotesByAuthor(ctx, actor.Id, outboxPageSize)
	if err != nil {
		s.writeError(c, err)
		return
	}

	items := make([]*entity.Note, 0, len(notes))
	for i := range notes {
		n, err := s.renderer.Note(ctx, &notes[i])
		if err != nil {
			s.writeError(c, err)
			return
		}
		n.Type = entity.TypeNote
		items = append(items, n)
	}

	c.JSON(http.StatusOK, Collection{
		Author: actor.URI,
		First:  actor.OutboxURI,
		Last:   actor.OutboxURI,
		Total:  len(items),
		Items:  items,
	})
}
