package web

import (
	"errors"
	"net/http"

	"github.com/deemkeen/versiond/db"
	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/entity"
	"github.com/deemkeen/versiond/federation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// localActor loads the local actor named by the :id path parameter.
func (s *Server) localActor(c *gin.Context) (*domain.Actor, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, domain.ErrNotFound("User not found", c.Param("id"))
	}
	actor, err := s.store.ReadActorById(c.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) || (err == nil && !actor.IsLocal()) {
		return nil, domain.ErrNotFound("User not found", id.String())
	}
	if err != nil {
		return nil, err
	}
	return actor, nil
}

func (s *Server) writeEntity(c *gin.Context, e entity.Entity) {
	body, err := entity.Encode(e)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, federation.ContentType, body)
}

func (s *Server) HandleUser(c *gin.Context) {
	actor, err := s.localActor(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	user, err := s.renderer.User(c.Request.Context(), actor)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.writeEntity(c, user)
}

// HandleNote serves public and unlisted notes written on this instance.
func (s *Server) HandleNote(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.writeError(c, domain.ErrNotFound("Note not found", c.Param("id")))
		return
	}

	note, err := s.store.ReadNoteById(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		s.writeError(c, domain.ErrNotFound("Note not found", id.String()))
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !s.uris.IsLocal(note.URI) || note.IsReblog() ||
		(note.Visibility != domain.VisibilityPublic && note.Visibility != domain.VisibilityUnlisted) {
		s.writeError(c, domain.ErrNotFound("Note not found", id.String()))
		return
	}

	n, err := s.renderer.Note(ctx, note)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.writeEntity(c, n)
}

func (s *Server) HandleInstance(c *gin.Context) {
	c.JSON(http.StatusOK, s.renderer.Instance(s.conf, s.instanceKey))
}
