package federation

import (
	"context"
	"time"

	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/entity"
	"github.com/google/uuid"
)

type handlerFunc func(ctx context.Context, sender *Sender, e entity.Entity) error

// registry is the closed set of inbound entity types this server applies.
func (p *InboxProcessor) registry() map[entity.Type]handlerFunc {
	return map[entity.Type]handlerFunc{
		entity.TypeNote:         p.processNote,
		entity.TypeUser:         p.processUser,
		entity.TypeFollow:       p.processFollow,
		entity.TypeFollowAccept: p.processFollowAccept,
		entity.TypeFollowReject: p.processFollowReject,
		entity.TypeUnfollow:     p.processUnfollow,
		entity.TypeLike:         p.processLike,
		entity.TypeShare:        p.processShare,
		entity.TypeReaction:     p.processReaction,
		entity.TypeDelete:       p.processDelete,
	}
}

// dispatch does not catch processor errors; they surface to the caller.
func (p *InboxProcessor) dispatch(ctx context.Context, sender *Sender, e entity.Entity) error {
	handler, ok := p.handlers[e.EntityType()]
	if !ok {
		return domain.ErrBadRequest("Unknown entity type", string(e.EntityType()))
	}
	p.log.Debug("Dispatching entity", "type", e.EntityType(), "id", e.Common().ID)
	return handler(ctx, sender, e)
}

// notify is a no-op for remote recipients. Duplicates are ignored by the store.
func notify(ctx context.Context, store Store, kind domain.NotificationType, recipient *domain.Actor, from uuid.UUID, noteId *uuid.UUID) error {
	if recipient == nil || !recipient.IsLocal() || recipient.Id == from {
		return nil
	}
	return store.CreateNotification(ctx, &domain.Notification{
		Id:         uuid.New(),
		Type:       kind,
		AccountId:  recipient.Id,
		NotifiedId: from,
		NoteId:     noteId,
		CreatedAt:  time.Now(),
	})
}
