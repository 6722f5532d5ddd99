package federation

import (
	"context"
	"errors"

	"github.com/deemkeen/versiond/db"
	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/entity"
	"github.com/google/uuid"
)

func (p *InboxProcessor) processDelete(ctx context.Context, sender *Sender, e entity.Entity) error {
	d := e.(*entity.Delete)

	var author *domain.Actor
	if d.Author != "" {
		var err error
		if author, err = p.resolver.ResolveUser(ctx, d.Author); err != nil {
			return err
		}
	} else if sender.Instance == nil {
		return domain.ErrBadRequest("Delete without author", d.Deleted)
	}

	var err error
	switch d.DeletedType {
	case entity.TypeNote:
		err = p.deleteNote(ctx, sender, author, d.Deleted)
	case entity.TypeUser:
		err = p.deleteUser(ctx, sender, author, d.Deleted)
	case entity.TypeLike:
		err = p.deleteLike(ctx, sender, author, d.Deleted)
	case entity.TypeShare:
		err = p.deleteShare(ctx, sender, author, d.Deleted)
	default:
		return domain.ErrBadRequest("Cannot delete this type of object", string(d.DeletedType))
	}
	if err != nil {
		return err
	}
	p.resolver.Forget(ctx, d.Deleted)
	return nil
}

// owns reports whether the delete's author, or the signing instance when
// there is no author, owns a row created by ownerId.
func (p *InboxProcessor) owns(ctx context.Context, sender *Sender, author *domain.Actor, ownerId uuid.UUID) (bool, error) {
	if author != nil {
		return author.Id == ownerId, nil
	}
	owner, err := p.store.ReadActorById(ctx, ownerId)
	if err != nil {
		return false, err
	}
	return owner.InstanceId != nil && *owner.InstanceId == sender.Instance.Id, nil
}

func (p *InboxProcessor) deleteNote(ctx context.Context, sender *Sender, author *domain.Actor, uri string) error {
	note, err := p.store.ReadNoteByURI(ctx, uri)
	if errors.Is(err, db.ErrNotFound) || (err == nil && note.IsReblog()) {
		return domain.ErrNotFound("Note not found", uri)
	}
	if err != nil {
		return err
	}
	owned, err := p.owns(ctx, sender, author, note.AuthorId)
	if err != nil {
		return err
	}
	if !owned {
		return domain.ErrNotFound("Note not found", uri)
	}

	if err := p.store.DeleteNote(ctx, note.Id); err != nil {
		return err
	}
	if err := p.store.RecountActor(ctx, note.AuthorId); err != nil {
		return err
	}
	if note.ReplyId != nil {
		if err := p.store.RecountNote(ctx, *note.ReplyId); err != nil && !errors.Is(err, db.ErrNotFound) {
			return err
		}
	}
	p.log.Info("Deleted note", "uri", uri)
	return nil
}

func (p *InboxProcessor) deleteUser(ctx context.Context, sender *Sender, author *domain.Actor, uri string) error {
	target, err := p.store.ReadActorByURI(ctx, uri)
	if errors.Is(err, db.ErrNotFound) {
		return domain.ErrNotFound("User not found", uri)
	}
	if err != nil {
		return err
	}
	if target.IsLocal() {
		return domain.ErrBadRequest("Cannot delete another user's account", uri)
	}
	if author != nil && author.Id != target.Id {
		return domain.ErrBadRequest("Cannot delete another user's account", uri)
	}
	owned, err := p.owns(ctx, sender, author, target.Id)
	if err != nil {
		return err
	}
	if !owned {
		return domain.ErrNotFound("User not found", uri)
	}

	if err := p.store.DeleteActor(ctx, target.Id); err != nil {
		return err
	}
	p.log.Info("Deleted user", "uri", uri)
	return nil
}

func (p *InboxProcessor) deleteLike(ctx context.Context, sender *Sender, author *domain.Actor, uri string) error {
	like, err := p.store.ReadLikeByURI(ctx, uri)
	if errors.Is(err, db.ErrNotFound) {
		return domain.ErrNotFound("Like not found", uri)
	}
	if err != nil {
		return err
	}
	owned, err := p.owns(ctx, sender, author, like.LikerId)
	if err != nil {
		return err
	}
	if !owned {
		return domain.ErrNotFound("Like not found", uri)
	}

	if err := p.store.DeleteLike(ctx, like.Id); err != nil {
		return err
	}
	return p.store.RecountNote(ctx, like.LikedId)
}

func (p *InboxProcessor) deleteShare(ctx context.Context, sender *Sender, author *domain.Actor, uri string) error {
	reblog, err := p.store.ReadNoteByURI(ctx, uri)
	if errors.Is(err, db.ErrNotFound) || (err == nil && !reblog.IsReblog()) {
		return domain.ErrNotFound("Share not found", uri)
	}
	if err != nil {
		return err
	}
	owned, err := p.owns(ctx, sender, author, reblog.AuthorId)
	if err != nil {
		return err
	}
	if !owned {
		return domain.ErrNotFound("Share not found", uri)
	}

	if err := p.store.DeleteNote(ctx, reblog.Id); err != nil {
		return err
	}
	if err := p.store.RecountNote(ctx, *reblog.ReblogId); err != nil {
		return err
	}
	return p.store.RecountActor(ctx, reblog.AuthorId)
}
