package federation

import (
	"context"
	"errors"

	"github.com/deemkeen/versiond/db"
	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/entity"
)

func (p *InboxProcessor) processNote(ctx context.Context, sender *Sender, e entity.Entity) error {
	n := e.(*entity.Note)

	if p.uris.IsLocal(n.URI) {
		return domain.ErrForbidden("Local notes cannot be changed remotely", n.URI)
	}
	if !sameHost(n.URI, n.Author) {
		return domain.ErrForbidden("Note URI is not on the author's instance", n.URI)
	}
	if p.filters.MatchNote(n.Content.Text(), n.Subject) {
		p.log.Info("Dropping note matching a filter", "uri", n.URI)
		return nil
	}

	author, err := p.resolver.ResolveUser(ctx, n.Author)
	if err != nil {
		return err
	}

	note, err := p.resolver.StoreNote(ctx, n, author)
	if errors.Is(err, db.ErrNoteOwner) {
		return domain.ErrForbidden("Note belongs to another author", n.URI)
	}
	if err != nil {
		return err
	}

	for _, id := range note.MentionIds {
		mentioned, err := p.store.ReadActorById(ctx, id)
		if err != nil {
			return err
		}
		if err := notify(ctx, p.store, domain.NotifyMention, mentioned, author.Id, &note.Id); err != nil {
			return err
		}
	}

	p.log.Info("Stored note", "uri", note.URI, "author", author.URI)
	return nil
}

func (p *InboxProcessor) processUser(ctx context.Context, sender *Sender, e entity.Entity) error {
	u := e.(*entity.User)

	if p.filters.MatchUser(u.Username, u.DisplayName, u.Bio.Text()) {
		p.log.Info("Dropping user matching a filter", "uri", u.URI)
		return nil
	}

	actor, err := p.resolver.StoreUser(ctx, u)
	if err != nil {
		return err
	}
	p.log.Info("Stored user", "uri", actor.URI)
	return nil
}
