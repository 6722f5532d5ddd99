package federation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/deemkeen/versiond/db"
	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/entity"
	"github.com/google/uuid"
)

// entityURI is the entity's uri, or a stable stand-in derived from the
// author and id when the sender left it out.
func entityURI(e entity.Entity, author string) string {
	if uri := e.Common().URI; uri != "" {
		return uri
	}
	return strings.TrimSuffix(author, "/") + "#" + string(e.EntityType()) + "/" + e.Common().ID
}

// noteAuthor loads the author of note for notifications.
func noteAuthor(ctx context.Context, store Store, note *domain.Note) (*domain.Actor, error) {
	return store.ReadActorById(ctx, note.AuthorId)
}

func (p *InboxProcessor) processLike(ctx context.Context, sender *Sender, e entity.Entity) error {
	l := e.(*entity.Like)

	liker, err := p.resolver.ResolveUser(ctx, l.Author)
	if err != nil {
		return err
	}
	note, err := p.resolver.ResolveNote(ctx, l.Liked)
	if err != nil {
		return err
	}

	like := &domain.Like{
		Id:        uuid.New(),
		LikerId:   liker.Id,
		LikedId:   note.Id,
		URI:       entityURI(l, l.Author),
		CreatedAt: createdAt(l.CreatedAt),
	}
	created, err := p.store.CreateLike(ctx, like)
	if err != nil {
		return err
	}
	if err := p.store.RecountNote(ctx, note.Id); err != nil {
		return err
	}
	if !created {
		return nil
	}

	author, err := noteAuthor(ctx, p.store, note)
	if err != nil {
		return err
	}
	return notify(ctx, p.store, domain.NotifyFavourite, author, liker.Id, &note.Id)
}

func (p *InboxProcessor) processShare(ctx context.Context, sender *Sender, e entity.Entity) error {
	s := e.(*entity.Share)

	uri := entityURI(s, s.Author)
	if !sameHost(uri, s.Author) {
		return domain.ErrForbidden("Share URI is not on the author's instance", uri)
	}

	sharer, err := p.resolver.ResolveUser(ctx, s.Author)
	if err != nil {
		return err
	}
	target, err := p.resolver.ResolveNote(ctx, s.Shared)
	if err != nil {
		return err
	}

	_, err = p.store.ReadReblog(ctx, sharer.Id, target.Id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return err
	}

	reblog := &domain.Note{
		Id:         uuid.New(),
		AuthorId:   sharer.Id,
		URI:        uri,
		Visibility: domain.VisibilityPublic,
		ReblogId:   &target.Id,
		CreatedAt:  createdAt(s.CreatedAt),
		UpdatedAt:  time.Now(),
	}
	if err := p.store.UpsertNote(ctx, reblog); err != nil {
		return err
	}
	if err := p.store.RecountNote(ctx, target.Id); err != nil {
		return err
	}
	if err := p.store.RecountActor(ctx, sharer.Id); err != nil {
		return err
	}

	author, err := noteAuthor(ctx, p.store, target)
	if err != nil {
		return err
	}
	return notify(ctx, p.store, domain.NotifyReblog, author, sharer.Id, &target.Id)
}

func (p *InboxProcessor) processReaction(ctx context.Context, sender *Sender, e entity.Entity) error {
	r := e.(*entity.Reaction)

	reactor, err := p.resolver.ResolveUser(ctx, r.Author)
	if err != nil {
		return err
	}
	note, err := p.resolver.ResolveNote(ctx, r.Object)
	if err != nil {
		return err
	}

	reaction := &domain.Reaction{
		Id:        uuid.New(),
		AuthorId:  reactor.Id,
		NoteId:    note.Id,
		URI:       entityURI(r, r.Author),
		CreatedAt: createdAt(r.CreatedAt),
	}

	emoji, err := p.reactionEmoji(ctx, r, reactor)
	if err != nil {
		return err
	}
	if emoji != nil {
		reaction.EmojiId = &emoji.Id
	} else {
		reaction.EmojiText = r.Content
	}
	if err := reaction.Validate(); err != nil {
		return domain.ErrBadRequest("Invalid reaction", err.Error())
	}

	created, err := p.store.CreateReaction(ctx, reaction)
	if err != nil || !created {
		return err
	}

	author, err := noteAuthor(ctx, p.store, note)
	if err != nil {
		return err
	}
	return notify(ctx, p.store, domain.NotifyReaction, author, reactor.Id, &note.Id)
}

// reactionEmoji maps ":shortcode:" content onto a custom emoji, taken from
// the entity's emoji extension or from emojis already known for the
// reactor's instance. Anything else is a text emoji and yields nil.
func (p *InboxProcessor) reactionEmoji(ctx context.Context, r *entity.Reaction, reactor *domain.Actor) (*domain.Emoji, error) {
	content := strings.TrimSpace(r.Content)
	if len(content) < 3 || !strings.HasPrefix(content, ":") || !strings.HasSuffix(content, ":") {
		return nil, nil
	}
	shortcode := strings.Trim(content, ":")

	emojis, err := r.Extensions.CustomEmojis()
	if err != nil {
		return nil, domain.ErrBadRequest("Invalid reaction", err.Error())
	}
	for _, e := range emojis {
		if e.Shortcode() != shortcode {
			continue
		}
		mime, entry, ok := e.URL.First()
		if !ok {
			break
		}
		emoji := &domain.Emoji{
			Id:          uuid.New(),
			Shortcode:   shortcode,
			URL:         entry.Content,
			ContentType: mime,
			InstanceId:  reactor.InstanceId,
		}
		if err := p.store.UpsertEmoji(ctx, emoji); err != nil {
			return nil, err
		}
		return emoji, nil
	}

	emoji, err := p.store.ReadEmoji(ctx, shortcode, reactor.InstanceId)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	return emoji, err
}
