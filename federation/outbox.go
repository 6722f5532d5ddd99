package federation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/versiond/db"
	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/entity"
	"github.com/deemkeen/versiond/util"
	"github.com/google/uuid"
)

// Outbox applies local mutations and enqueues their entities for delivery:
// one job per remote follower of the sender, plus one for each remote
// target not already covered.
type Outbox struct {
	store  Store
	render *Renderer
	uris   URIs
	log    *log.Logger
}

func NewOutbox(store Store, uris URIs) *Outbox {
	return &Outbox{
		store:  store,
		render: NewRenderer(store, uris),
		uris:   uris,
		log:    util.NewLogger("Outbox"),
	}
}

func (o *Outbox) Renderer() *Renderer {
	return o.render
}

func (o *Outbox) newBase(e entity.Entity, uri string) {
	base := e.Common()
	base.ID = uuid.New().String()
	base.URI = uri
	base.CreatedAt = time.Now().UTC()
}

// enqueue stores one delivery job per recipient and returns their count.
func (o *Outbox) enqueue(ctx context.Context, sender *domain.Actor, e entity.Entity, withFollowers bool, targets ...*domain.Actor) (int, error) {
	if !sender.IsLocal() {
		return 0, domain.ErrInternal("Only local actors can federate", sender.URI)
	}

	body, err := entity.Encode(e)
	if err != nil {
		return 0, err
	}

	seen := map[uuid.UUID]bool{sender.Id: true}
	var recipients []uuid.UUID

	if withFollowers {
		followers, err := o.store.ListRemoteFollowers(ctx, sender.Id)
		if err != nil {
			return 0, err
		}
		for _, f := range followers {
			if !seen[f.Id] {
				seen[f.Id] = true
				recipients = append(recipients, f.Id)
			}
		}
	}
	for _, t := range targets {
		if t != nil && t.IsRemote() && !seen[t.Id] {
			seen[t.Id] = true
			recipients = append(recipients, t.Id)
		}
	}

	now := time.Now()
	for _, id := range recipients {
		job := &domain.DeliveryJob{
			Id:            uuid.New(),
			Entity:        string(body),
			EntityType:    string(e.EntityType()),
			SenderId:      sender.Id,
			RecipientId:   id,
			Status:        domain.DeliveryPending,
			NextAttemptAt: now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := o.store.EnqueueDeliveryJob(ctx, job); err != nil {
			return 0, err
		}
	}

	if len(recipients) > 0 {
		o.log.Info("Enqueued deliveries", "type", e.EntityType(), "sender", sender.Username, "recipients", len(recipients))
	}
	return len(recipients), nil
}

func (o *Outbox) actors(ctx context.Context, ids []uuid.UUID) ([]*domain.Actor, error) {
	out := make([]*domain.Actor, 0, len(ids))
	for _, id := range ids {
		a, err := o.store.ReadActorById(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// PublishNote stores a note written by a local actor and federates it.
func (o *Outbox) PublishNote(ctx context.Context, note *domain.Note) error {
	author, err := o.store.ReadActorById(ctx, note.AuthorId)
	if err != nil {
		return err
	}
	if !author.IsLocal() {
		return domain.ErrInternal("Only local actors can federate", author.URI)
	}
	if note.Id == uuid.Nil {
		note.Id = uuid.New()
	}
	if note.URI == "" {
		note.URI = o.uris.Note(note.Id)
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	note.UpdatedAt = time.Now()

	if err := o.store.UpsertNote(ctx, note); err != nil {
		return err
	}
	if err := o.store.RecountActor(ctx, author.Id); err != nil {
		return err
	}
	if note.ReplyId != nil {
		if err := o.store.RecountNote(ctx, *note.ReplyId); err != nil {
			return err
		}
	}

	mentioned, err := o.actors(ctx, note.MentionIds)
	if err != nil {
		return err
	}
	for _, m := range mentioned {
		if err := notify(ctx, o.store, domain.NotifyMention, m, author.Id, &note.Id); err != nil {
			return err
		}
	}

	n, err := o.render.Note(ctx, note)
	if err != nil {
		return err
	}
	_, err = o.enqueue(ctx, author, n, note.Visibility != domain.VisibilityDirect, mentioned...)
	return err
}

// DeleteNote removes a local note and federates the Delete.
func (o *Outbox) DeleteNote(ctx context.Context, note *domain.Note) error {
	author, err := o.store.ReadActorById(ctx, note.AuthorId)
	if err != nil {
		return err
	}
	mentioned, err := o.actors(ctx, note.MentionIds)
	if err != nil {
		return err
	}

	if err := o.store.DeleteNote(ctx, note.Id); err != nil {
		return err
	}
	if err := o.store.RecountActor(ctx, author.Id); err != nil {
		return err
	}

	d := &entity.Delete{Author: author.URI, DeletedType: entity.TypeNote, Deleted: note.URI}
	o.newBase(d, "")
	_, err = o.enqueue(ctx, author, d, note.Visibility != domain.VisibilityDirect, mentioned...)
	return err
}

// Follow starts following followee. Remote follows wait in REQUESTED
// until the remote side accepts.
func (o *Outbox) Follow(ctx context.Context, follower, followee *domain.Actor) error {
	if followee.IsLocal() {
		changed, err := applyFollow(ctx, o.store, follower, followee)
		if err != nil || !changed {
			return err
		}
		kind := domain.NotifyFollow
		if followee.Locked {
			kind = domain.NotifyFollowRequest
		}
		return notify(ctx, o.store, kind, followee, follower.Id, nil)
	}

	rel, err := loadRelationship(ctx, o.store, follower.Id, followee.Id)
	if err != nil {
		return err
	}
	if rel.Following || rel.Requested {
		return nil
	}
	rel.Requested = true
	if err := saveRelationship(ctx, o.store, rel); err != nil {
		return err
	}

	f := &entity.Follow{Author: follower.URI, Followee: followee.URI}
	o.newBase(f, "")
	_, err = o.enqueue(ctx, follower, f, true, followee)
	return err
}

func (o *Outbox) Unfollow(ctx context.Context, follower, followee *domain.Actor) error {
	changed, err := removeFollow(ctx, o.store, follower, followee)
	if err != nil || !changed || followee.IsLocal() {
		return err
	}

	u := &entity.Unfollow{Author: follower.URI, Followee: followee.URI}
	o.newBase(u, "")
	_, err = o.enqueue(ctx, follower, u, true, followee)
	return err
}

func (o *Outbox) AcceptFollowRequest(ctx context.Context, followee, follower *domain.Actor) error {
	return o.answerFollowRequest(ctx, followee, follower, true)
}

func (o *Outbox) RejectFollowRequest(ctx context.Context, followee, follower *domain.Actor) error {
	return o.answerFollowRequest(ctx, followee, follower, false)
}

func (o *Outbox) answerFollowRequest(ctx context.Context, followee, follower *domain.Actor, accept bool) error {
	changed, err := answerFollow(ctx, o.store, follower, followee, accept)
	if err != nil || !changed {
		return err
	}
	if follower.IsLocal() {
		return nil
	}
	return o.sendFollowAnswer(ctx, followee, follower, accept)
}

// sendFollowAnswer is addressed to the follower only.
func (o *Outbox) sendFollowAnswer(ctx context.Context, followee, follower *domain.Actor, accept bool) error {
	var e entity.Entity
	if accept {
		e = &entity.FollowAccept{Author: followee.URI, Follower: follower.URI}
	} else {
		e = &entity.FollowReject{Author: followee.URI, Follower: follower.URI}
	}
	o.newBase(e, "")
	_, err := o.enqueue(ctx, followee, e, false, follower)
	return err
}

func (o *Outbox) Like(ctx context.Context, liker *domain.Actor, note *domain.Note) error {
	id := uuid.New()
	like := &domain.Like{Id: id, LikerId: liker.Id, LikedId: note.Id, URI: o.uris.Like(id), CreatedAt: time.Now()}
	created, err := o.store.CreateLike(ctx, like)
	if err != nil || !created {
		return err
	}
	if err := o.store.RecountNote(ctx, note.Id); err != nil {
		return err
	}

	author, err := noteAuthor(ctx, o.store, note)
	if err != nil {
		return err
	}
	if err := notify(ctx, o.store, domain.NotifyFavourite, author, liker.Id, &note.Id); err != nil {
		return err
	}

	l := &entity.Like{Author: liker.URI, Liked: note.URI}
	o.newBase(l, like.URI)
	l.ID = id.String()
	_, err = o.enqueue(ctx, liker, l, true, author)
	return err
}

func (o *Outbox) Unlike(ctx context.Context, liker *domain.Actor, note *domain.Note) error {
	like, err := o.store.ReadLike(ctx, liker.Id, note.Id)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := o.store.DeleteLike(ctx, like.Id); err != nil {
		return err
	}
	if err := o.store.RecountNote(ctx, note.Id); err != nil {
		return err
	}

	author, err := noteAuthor(ctx, o.store, note)
	if err != nil {
		return err
	}
	d := &entity.Delete{Author: liker.URI, DeletedType: entity.TypeLike, Deleted: like.URI}
	o.newBase(d, "")
	_, err = o.enqueue(ctx, liker, d, true, author)
	return err
}

// Reblog returns the existing reblog when there already is one.
func (o *Outbox) Reblog(ctx context.Context, actor *domain.Actor, note *domain.Note) (*domain.Note, error) {
	existing, err := o.store.ReadReblog(ctx, actor.Id, note.Id)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	id := uuid.New()
	reblog := &domain.Note{
		Id:         id,
		AuthorId:   actor.Id,
		URI:        o.uris.Share(id),
		Visibility: domain.VisibilityPublic,
		ReblogId:   &note.Id,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := o.store.UpsertNote(ctx, reblog); err != nil {
		return nil, err
	}
	if err := o.store.RecountNote(ctx, note.Id); err != nil {
		return nil, err
	}
	if err := o.store.RecountActor(ctx, actor.Id); err != nil {
		return nil, err
	}

	author, err := noteAuthor(ctx, o.store, note)
	if err != nil {
		return nil, err
	}
	if err := notify(ctx, o.store, domain.NotifyReblog, author, actor.Id, &note.Id); err != nil {
		return nil, err
	}

	s := &entity.Share{Author: actor.URI, Shared: note.URI}
	o.newBase(s, reblog.URI)
	s.ID = id.String()
	if _, err := o.enqueue(ctx, actor, s, true, author); err != nil {
		return nil, err
	}
	return reblog, nil
}

func (o *Outbox) Unreblog(ctx context.Context, actor *domain.Actor, note *domain.Note) error {
	reblog, err := o.store.ReadReblog(ctx, actor.Id, note.Id)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := o.store.DeleteNote(ctx, reblog.Id); err != nil {
		return err
	}
	if err := o.store.RecountNote(ctx, note.Id); err != nil {
		return err
	}
	if err := o.store.RecountActor(ctx, actor.Id); err != nil {
		return err
	}

	author, err := noteAuthor(ctx, o.store, note)
	if err != nil {
		return err
	}
	d := &entity.Delete{Author: actor.URI, DeletedType: entity.TypeShare, Deleted: reblog.URI}
	o.newBase(d, "")
	_, err = o.enqueue(ctx, actor, d, true, author)
	return err
}

// React adds a reaction. content is a text emoji or ":shortcode:" naming a
// local custom emoji.
func (o *Outbox) React(ctx context.Context, actor *domain.Actor, note *domain.Note, content string) error {
	reaction, emoji, err := o.reaction(ctx, actor, note, content)
	if err != nil {
		return err
	}
	if err := reaction.Validate(); err != nil {
		return domain.ErrBadRequest("Invalid reaction", err.Error())
	}

	created, err := o.store.CreateReaction(ctx, reaction)
	if err != nil || !created {
		return err
	}

	author, err := noteAuthor(ctx, o.store, note)
	if err != nil {
		return err
	}
	if err := notify(ctx, o.store, domain.NotifyReaction, author, actor.Id, &note.Id); err != nil {
		return err
	}

	r := &entity.Reaction{Author: actor.URI, Object: note.URI, Content: content}
	o.newBase(r, reaction.URI)
	r.ID = reaction.Id.String()
	if emoji != nil {
		if err := r.Extensions.SetCustomEmojis([]entity.CustomEmoji{customEmoji(emoji)}); err != nil {
			return err
		}
	}
	_, err = o.enqueue(ctx, actor, r, true, author)
	return err
}

func (o *Outbox) Unreact(ctx context.Context, actor *domain.Actor, note *domain.Note, content string) error {
	want, _, err := o.reaction(ctx, actor, note, content)
	if err != nil {
		return err
	}
	reaction, err := o.store.ReadReaction(ctx, actor.Id, note.Id, want.EmojiId, want.EmojiText)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := o.store.DeleteReaction(ctx, reaction.Id); err != nil {
		return err
	}

	author, err := noteAuthor(ctx, o.store, note)
	if err != nil {
		return err
	}
	d := &entity.Delete{Author: actor.URI, DeletedType: entity.TypeReaction, Deleted: reaction.URI}
	o.newBase(d, "")
	_, err = o.enqueue(ctx, actor, d, true, author)
	return err
}

func (o *Outbox) reaction(ctx context.Context, actor *domain.Actor, note *domain.Note, content string) (*domain.Reaction, *domain.Emoji, error) {
	id := uuid.New()
	reaction := &domain.Reaction{
		Id:        id,
		AuthorId:  actor.Id,
		NoteId:    note.Id,
		URI:       o.uris.Reaction(id),
		CreatedAt: time.Now(),
	}

	content = strings.TrimSpace(content)
	if len(content) > 2 && strings.HasPrefix(content, ":") && strings.HasSuffix(content, ":") {
		emoji, err := o.store.ReadEmoji(ctx, strings.Trim(content, ":"), nil)
		if err == nil {
			reaction.EmojiId = &emoji.Id
			return reaction, emoji, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, nil, err
		}
	}
	reaction.EmojiText = content
	return reaction, nil, nil
}

// UpdateProfile stores a local actor and federates the new profile.
func (o *Outbox) UpdateProfile(ctx context.Context, actor *domain.Actor) error {
	actor.UpdatedAt = time.Now()
	if err := o.store.UpsertActor(ctx, actor); err != nil {
		return err
	}
	u, err := o.render.User(ctx, actor)
	if err != nil {
		return err
	}
	_, err = o.enqueue(ctx, actor, u, true)
	return err
}
