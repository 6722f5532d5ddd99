package federation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/versiond/db"
	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/entity"
	"github.com/deemkeen/versiond/util"
	"github.com/google/uuid"
)

// MaxResolveDepth caps how far reply and quote chains are followed when a
// note is resolved. Deeper targets are left unlinked.
const MaxResolveDepth = 20

// Resolver turns URIs into stored records, fetching remote copies on first
// use. It is the only writer of remote actors, instances and remote notes.
type Resolver struct {
	store   Store
	fetcher Fetcher
	cache   FetchCache
	uris    URIs
	bridged bool
	log     *log.Logger
}

// NewResolver wires a resolver. cache may be nil. bridged enables the
// fallback to the bridge for hosts that do not speak Versia.
func NewResolver(store Store, fetcher Fetcher, cache FetchCache, uris URIs, bridged bool) *Resolver {
	return &Resolver{
		store:   store,
		fetcher: fetcher,
		cache:   cache,
		uris:    uris,
		bridged: bridged,
		log:     util.NewLogger("Resolver"),
	}
}

func (r *Resolver) fetch(ctx context.Context, uri string, bridged bool) ([]byte, error) {
	if r.cache != nil {
		if body, ok := r.cache.Get(ctx, uri); ok {
			return body, nil
		}
	}

	var body []byte
	var err error
	if bridged {
		body, err = r.fetcher.FetchBridged(ctx, uri)
	} else {
		body, err = r.fetcher.Fetch(ctx, uri)
	}
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(ctx, uri, body)
	}
	return body, nil
}

// Forget drops the cached copy of uri.
func (r *Resolver) Forget(ctx context.Context, uri string) {
	if r.cache != nil {
		r.cache.Forget(ctx, uri)
	}
}

// ResolveInstance returns the instance for host, fetching its metadata
// when it is not known yet.
func (r *Resolver) ResolveInstance(ctx context.Context, host string) (*domain.Instance, error) {
	host = normalizeHost(host)
	if host == "" {
		return nil, domain.ErrBadRequest("Invalid host", "")
	}
	if host == r.uris.Domain {
		return nil, domain.ErrInternal("Local instance resolved as remote", host)
	}

	instance, err := r.store.ReadInstanceByHost(ctx, host)
	if err == nil {
		return instance, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	instance = &domain.Instance{Id: uuid.New(), Host: host, Name: host, CreatedAt: time.Now()}

	body, err := r.fetch(ctx, "https://"+host+"/.well-known/versia", false)
	if err == nil {
		var meta entity.InstanceMetadata
		if jsonErr := json.Unmarshal(body, &meta); jsonErr != nil || meta.Type != entity.TypeInstanceMetadata {
			err = errors.New("invalid instance metadata")
		} else {
			instance.Protocol = domain.ProtocolVersia
			instance.Name = meta.Name
			instance.Software = meta.Software.Name + " " + meta.Software.Version
			instance.PublicKey = meta.PublicKey.Key
			instance.SharedInbox = meta.SharedInbox
		}
	}
	if err != nil {
		if !r.bridged {
			r.log.Warn("Failed to fetch instance metadata", "host", host, "err", err)
			return nil, domain.ErrNotFound("Instance not found", host)
		}
		r.log.Info("Instance does not speak Versia, using bridge", "host", host)
		instance.Protocol = domain.ProtocolBridged
	}

	if err := r.store.UpsertInstance(ctx, instance); err != nil {
		return nil, err
	}
	r.log.Info("Resolved instance", "host", host, "protocol", instance.Protocol)
	return instance, nil
}

// ResolveUser returns the actor behind uri.
func (r *Resolver) ResolveUser(ctx context.Context, uri string) (*domain.Actor, error) {
	actor, err := r.store.ReadActorByURI(ctx, uri)
	if err == nil {
		return actor, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	if r.uris.IsLocal(uri) {
		kind, id, parseErr := r.uris.ParseLocal(uri)
		if parseErr != nil || kind != "users" {
			return nil, domain.ErrInternal("Malformed local user URI", uri)
		}
		actor, err := r.store.ReadActorById(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			return nil, domain.ErrNotFound("User not found", uri)
		}
		return actor, err
	}

	instance, err := r.ResolveInstance(ctx, hostOf(uri))
	if err != nil {
		return nil, err
	}

	body, err := r.fetch(ctx, uri, instance.Protocol == domain.ProtocolBridged)
	if err != nil {
		r.log.Warn("Failed to fetch user", "uri", uri, "err", err)
		return nil, domain.ErrNotFound("User not found", uri)
	}

	e, err := entity.Decode(body)
	if err != nil {
		r.log.Warn("Fetched user is invalid", "uri", uri, "err", err)
		return nil, domain.ErrNotFound("User could not be resolved", uri)
	}
	user, ok := e.(*entity.User)
	if !ok || hostOf(user.URI) != instance.Host {
		return nil, domain.ErrNotFound("User could not be resolved", uri)
	}
	return r.StoreUser(ctx, user)
}

// StoreUser upserts a remote user entity by URI.
func (r *Resolver) StoreUser(ctx context.Context, u *entity.User) (*domain.Actor, error) {
	if r.uris.IsLocal(u.URI) {
		return nil, domain.ErrForbidden("Local users cannot be updated remotely", u.URI)
	}
	instance, err := r.ResolveInstance(ctx, hostOf(u.URI))
	if err != nil {
		return nil, err
	}

	actor := &domain.Actor{
		Id:           uuid.New(),
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		URI:          u.URI,
		InstanceId:   &instance.Id,
		PublicKey:    u.PublicKey.Key,
		Locked:       u.ManuallyApprovesFollowers,
		Indexable:    u.Indexable,
		InboxURI:     u.Inbox,
		OutboxURI:    u.Collections.Outbox,
		FollowersURI: u.Collections.Followers,
		FollowingURI: u.Collections.Following,
		CreatedAt:    createdAt(u.CreatedAt),
		UpdatedAt:    time.Now(),
	}
	_, actor.Bio = u.Bio.Preferred()
	if _, avatar, ok := u.Avatar.First(); ok {
		actor.AvatarURL = avatar.Content
	}
	if _, header, ok := u.Header.First(); ok {
		actor.HeaderURL = header.Content
	}

	if actor.EmojiIds, err = r.storeEmojis(ctx, u.Extensions, &instance.Id); err != nil {
		return nil, err
	}

	if err := r.store.UpsertActor(ctx, actor); err != nil {
		return nil, err
	}
	return actor, nil
}

// ResolveNote returns the note behind uri.
func (r *Resolver) ResolveNote(ctx context.Context, uri string) (*domain.Note, error) {
	return r.resolveNote(ctx, uri, 0)
}

func (r *Resolver) resolveNote(ctx context.Context, uri string, depth int) (*domain.Note, error) {
	note, err := r.store.ReadNoteByURI(ctx, uri)
	if err == nil {
		return note, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	if r.uris.IsLocal(uri) {
		kind, id, parseErr := r.uris.ParseLocal(uri)
		if parseErr != nil || kind != "notes" {
			return nil, domain.ErrInternal("Malformed local note URI", uri)
		}
		note, err := r.store.ReadNoteById(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			return nil, domain.ErrNotFound("Note not found", uri)
		}
		return note, err
	}

	instance, err := r.ResolveInstance(ctx, hostOf(uri))
	if err != nil {
		return nil, err
	}

	body, err := r.fetch(ctx, uri, instance.Protocol == domain.ProtocolBridged)
	if err != nil {
		r.log.Warn("Failed to fetch note", "uri", uri, "err", err)
		return nil, domain.ErrNotFound("Note not found", uri)
	}

	e, err := entity.Decode(body)
	if err != nil {
		r.log.Warn("Fetched note is invalid", "uri", uri, "err", err)
		return nil, domain.ErrNotFound("Note could not be resolved", uri)
	}
	n, ok := e.(*entity.Note)
	if !ok || hostOf(n.URI) != instance.Host {
		return nil, domain.ErrNotFound("Note could not be resolved", uri)
	}

	author, err := r.ResolveUser(ctx, n.Author)
	if err != nil {
		return nil, err
	}
	return r.storeNote(ctx, n, author, depth)
}

// StoreNote upserts a note entity by URI on behalf of author.
func (r *Resolver) StoreNote(ctx context.Context, n *entity.Note, author *domain.Actor) (*domain.Note, error) {
	return r.storeNote(ctx, n, author, 0)
}

func (r *Resolver) storeNote(ctx context.Context, n *entity.Note, author *domain.Actor, depth int) (*domain.Note, error) {
	note := &domain.Note{
		Id:         uuid.New(),
		AuthorId:   author.Id,
		URI:        n.URI,
		Visibility: visibilityOf(n.Group),
		Sensitive:  n.IsSensitive,
		Subject:    n.Subject,
		CreatedAt:  createdAt(n.CreatedAt),
		UpdatedAt:  time.Now(),
	}
	note.ContentType, note.Content = n.Content.Preferred()
	if source := n.Content.Text(); source != note.Content {
		note.ContentSource = source
	}

	for _, a := range n.Attachments {
		mime, entry, ok := a.First()
		if !ok {
			continue
		}
		note.Attachments = append(note.Attachments, domain.Attachment{
			Id:          uuid.New(),
			URL:         entry.Content,
			ContentType: mime,
			Description: entry.Description,
			Size:        entry.Size,
			Width:       entry.Width,
			Height:      entry.Height,
			Blurhash:    entry.Blurhash,
		})
	}

	for _, uri := range n.Mentions {
		mentioned, err := r.ResolveUser(ctx, uri)
		if err != nil {
			r.log.Warn("Skipping unresolvable mention", "note", n.URI, "mention", uri, "err", err)
			continue
		}
		note.MentionIds = append(note.MentionIds, mentioned.Id)
	}

	var err error
	if note.EmojiIds, err = r.storeEmojis(ctx, n.Extensions, author.InstanceId); err != nil {
		return nil, err
	}

	if depth < MaxResolveDepth {
		note.ReplyId = r.linkNote(ctx, n.URI, n.RepliesTo, depth)
		note.QuoteId = r.linkNote(ctx, n.URI, n.Quotes, depth)
	}

	if err := r.store.UpsertNote(ctx, note); err != nil {
		return nil, err
	}

	if err := r.store.RecountActor(ctx, author.Id); err != nil {
		return nil, err
	}
	if note.ReplyId != nil {
		if err := r.store.RecountNote(ctx, *note.ReplyId); err != nil {
			return nil, err
		}
	}
	return note, nil
}

func (r *Resolver) linkNote(ctx context.Context, from, uri string, depth int) *uuid.UUID {
	if uri == "" {
		return nil
	}
	target, err := r.resolveNote(ctx, uri, depth+1)
	if err != nil {
		r.log.Warn("Skipping unresolvable note reference", "note", from, "target", uri, "err", err)
		return nil
	}
	return &target.Id
}

func (r *Resolver) storeEmojis(ctx context.Context, ext entity.Extensions, instanceId *uuid.UUID) ([]uuid.UUID, error) {
	emojis, err := ext.CustomEmojis()
	if err != nil {
		r.log.Warn("Ignoring invalid custom emojis", "err", err)
		return nil, nil
	}
	var ids []uuid.UUID
	for _, e := range emojis {
		mime, entry, ok := e.URL.First()
		if !ok || e.Shortcode() == "" {
			continue
		}
		emoji := &domain.Emoji{
			Id:          uuid.New(),
			Shortcode:   e.Shortcode(),
			URL:         entry.Content,
			ContentType: mime,
			InstanceId:  instanceId,
		}
		if err := r.store.UpsertEmoji(ctx, emoji); err != nil {
			return nil, err
		}
		ids = append(ids, emoji.Id)
	}
	return ids, nil
}

func visibilityOf(group string) domain.Visibility {
	switch group {
	case entity.GroupPublic:
		return domain.VisibilityPublic
	case entity.GroupFollowers:
		return domain.VisibilityPrivate
	default:
		return domain.VisibilityDirect
	}
}

func groupOf(v domain.Visibility) string {
	switch v {
	case domain.VisibilityPublic, domain.VisibilityUnlisted:
		return entity.GroupPublic
	case domain.VisibilityPrivate:
		return entity.GroupFollowers
	default:
		return ""
	}
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
