package federation

import (
	"context"
	"errors"

	"github.com/deemkeen/versiond/db"
	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/entity"
	"github.com/deemkeen/versiond/util"
	"github.com/google/uuid"
)

// Renderer builds wire entities from stored records.
type Renderer struct {
	store Store
	uris  URIs
}

func NewRenderer(store Store, uris URIs) *Renderer {
	return &Renderer{store: store, uris: uris}
}

func (r *Renderer) User(ctx context.Context, actor *domain.Actor) (*entity.User, error) {
	u := &entity.User{
		Username:    actor.Username,
		DisplayName: actor.DisplayName,
		PublicKey: entity.PublicKey{
			Actor:     actor.URI,
			Algorithm: "ed25519",
			Key:       actor.PublicKey,
		},
		ManuallyApprovesFollowers: actor.Locked,
		Indexable:                 actor.Indexable,
		Inbox:                     actor.InboxURI,
		Collections: entity.UserCollections{
			Outbox:    actor.OutboxURI,
			Followers: actor.FollowersURI,
			Following: actor.FollowingURI,
		},
	}
	u.ID = actor.Id.String()
	u.URI = actor.URI
	u.CreatedAt = actor.CreatedAt
	if actor.Bio != "" {
		u.Bio = entity.HTML(actor.Bio, "")
	}
	if actor.AvatarURL != "" {
		u.Avatar = entity.Remote("image/png", actor.AvatarURL)
	}
	if actor.HeaderURL != "" {
		u.Header = entity.Remote("image/png", actor.HeaderURL)
	}
	if err := r.emojis(ctx, &u.Extensions, actor.EmojiIds); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Renderer) Note(ctx context.Context, note *domain.Note) (*entity.Note, error) {
	author, err := r.store.ReadActorById(ctx, note.AuthorId)
	if err != nil {
		return nil, err
	}

	n := &entity.Note{
		Author:      author.URI,
		Group:       groupOf(note.Visibility),
		IsSensitive: note.Sensitive,
		Subject:     note.Subject,
	}
	n.ID = note.Id.String()
	n.URI = note.URI
	n.CreatedAt = note.CreatedAt

	switch note.ContentType {
	case entity.MimeHTML, "":
		n.Content = entity.HTML(note.Content, note.ContentSource)
	default:
		n.Content = entity.ContentFormat{note.ContentType: {Content: note.Content}}
	}

	for _, a := range note.Attachments {
		n.Attachments = append(n.Attachments, entity.ContentFormat{a.ContentType: {
			Content:     a.URL,
			Remote:      true,
			Description: a.Description,
			Size:        a.Size,
			Width:       a.Width,
			Height:      a.Height,
			Blurhash:    a.Blurhash,
		}})
	}

	for _, id := range note.MentionIds {
		mentioned, err := r.store.ReadActorById(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		n.Mentions = append(n.Mentions, mentioned.URI)
	}

	if n.RepliesTo, err = r.noteURI(ctx, note.ReplyId); err != nil {
		return nil, err
	}
	if n.Quotes, err = r.noteURI(ctx, note.QuoteId); err != nil {
		return nil, err
	}
	if err := r.emojis(ctx, &n.Extensions, note.EmojiIds); err != nil {
		return nil, err
	}
	return n, nil
}

func (r *Renderer) noteURI(ctx context.Context, id *uuid.UUID) (string, error) {
	if id == nil {
		return "", nil
	}
	note, err := r.store.ReadNoteById(ctx, *id)
	if errors.Is(err, db.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return note.URI, nil
}

func (r *Renderer) emojis(ctx context.Context, ext *entity.Extensions, ids []uuid.UUID) error {
	var emojis []entity.CustomEmoji
	for _, id := range ids {
		emoji, err := r.store.ReadEmojiById(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		emojis = append(emojis, customEmoji(emoji))
	}
	return ext.SetCustomEmojis(emojis)
}

func customEmoji(e *domain.Emoji) entity.CustomEmoji {
	return entity.CustomEmoji{
		Name: ":" + e.Shortcode + ":",
		URL:  entity.Remote(e.ContentType, e.URL),
	}
}

// Instance describes this server for /.well-known/versia.
func (r *Renderer) Instance(conf *util.AppConfig, publicKey string) *entity.InstanceMetadata {
	return &entity.InstanceMetadata{
		Type:        entity.TypeInstanceMetadata,
		Name:        conf.Conf.Domain,
		Description: "A Versia server",
		Host:        r.uris.Domain,
		SharedInbox: r.uris.SharedInbox(),
		Software:    entity.Software{Name: util.Name, Version: util.GetVersion()},
		Compatibility: entity.Compatibility{
			Versions:   []string{"0.5.0"},
			Extensions: entity.SupportedExtensions,
		},
		PublicKey: entity.InstanceKey{Algorithm: "ed25519", Key: publicKey},
	}
}
