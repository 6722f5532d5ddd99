package federation

import (
	"context"
	"time"

	"github.com/deemkeen/versiond/domain"
	"github.com/google/uuid"
)

// Store is the persistence the federation engine needs. Lookups return
// db.ErrNotFound for missing rows. Every write is an upsert or an
// insert-if-absent so that redelivered entities converge on the same state.
type Store interface {
	ReadActorById(ctx context.Context, id uuid.UUID) (*domain.Actor, error)
	ReadActorByURI(ctx context.Context, uri string) (*domain.Actor, error)
	ReadLocalActorByUsername(ctx context.Context, username string) (*domain.Actor, error)
	// UpsertActor matches on URI and fills a.Id with the stored id.
	UpsertActor(ctx context.Context, a *domain.Actor) error
	DeleteActor(ctx context.Context, id uuid.UUID) error
	// RecountActor recomputes follower, following and status counts.
	RecountActor(ctx context.Context, id uuid.UUID) error

	ReadInstanceById(ctx context.Context, id uuid.UUID) (*domain.Instance, error)
	ReadInstanceByHost(ctx context.Context, host string) (*domain.Instance, error)
	UpsertInstance(ctx context.Context, i *domain.Instance) error

	ReadNoteById(ctx context.Context, id uuid.UUID) (*domain.Note, error)
	ReadNoteByURI(ctx context.Context, uri string) (*domain.Note, error)
	ReadReblog(ctx context.Context, authorId, rebloggedId uuid.UUID) (*domain.Note, error)
	// UpsertNote matches on URI and replaces attachments, mentions and emojis.
	UpsertNote(ctx context.Context, n *domain.Note) error
	DeleteNote(ctx context.Context, id uuid.UUID) error
	// RecountNote recomputes reply, reblog and like counts.
	RecountNote(ctx context.Context, id uuid.UUID) error
	ListPublicNotesByAuthor(ctx context.Context, authorId uuid.UUID, limit int) ([]domain.Note, error)

	UpsertEmoji(ctx context.Context, e *domain.Emoji) error
	ReadEmojiById(ctx context.Context, id uuid.UUID) (*domain.Emoji, error)
	ReadEmoji(ctx context.Context, shortcode string, instanceId *uuid.UUID) (*domain.Emoji, error)

	ReadRelationship(ctx context.Context, ownerId, subjectId uuid.UUID) (*domain.Relationship, error)
	UpsertRelationship(ctx context.Context, r *domain.Relationship) error
	ListRemoteFollowers(ctx context.Context, subjectId uuid.UUID) ([]domain.Actor, error)

	// CreateLike reports false when the (liker, liked) pair already exists.
	CreateLike(ctx context.Context, l *domain.Like) (bool, error)
	ReadLike(ctx context.Context, likerId, likedId uuid.UUID) (*domain.Like, error)
	ReadLikeByURI(ctx context.Context, uri string) (*domain.Like, error)
	DeleteLike(ctx context.Context, id uuid.UUID) error

	// CreateReaction reports false when the same emoji identity exists.
	CreateReaction(ctx context.Context, r *domain.Reaction) (bool, error)
	ReadReaction(ctx context.Context, authorId, noteId uuid.UUID, emojiId *uuid.UUID, emojiText string) (*domain.Reaction, error)
	DeleteReaction(ctx context.Context, id uuid.UUID) error

	// CreateNotification ignores duplicates.
	CreateNotification(ctx context.Context, n *domain.Notification) error

	EnqueueDeliveryJob(ctx context.Context, j *domain.DeliveryJob) error
}

// Queue is the delivery job lifecycle driven by the DeliveryWorker.
type Queue interface {
	ClaimDeliveryJobs(ctx context.Context, limit int) ([]domain.DeliveryJob, error)
	CompleteDeliveryJob(ctx context.Context, id uuid.UUID) error
	// FailDeliveryJob records an attempt. A zero nextAttemptAt marks the
	// job as failed for good.
	FailDeliveryJob(ctx context.Context, id uuid.UUID, lastError string, nextAttemptAt time.Time) error
	ResetStaleDeliveryJobs(ctx context.Context, olderThan time.Duration) (int64, error)
}

// FetchCache keeps raw remote bodies for a while. Implementations must
// treat every error as a miss.
type FetchCache interface {
	Get(ctx context.Context, uri string) ([]byte, bool)
	Set(ctx context.Context, uri string, body []byte)
	Forget(ctx context.Context, uri string)
}
