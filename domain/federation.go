package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Relationship is the directed edge Owner -> Subject. There is exactly one
// row per ordered pair.
type Relationship struct {
	Id             uuid.UUID
	OwnerId        uuid.UUID
	SubjectId      uuid.UUID
	Following      bool
	Requested      bool
	ShowingReblogs bool
	Notifying      bool
	Blocking       bool
	Muting         bool
	Languages      []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type FollowState string

const (
	FollowNone      FollowState = "none"
	FollowRequested FollowState = "requested"
	FollowFollowing FollowState = "following"
)

func (r *Relationship) FollowState() FollowState {
	switch {
	case r == nil:
		return FollowNone
	case r.Following:
		return FollowFollowing
	case r.Requested:
		return FollowRequested
	default:
		return FollowNone
	}
}

// Like is unique per (liker, liked note).
type Like struct {
	Id        uuid.UUID
	LikerId   uuid.UUID
	LikedId   uuid.UUID
	URI       string
	CreatedAt time.Time
}

var ErrReactionIdentity = errors.New("reaction needs exactly one of emoji id or emoji text")

// Reaction is unique per (author, note, emoji identity). The emoji identity
// is either a custom emoji reference or a literal text emoji, never both.
type Reaction struct {
	Id        uuid.UUID
	AuthorId  uuid.UUID
	NoteId    uuid.UUID
	EmojiId   *uuid.UUID
	EmojiText string
	URI       string
	CreatedAt time.Time
}

func (r *Reaction) Validate() error {
	hasId := r.EmojiId != nil
	hasText := r.EmojiText != ""
	if hasId == hasText {
		return ErrReactionIdentity
	}
	return nil
}

type NotificationType string

const (
	NotifyFollow        NotificationType = "follow"
	NotifyFollowRequest NotificationType = "follow_request"
	NotifyFavourite     NotificationType = "favourite"
	NotifyReblog        NotificationType = "reblog"
	NotifyReaction      NotificationType = "reaction"
	NotifyMention       NotificationType = "mention"
)

// Notification is addressed to a local AccountId and caused by NotifiedId.
type Notification struct {
	Id         uuid.UUID
	Type       NotificationType
	AccountId  uuid.UUID
	NotifiedId uuid.UUID
	NoteId     *uuid.UUID
	CreatedAt  time.Time
}

type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "pending"
	DeliveryInProgress DeliveryStatus = "in_progress"
	DeliveryComplete   DeliveryStatus = "complete"
	DeliveryFailed     DeliveryStatus = "failed"
)

// DeliveryJob is one outbound entity for one recipient.
type DeliveryJob struct {
	Id            uuid.UUID
	Entity        string // serialized entity
	EntityType    string
	SenderId      uuid.UUID
	RecipientId   uuid.UUID
	Status        DeliveryStatus
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
