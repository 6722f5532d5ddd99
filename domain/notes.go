package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
	VisibilityDirect   Visibility = "direct"
)

// Note is a post. A reblog is a Note row with ReblogId set and no content of
// its own.
type Note struct {
	Id            uuid.UUID
	AuthorId      uuid.UUID
	URI           string
	Visibility    Visibility
	ReplyId       *uuid.UUID
	QuoteId       *uuid.UUID
	ReblogId      *uuid.UUID
	Sensitive     bool
	Subject       string
	Content       string // html
	ContentType   string
	ContentSource string // plain text or markdown source when known
	ReplyCount    int
	ReblogCount   int
	LikeCount     int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Attachments   []Attachment
	MentionIds    []uuid.UUID
	EmojiIds      []uuid.UUID
}

func (note *Note) IsReblog() bool {
	return note.ReblogId != nil
}

func (note *Note) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tAuthorId: %s \n\tURI: %s \n\tVisibility: %s \n\tCreatedAt: %s)", note.Id, note.AuthorId, note.URI, note.Visibility, note.CreatedAt)
}

type Attachment struct {
	Id          uuid.UUID
	NoteId      uuid.UUID
	URL         string
	ContentType string
	Description string
	Size        int64
	Width       int
	Height      int
	Blurhash    string
}

// Emoji is a custom emoji, local when InstanceId is nil.
type Emoji struct {
	Id          uuid.UUID
	Shortcode   string
	URL         string
	ContentType string
	InstanceId  *uuid.UUID
}
