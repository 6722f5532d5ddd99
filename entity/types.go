package entity

import "errors"

// Note group values. Anything else is the URI of a group.
const (
	GroupPublic    = "public"
	GroupFollowers = "followers"
)

type Note struct {
	Base
	Author      string          `json:"author" validate:"required,url"`
	Content     ContentFormat   `json:"content,omitempty"`
	Attachments []ContentFormat `json:"attachments,omitempty"`
	Mentions    []string        `json:"mentions,omitempty" validate:"omitempty,dive,url"`
	RepliesTo   string          `json:"replies_to,omitempty" validate:"omitempty,url"`
	Quotes      string          `json:"quotes,omitempty" validate:"omitempty,url"`
	Group       string          `json:"group,omitempty"`
	IsSensitive bool            `json:"is_sensitive,omitempty"`
	Subject     string          `json:"subject,omitempty"`
	Category    string          `json:"category,omitempty"`
}

func (*Note) EntityType() Type { return TypeNote }

func (n *Note) check() error {
	if n.URI == "" {
		return errors.New("note without uri")
	}
	return nil
}

func (n *Note) UnmarshalJSON(b []byte) error {
	type alias Note
	return decodeWithExtra(b, (*alias)(n), &n.extra)
}

func (n Note) MarshalJSON() ([]byte, error) {
	type alias Note
	return encodeWithExtra(alias(n), n.extra)
}

type PublicKey struct {
	Actor     string `json:"actor" validate:"required,url"`
	Algorithm string `json:"algorithm" validate:"required,eq=ed25519"`
	Key       string `json:"key" validate:"required,base64"`
}

type UserCollections struct {
	Outbox    string `json:"outbox,omitempty" validate:"omitempty,url"`
	Followers string `json:"followers,omitempty" validate:"omitempty,url"`
	Following string `json:"following,omitempty" validate:"omitempty,url"`
	Featured  string `json:"featured,omitempty" validate:"omitempty,url"`
}

type Field struct {
	Key   ContentFormat `json:"key"`
	Value ContentFormat `json:"value"`
}

type User struct {
	Base
	Username                  string          `json:"username" validate:"required"`
	DisplayName               string          `json:"display_name,omitempty"`
	Bio                       ContentFormat   `json:"bio,omitempty"`
	Avatar                    ContentFormat   `json:"avatar,omitempty"`
	Header                    ContentFormat   `json:"header,omitempty"`
	PublicKey                 PublicKey       `json:"public_key"`
	ManuallyApprovesFollowers bool            `json:"manually_approves_followers"`
	Indexable                 bool            `json:"indexable"`
	Inbox                     string          `json:"inbox" validate:"required,url"`
	Collections               UserCollections `json:"collections"`
	Fields                    []Field         `json:"fields,omitempty"`
}

func (*User) EntityType() Type { return TypeUser }

func (u *User) check() error {
	if u.URI == "" {
		return errors.New("user without uri")
	}
	return nil
}

func (u *User) UnmarshalJSON(b []byte) error {
	type alias User
	return decodeWithExtra(b, (*alias)(u), &u.extra)
}

func (u User) MarshalJSON() ([]byte, error) {
	type alias User
	return encodeWithExtra(alias(u), u.extra)
}

type Follow struct {
	Base
	Author   string `json:"author" validate:"required,url"`
	Followee string `json:"followee" validate:"required,url"`
}

func (*Follow) EntityType() Type { return TypeFollow }

func (f *Follow) UnmarshalJSON(b []byte) error {
	type alias Follow
	return decodeWithExtra(b, (*alias)(f), &f.extra)
}

func (f Follow) MarshalJSON() ([]byte, error) {
	type alias Follow
	return encodeWithExtra(alias(f), f.extra)
}

type FollowAccept struct {
	Base
	Author   string `json:"author" validate:"required,url"`
	Follower string `json:"follower" validate:"required,url"`
}

func (*FollowAccept) EntityType() Type { return TypeFollowAccept }

func (f *FollowAccept) UnmarshalJSON(b []byte) error {
	type alias FollowAccept
	return decodeWithExtra(b, (*alias)(f), &f.extra)
}

func (f FollowAccept) MarshalJSON() ([]byte, error) {
	type alias FollowAccept
	return encodeWithExtra(alias(f), f.extra)
}

type FollowReject struct {
	Base
	Author   string `json:"author" validate:"required,url"`
	Follower string `json:"follower" validate:"required,url"`
}

func (*FollowReject) EntityType() Type { return TypeFollowReject }

func (f *FollowReject) UnmarshalJSON(b []byte) error {
	type alias FollowReject
	return decodeWithExtra(b, (*alias)(f), &f.extra)
}

func (f FollowReject) MarshalJSON() ([]byte, error) {
	type alias FollowReject
	return encodeWithExtra(alias(f), f.extra)
}

type Unfollow struct {
	Base
	Author   string `json:"author" validate:"required,url"`
	Followee string `json:"followee" validate:"required,url"`
}

func (*Unfollow) EntityType() Type { return TypeUnfollow }

func (u *Unfollow) UnmarshalJSON(b []byte) error {
	type alias Unfollow
	return decodeWithExtra(b, (*alias)(u), &u.extra)
}

func (u Unfollow) MarshalJSON() ([]byte, error) {
	type alias Unfollow
	return encodeWithExtra(alias(u), u.extra)
}

type Like struct {
	Base
	Author string `json:"author" validate:"required,url"`
	Liked  string `json:"liked" validate:"required,url"`
}

func (*Like) EntityType() Type { return TypeLike }

func (l *Like) UnmarshalJSON(b []byte) error {
	type alias Like
	return decodeWithExtra(b, (*alias)(l), &l.extra)
}

func (l Like) MarshalJSON() ([]byte, error) {
	type alias Like
	return encodeWithExtra(alias(l), l.extra)
}

type Share struct {
	Base
	Author string `json:"author" validate:"required,url"`
	Shared string `json:"shared" validate:"required,url"`
}

func (*Share) EntityType() Type { return TypeShare }

func (s *Share) UnmarshalJSON(b []byte) error {
	type alias Share
	return decodeWithExtra(b, (*alias)(s), &s.extra)
}

func (s Share) MarshalJSON() ([]byte, error) {
	type alias Share
	return encodeWithExtra(alias(s), s.extra)
}

// Reaction content is either a literal emoji or a ":shortcode:" naming an
// emoji carried in the custom emojis extension.
type Reaction struct {
	Base
	Author  string `json:"author" validate:"required,url"`
	Object  string `json:"object" validate:"required,url"`
	Content string `json:"content" validate:"required"`
}

func (*Reaction) EntityType() Type { return TypeReaction }

func (r *Reaction) UnmarshalJSON(b []byte) error {
	type alias Reaction
	return decodeWithExtra(b, (*alias)(r), &r.extra)
}

func (r Reaction) MarshalJSON() ([]byte, error) {
	type alias Reaction
	return encodeWithExtra(alias(r), r.extra)
}

// Delete.Author is empty when the deletion is made by an instance.
type Delete struct {
	Base
	Author      string `json:"author,omitempty" validate:"omitempty,url"`
	DeletedType Type   `json:"deleted_type" validate:"required"`
	Deleted     string `json:"deleted" validate:"required,url"`
}

func (*Delete) EntityType() Type { return TypeDelete }

func (d *Delete) UnmarshalJSON(b []byte) error {
	type alias Delete
	return decodeWithExtra(b, (*alias)(d), &d.extra)
}

func (d Delete) MarshalJSON() ([]byte, error) {
	type alias Delete
	return encodeWithExtra(alias(d), d.extra)
}

// Authored is implemented by entities that name an author.
type Authored interface {
	AuthorURI() string
}

func (n *Note) AuthorURI() string         { return n.Author }
func (u *User) AuthorURI() string         { return u.URI }
func (f *Follow) AuthorURI() string       { return f.Author }
func (f *FollowAccept) AuthorURI() string { return f.Author }
func (f *FollowReject) AuthorURI() string { return f.Author }
func (u *Unfollow) AuthorURI() string     { return u.Author }
func (l *Like) AuthorURI() string         { return l.Author }
func (s *Share) AuthorURI() string        { return s.Author }
func (r *Reaction) AuthorURI() string     { return r.Author }
func (d *Delete) AuthorURI() string       { return d.Author }
