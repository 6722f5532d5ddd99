// Package entity holds the Versia wire entities exchanged between instances.
//
// Every entity is a JSON object carrying a "type" discriminator. Decode turns
// a raw body into one of the concrete types below through a closed switch;
// unknown top-level keys and extension values survive a decode/encode cycle
// untouched.
package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Type string

const (
	TypeNote         Type = "Note"
	TypeUser         Type = "User"
	TypeFollow       Type = "Follow"
	TypeFollowAccept Type = "FollowAccept"
	TypeFollowReject Type = "FollowReject"
	TypeUnfollow     Type = "Unfollow"
	TypeDelete       Type = "Delete"
	TypeLike         Type = "pub.versia:likes/Like"
	TypeShare        Type = "pub.versia:shares/Share"
	TypeReaction     Type = "pub.versia:reactions/Reaction"
)

// ErrUnknownType is returned by Decode for a type outside the closed set.
var ErrUnknownType = errors.New("unknown entity type")

// DecodeError wraps malformed JSON and failed validation.
type DecodeError struct {
	Type Type
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("malformed entity: %v", e.Err)
	}
	return fmt.Sprintf("malformed %s entity: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Entity is implemented by every concrete wire entity.
type Entity interface {
	EntityType() Type
	Common() *Base
}

// Base carries the fields shared by all entities.
type Base struct {
	Type       Type       `json:"type" validate:"required"`
	ID         string     `json:"id" validate:"required"`
	URI        string     `json:"uri,omitempty" validate:"omitempty,url"`
	CreatedAt  time.Time  `json:"created_at"`
	Extensions Extensions `json:"extensions,omitempty"`

	// top-level keys this package does not model
	extra map[string]json.RawMessage
}

func (b *Base) Common() *Base {
	return b
}

// Extra returns the raw value of an unmodelled top-level key.
func (b *Base) Extra(key string) (json.RawMessage, bool) {
	raw, ok := b.extra[key]
	return raw, ok
}

// New returns an empty entity for t, or nil when t is not a known type.
func New(t Type) Entity {
	switch t {
	case TypeNote:
		return &Note{}
	case TypeUser:
		return &User{}
	case TypeFollow:
		return &Follow{}
	case TypeFollowAccept:
		return &FollowAccept{}
	case TypeFollowReject:
		return &FollowReject{}
	case TypeUnfollow:
		return &Unfollow{}
	case TypeDelete:
		return &Delete{}
	case TypeLike:
		return &Like{}
	case TypeShare:
		return &Share{}
	case TypeReaction:
		return &Reaction{}
	}
	return nil
}

// Decode parses and validates one entity.
func Decode(data []byte) (Entity, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if head.Type == "" {
		return nil, &DecodeError{Err: errors.New("missing type")}
	}

	e := New(head.Type)
	if e == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, &DecodeError{Type: head.Type, Err: err}
	}
	if err := Validate(e); err != nil {
		return nil, &DecodeError{Type: head.Type, Err: err}
	}
	return e, nil
}

// Encode serializes an entity, stamping its type discriminator.
func Encode(e Entity) ([]byte, error) {
	e.Common().Type = e.EntityType()
	return json.Marshal(e)
}
