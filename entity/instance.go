package entity

import "time"

const TypeInstanceMetadata = "InstanceMetadata"

// InstanceMetadata is served at /.well-known/versia. It is not an inbox
// entity and has no id, so it lives outside the Entity union.
type InstanceMetadata struct {
	Type          string        `json:"type"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Host          string        `json:"host"`
	SharedInbox   string        `json:"shared_inbox,omitempty"`
	Software      Software      `json:"software"`
	Compatibility Compatibility `json:"compatibility"`
	PublicKey     InstanceKey   `json:"public_key"`
	Logo          ContentFormat `json:"logo,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	Extensions    Extensions    `json:"extensions,omitempty"`
	Moderators    string        `json:"moderators,omitempty"`
	Admins        string        `json:"admins,omitempty"`
}

type Software struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Compatibility struct {
	Versions   []string `json:"versions"`
	Extensions []string `json:"extensions"`
}

type InstanceKey struct {
	Algorithm string `json:"algorithm"`
	Key       string `json:"key"`
}

// SupportedExtensions lists the extensions this server understands.
var SupportedExtensions = []string{
	"pub.versia:custom_emojis",
	"pub.versia:likes",
	"pub.versia:shares",
	"pub.versia:reactions",
}
