package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Actor is a local or remote account. Local actors have no owning instance
// and carry a private key.
type Actor struct {
	Id             uuid.UUID
	Username       string
	DisplayName    string
	Bio            string
	URI            string
	InstanceId     *uuid.UUID
	PublicKey      string // base64 SPKI DER
	PrivateKey     string // base64 PKCS#8 DER, local actors only
	Locked         bool
	Indexable      bool
	InboxURI       string
	OutboxURI      string
	FollowersURI   string
	FollowingURI   string
	AvatarURL      string
	HeaderURL      string
	FollowerCount  int
	FollowingCount int
	StatusCount    int
	EmojiIds       []uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (a *Actor) IsLocal() bool {
	return a.InstanceId == nil
}

func (a *Actor) IsRemote() bool {
	return a.InstanceId != nil
}

func (a *Actor) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tUsername: %s \n\tURI: %s \n\tLocal: %t \n\tCREATED_AT: %s)", a.Id, a.Username, a.URI, a.IsLocal(), a.CreatedAt)
}

type Protocol string

const (
	ProtocolVersia Protocol = "versia"
	// ProtocolBridged marks an instance reached through the bridge.
	ProtocolBridged Protocol = "bridged"
)

// Instance is a remote federation participant.
type Instance struct {
	Id          uuid.UUID
	Host        string
	Name        string
	Software    string
	Protocol    Protocol
	PublicKey   string
	SharedInbox string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
