package federation

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/deemkeen/versiond/db"
	"github.com/deemkeen/versiond/domain"
	"github.com/google/uuid"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_-]{1,30}$`)

// CreateLocalActor registers a new local account with a fresh key pair.
// Usernames are lowercased and must be unique among local actors.
func CreateLocalActor(ctx context.Context, store Store, uris URIs, username, displayName string, locked bool) (*domain.Actor, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if !usernamePattern.MatchString(username) {
		return nil, domain.ErrBadRequest("Invalid username", "use 1-30 of a-z, 0-9, _ and -")
	}

	_, err := store.ReadLocalActorByUsername(ctx, username)
	if err == nil {
		return nil, domain.NewApiError(http.StatusConflict, "Username is taken", username)
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	public, private, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	now := time.Now()
	if displayName == "" {
		displayName = username
	}
	actor := &domain.Actor{
		Id:           id,
		Username:     username,
		DisplayName:  displayName,
		URI:          uris.Actor(id),
		PublicKey:    public,
		PrivateKey:   private,
		Locked:       locked,
		Indexable:    true,
		InboxURI:     uris.Inbox(id),
		OutboxURI:    uris.Outbox(id),
		FollowersURI: uris.Followers(id),
		FollowingURI: uris.Following(id),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.UpsertActor(ctx, actor); err != nil {
		return nil, err
	}
	return actor, nil
}
