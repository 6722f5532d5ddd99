package federation

import (
	"context"
	"errors"
	"time"

	"github.com/deemkeen/versiond/db"
	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/entity"
	"github.com/google/uuid"
)

// loadRelationship returns the stored edge or a fresh one with default
// facets. The fresh edge is not persisted.
func loadRelationship(ctx context.Context, store Store, ownerId, subjectId uuid.UUID) (*domain.Relationship, error) {
	rel, err := store.ReadRelationship(ctx, ownerId, subjectId)
	if errors.Is(err, db.ErrNotFound) {
		now := time.Now()
		return &domain.Relationship{
			Id:             uuid.New(),
			OwnerId:        ownerId,
			SubjectId:      subjectId,
			ShowingReblogs: true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}, nil
	}
	return rel, err
}

func saveRelationship(ctx context.Context, store Store, rel *domain.Relationship) error {
	rel.UpdatedAt = time.Now()
	if err := store.UpsertRelationship(ctx, rel); err != nil {
		return err
	}
	if err := store.RecountActor(ctx, rel.OwnerId); err != nil {
		return err
	}
	return store.RecountActor(ctx, rel.SubjectId)
}

// applyFollow moves the edge follower -> followee out of NONE. It reports
// false when nothing changed.
func applyFollow(ctx context.Context, store Store, follower, followee *domain.Actor) (bool, error) {
	rel, err := loadRelationship(ctx, store, follower.Id, followee.Id)
	if err != nil {
		return false, err
	}
	if rel.Following || (followee.Locked && rel.Requested) {
		return false, nil
	}

	if followee.Locked {
		rel.Requested = true
	} else {
		rel.Requested = false
		rel.Following = true
	}
	return true, saveRelationship(ctx, store, rel)
}

// answerFollow resolves a pending request on follower -> followee. It is a
// no-op unless the edge is REQUESTED.
func answerFollow(ctx context.Context, store Store, follower, followee *domain.Actor, accept bool) (bool, error) {
	rel, err := store.ReadRelationship(ctx, follower.Id, followee.Id)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !rel.Requested {
		return false, nil
	}
	rel.Requested = false
	rel.Following = accept
	return true, saveRelationship(ctx, store, rel)
}

// removeFollow drops follower -> followee back to NONE.
func removeFollow(ctx context.Context, store Store, follower, followee *domain.Actor) (bool, error) {
	rel, err := store.ReadRelationship(ctx, follower.Id, followee.Id)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !rel.Following && !rel.Requested {
		return false, nil
	}
	rel.Following = false
	rel.Requested = false
	return true, saveRelationship(ctx, store, rel)
}

func (p *InboxProcessor) processFollow(ctx context.Context, sender *Sender, e entity.Entity) error {
	f := e.(*entity.Follow)

	follower, err := p.resolver.ResolveUser(ctx, f.Author)
	if err != nil {
		return err
	}
	followee, err := p.resolver.ResolveUser(ctx, f.Followee)
	if err != nil {
		return err
	}

	changed, err := applyFollow(ctx, p.store, follower, followee)
	if err != nil || !changed {
		return err
	}

	if followee.Locked {
		p.log.Info("Follow requested", "follower", follower.URI, "followee", followee.URI)
		return notify(ctx, p.store, domain.NotifyFollowRequest, followee, follower.Id, nil)
	}

	p.log.Info("Follow accepted", "follower", follower.URI, "followee", followee.URI)
	if err := notify(ctx, p.store, domain.NotifyFollow, followee, follower.Id, nil); err != nil {
		return err
	}
	if followee.IsLocal() && follower.IsRemote() {
		return p.outbox.sendFollowAnswer(ctx, followee, follower, true)
	}
	return nil
}

func (p *InboxProcessor) processFollowAccept(ctx context.Context, sender *Sender, e entity.Entity) error {
	a := e.(*entity.FollowAccept)
	return p.processFollowAnswer(ctx, a.Author, a.Follower, true)
}

func (p *InboxProcessor) processFollowReject(ctx context.Context, sender *Sender, e entity.Entity) error {
	r := e.(*entity.FollowReject)
	return p.processFollowAnswer(ctx, r.Author, r.Follower, false)
}

func (p *InboxProcessor) processFollowAnswer(ctx context.Context, followeeURI, followerURI string, accept bool) error {
	followee, err := p.resolver.ResolveUser(ctx, followeeURI)
	if err != nil {
		return err
	}
	follower, err := p.resolver.ResolveUser(ctx, followerURI)
	if err != nil {
		return err
	}

	changed, err := answerFollow(ctx, p.store, follower, followee, accept)
	if err != nil {
		return err
	}
	if changed {
		p.log.Info("Follow request answered", "follower", follower.URI, "followee", followee.URI, "accepted", accept)
	}
	return nil
}

func (p *InboxProcessor) processUnfollow(ctx context.Context, sender *Sender, e entity.Entity) error {
	u := e.(*entity.Unfollow)

	follower, err := p.resolver.ResolveUser(ctx, u.Author)
	if err != nil {
		return err
	}
	followee, err := p.resolver.ResolveUser(ctx, u.Followee)
	if err != nil {
		return err
	}

	changed, err := removeFollow(ctx, p.store, follower, followee)
	if err != nil {
		return err
	}
	if changed {
		p.log.Info("Unfollowed", "follower", follower.URI, "followee", followee.URI)
	}
	return nil
}
