package common

import (
	"context"
	"time"

	"github.com/deemkeen/versiond/domain"
	"github.com/google/uuid"
)

type SessionState uint

const (
	DeliveriesView SessionState = iota
	InstancesView
	LocalUsersView
	CreateUserView
)

// Store is what the admin console reads and changes.
type Store interface {
	ListDeliveryJobs(ctx context.Context, status domain.DeliveryStatus, limit int) ([]domain.DeliveryJob, error)
	RetryDeliveryJob(ctx context.Context, id uuid.UUID) error
	DropDeliveryJob(ctx context.Context, id uuid.UUID) error
	ListInstances(ctx context.Context) ([]domain.Instance, error)
	ListLocalActors(ctx context.Context) ([]domain.Actor, error)
}

// CreateUserFunc registers a local account.
type CreateUserFunc func(ctx context.Context, username, displayName string, locked bool) (*domain.Actor, error)

// QueryTimeout bounds every database call made from the console.
const QueryTimeout = 5 * time.Second

func QueryContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), QueryTimeout)
}

// UserCreatedMsg is sent after the create user form succeeds.
type UserCreatedMsg struct {
	Actor *domain.Actor
}
