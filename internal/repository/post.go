package repository

import (
	"context"
	"time"

	"github.com/tasuboyz/Insta-Publish-Bot/internal/domain"
)

// Usecase and poller depend on this interface, not the concrete postgres
// implementation, so tests can pass fakes and the backing store can change
// without touching the state machine.
type PostRepository interface {
	Create(ctx context.Context, post *domain.Post) (*domain.Post, error)
	GetByID(ctx context.Context, id string) (*domain.Post, error)

	// ListByOwner returns the owner's posts ordered by scheduled_at
	// ascending. An empty status means all statuses.
	ListByOwner(ctx context.Context, ownerID string, status domain.Status) ([]*domain.Post, error)

	// ListDue returns posts still scheduled whose fire time has passed,
	// oldest-due first so a backlog drains in fair order.
	ListDue(ctx context.Context, now time.Time) ([]*domain.Post, error)

	// The three transition writes are conditional updates: each succeeds
	// only if the post is still in the scheduled state, and reports via
	// the bool whether the transition actually happened. A false return is
	// not an error — it means someone else won the race.
	MarkPublished(ctx context.Context, id, mediaID string) (bool, error)
	MarkFailed(ctx context.Context, id, errorMessage string) (bool, error)
	Cancel(ctx context.Context, id, ownerID string) (bool, error)
}
