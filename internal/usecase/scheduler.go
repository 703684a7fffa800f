package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/domain"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/repository"
)

// Scheduler owns the post state machine. It is the only component that
// writes post state; the poller and the publisher just report outcomes back
// through MarkPublished/MarkFailed.
type Scheduler struct {
	repo   repository.PostRepository
	logger *slog.Logger
}

func NewScheduler(repo repository.PostRepository, logger *slog.Logger) *Scheduler {
	return &Scheduler{repo: repo, logger: logger.With("component", "scheduler")}
}

type ScheduleInput struct {
	OwnerID     string
	ImageURL    string
	Caption     string
	ScheduledAt time.Time
	OriginRef   *string
}

// Schedule creates a new post in the scheduled state and returns it.
// ScheduledAt is not validated to be in the future — the poller's due check
// simply fires immediately for a past instant.
func (s *Scheduler) Schedule(ctx context.Context, input ScheduleInput) (*domain.Post, error) {
	post := &domain.Post{
		ID:          uuid.NewString(),
		OwnerID:     input.OwnerID,
		ImageURL:    input.ImageURL,
		Caption:     domain.TruncateCaption(input.Caption),
		Status:      domain.StatusScheduled,
		ScheduledAt: input.ScheduledAt,
		OriginRef:   input.OriginRef,
	}

	created, err := s.repo.Create(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.logger.Info("post scheduled", "post_id", created.ID, "owner_id", created.OwnerID, "scheduled_at", created.ScheduledAt)
	return created, nil
}

// Cancel transitions scheduled -> cancelled if the post belongs to ownerID
// and is still scheduled. Returns false — never an error — when the post is
// missing, owned by someone else, or already terminal.
func (s *Scheduler) Cancel(ctx context.Context, postID, ownerID string) (bool, error) {
	cancelled, err := s.repo.Cancel(ctx, postID, ownerID)
	if err != nil {
		return false, fmt.Errorf("cancel post: %w", err)
	}
	if cancelled {
		s.logger.Info("post cancelled", "post_id", postID, "owner_id", ownerID)
	}
	return cancelled, nil
}

// MarkPublished records a successful publish. A no-op if the post is no
// longer scheduled: a cancellation that raced the publish wins, and the
// execution result is discarded.
func (s *Scheduler) MarkPublished(ctx context.Context, postID, mediaID string) error {
	moved, err := s.repo.MarkPublished(ctx, postID, mediaID)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	if !moved {
		s.logger.Warn("publish result discarded, post no longer scheduled", "post_id", postID)
	}
	return nil
}

// MarkFailed records a failed publish attempt. Failure is sticky: the core
// never retries a failed post on its own. Same race rule as MarkPublished.
func (s *Scheduler) MarkFailed(ctx context.Context, postID, errorMessage string) error {
	moved, err := s.repo.MarkFailed(ctx, postID, errorMessage)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if !moved {
		s.logger.Warn("failure result discarded, post no longer scheduled", "post_id", postID)
	}
	return nil
}

func (s *Scheduler) DuePosts(ctx context.Context, now time.Time) ([]*domain.Post, error) {
	posts, err := s.repo.ListDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list due posts: %w", err)
	}
	return posts, nil
}

func (s *Scheduler) PostsForOwner(ctx context.Context, ownerID string, status domain.Status) ([]*domain.Post, error) {
	posts, err := s.repo.ListByOwner(ctx, ownerID, status)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (s *Scheduler) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	post, err := s.repo.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}
