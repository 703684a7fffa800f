package usecase_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/tasuboyz/Insta-Publish-Bot/internal/domain"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/usecase"
)

// ---- fakes ----

type fakePostRepo struct {
	create        func(ctx context.Context, post *domain.Post) (*domain.Post, error)
	getByID       func(ctx context.Context, id string) (*domain.Post, error)
	listByOwner   func(ctx context.Context, ownerID string, status domain.Status) ([]*domain.Post, error)
	listDue       func(ctx context.Context, now time.Time) ([]*domain.Post, error)
	markPublished func(ctx context.Context, id, mediaID string) (bool, error)
	markFailed    func(ctx context.Context, id, errorMessage string) (bool, error)
	cancel        func(ctx context.Context, id, ownerID string) (bool, error)
}

func (r *fakePostRepo) Create(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	return r.create(ctx, post)
}

func (r *fakePostRepo) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	return r.getByID(ctx, id)
}

func (r *fakePostRepo) ListByOwner(ctx context.Context, ownerID string, status domain.Status) ([]*domain.Post, error) {
	return r.listByOwner(ctx, ownerID, status)
}

func (r *fakePostRepo) ListDue(ctx context.Context, now time.Time) ([]*domain.Post, error) {
	return r.listDue(ctx, now)
}

func (r *fakePostRepo) MarkPublished(ctx context.Context, id, mediaID string) (bool, error) {
	return r.markPublished(ctx, id, mediaID)
}

func (r *fakePostRepo) MarkFailed(ctx context.Context, id, errorMessage string) (bool, error) {
	return r.markFailed(ctx, id, errorMessage)
}

func (r *fakePostRepo) Cancel(ctx context.Context, id, ownerID string) (bool, error) {
	return r.cancel(ctx, id, ownerID)
}

func newScheduler(repo *fakePostRepo) *usecase.Scheduler {
	return usecase.NewScheduler(repo, slog.Default())
}

// ---- Schedule ----

func TestSchedule_CreatesScheduledPostWithID(t *testing.T) {
	var captured *domain.Post
	repo := &fakePostRepo{
		create: func(_ context.Context, post *domain.Post) (*domain.Post, error) {
			captured = post
			return post, nil
		},
	}

	due := time.Now().Add(time.Hour)
	post, err := newScheduler(repo).Schedule(context.Background(), usecase.ScheduleInput{
		OwnerID:     "owner-1",
		ImageURL:    "https://example/img.jpg",
		Caption:     "hello",
		ScheduledAt: due,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if post.ID == "" {
		t.Error("post id was not assigned")
	}
	if captured.Status != domain.StatusScheduled {
		t.Errorf("status = %q, want scheduled", captured.Status)
	}
	if !captured.ScheduledAt.Equal(due) {
		t.Errorf("scheduled_at = %v, want %v", captured.ScheduledAt, due)
	}
}

func TestSchedule_TruncatesCaptionAtLimit(t *testing.T) {
	var captured *domain.Post
	repo := &fakePostRepo{
		create: func(_ context.Context, post *domain.Post) (*domain.Post, error) {
			captured = post
			return post, nil
		},
	}

	// Multi-byte runes make sure truncation counts code points, not bytes.
	long := strings.Repeat("à", domain.MaxCaptionRunes+50)
	_, err := newScheduler(repo).Schedule(context.Background(), usecase.ScheduleInput{
		OwnerID:     "owner-1",
		ImageURL:    "https://example/img.jpg",
		Caption:     long,
		ScheduledAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len([]rune(captured.Caption)); got != domain.MaxCaptionRunes {
		t.Errorf("caption length = %d runes, want %d", got, domain.MaxCaptionRunes)
	}
}

func TestSchedule_ShortCaptionUntouched(t *testing.T) {
	var captured *domain.Post
	repo := &fakePostRepo{
		create: func(_ context.Context, post *domain.Post) (*domain.Post, error) {
			captured = post
			return post, nil
		},
	}

	_, err := newScheduler(repo).Schedule(context.Background(), usecase.ScheduleInput{
		OwnerID:     "owner-1",
		ImageURL:    "https://example/img.jpg",
		Caption:     "short caption",
		ScheduledAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.Caption != "short caption" {
		t.Errorf("caption = %q, want unchanged", captured.Caption)
	}
}

func TestSchedule_RepoError_Propagates(t *testing.T) {
	repoErr := errors.New("db down")
	repo := &fakePostRepo{
		create: func(_ context.Context, _ *domain.Post) (*domain.Post, error) {
			return nil, repoErr
		},
	}

	_, err := newScheduler(repo).Schedule(context.Background(), usecase.ScheduleInput{
		OwnerID:     "owner-1",
		ImageURL:    "https://example/img.jpg",
		ScheduledAt: time.Now(),
	})
	if !errors.Is(err, repoErr) {
		t.Errorf("want wrapped repoErr, got %v", err)
	}
}

// ---- Cancel ----

func TestCancel_ReturnsRepoOutcome(t *testing.T) {
	for _, outcome := range []bool{true, false} {
		repo := &fakePostRepo{
			cancel: func(_ context.Context, id, ownerID string) (bool, error) {
				if id != "post-1" || ownerID != "owner-1" {
					t.Errorf("cancel called with (%q, %q)", id, ownerID)
				}
				return outcome, nil
			},
		}

		got, err := newScheduler(repo).Cancel(context.Background(), "post-1", "owner-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != outcome {
			t.Errorf("cancel = %v, want %v", got, outcome)
		}
	}
}

// ---- MarkPublished / MarkFailed ----

func TestMarkPublished_NoOpWhenNotScheduled(t *testing.T) {
	repo := &fakePostRepo{
		markPublished: func(_ context.Context, _, _ string) (bool, error) {
			return false, nil // post already terminal
		},
	}

	// A lost transition race is not an error, just a discarded result.
	if err := newScheduler(repo).MarkPublished(context.Background(), "post-1", "M1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMarkFailed_RepoError_Propagates(t *testing.T) {
	repoErr := errors.New("db down")
	repo := &fakePostRepo{
		markFailed: func(_ context.Context, _, _ string) (bool, error) {
			return false, repoErr
		},
	}

	err := newScheduler(repo).MarkFailed(context.Background(), "post-1", "boom")
	if !errors.Is(err, repoErr) {
		t.Errorf("want wrapped repoErr, got %v", err)
	}
}

// ---- queries ----

func TestDuePosts_DelegatesToRepo(t *testing.T) {
	now := time.Now()
	due := []*domain.Post{{ID: "post-1", Status: domain.StatusScheduled}}
	repo := &fakePostRepo{
		listDue: func(_ context.Context, got time.Time) ([]*domain.Post, error) {
			if !got.Equal(now) {
				t.Errorf("listDue called with %v, want %v", got, now)
			}
			return due, nil
		},
	}

	posts, err := newScheduler(repo).DuePosts(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "post-1" {
		t.Errorf("unexpected posts: %+v", posts)
	}
}

func TestPostsForOwner_PassesStatusFilter(t *testing.T) {
	repo := &fakePostRepo{
		listByOwner: func(_ context.Context, ownerID string, status domain.Status) ([]*domain.Post, error) {
			if ownerID != "owner-1" || status != domain.StatusScheduled {
				t.Errorf("listByOwner called with (%q, %q)", ownerID, status)
			}
			return nil, nil
		},
	}

	if _, err := newScheduler(repo).PostsForOwner(context.Background(), "owner-1", domain.StatusScheduled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
