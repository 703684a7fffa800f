package scheduler_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tasuboyz/Insta-Publish-Bot/internal/domain"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/instagram"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/scheduler"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/usecase"
)

// memPostRepo implements the post store in memory with the same conditional
// transition rules as the SQL repository: state changes apply only while the
// post is still scheduled.
type memPostRepo struct {
	mu      sync.Mutex
	posts   map[string]*domain.Post
	listErr error
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{posts: make(map[string]*domain.Post)}
}

func (r *memPostRepo) Create(_ context.Context, post *domain.Post) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *post
	r.posts[post.ID] = &cp
	return post, nil
}

func (r *memPostRepo) GetByID(_ context.Context, id string) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	cp := *post
	return &cp, nil
}

func (r *memPostRepo) ListByOwner(_ context.Context, ownerID string, status domain.Status) ([]*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Post
	for _, post := range r.posts {
		if post.OwnerID != ownerID {
			continue
		}
		if status != "" && post.Status != status {
			continue
		}
		cp := *post
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memPostRepo) ListDue(_ context.Context, now time.Time) ([]*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var due []*domain.Post
	for _, post := range r.posts {
		if post.Status == domain.StatusScheduled && !post.ScheduledAt.After(now) {
			cp := *post
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (r *memPostRepo) MarkPublished(_ context.Context, id, mediaID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status != domain.StatusScheduled {
		return false, nil
	}
	post.Status = domain.StatusPublished
	post.MediaID = &mediaID
	return true, nil
}

func (r *memPostRepo) MarkFailed(_ context.Context, id, errorMessage string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status != domain.StatusScheduled {
		return false, nil
	}
	post.Status = domain.StatusFailed
	post.ErrorMessage = &errorMessage
	return true, nil
}

func (r *memPostRepo) Cancel(_ context.Context, id, ownerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.OwnerID != ownerID || post.Status != domain.StatusScheduled {
		return false, nil
	}
	post.Status = domain.StatusCancelled
	return true, nil
}

// stubPublisher returns a canned result per image URL, with an optional
// hook invoked before the result is returned.
type stubPublisher struct {
	results   map[string]instagram.PublishResult
	onPublish func(imageURL string)
	mu        sync.Mutex
	published []string
}

func (p *stubPublisher) Publish(_ context.Context, imageURL, _ string) instagram.PublishResult {
	p.mu.Lock()
	p.published = append(p.published, imageURL)
	p.mu.Unlock()
	if p.onPublish != nil {
		p.onPublish(imageURL)
	}
	return p.results[imageURL]
}

func newTestPoller(repo *memPostRepo, pub scheduler.Publisher) (*scheduler.Poller, *usecase.Scheduler) {
	sched := usecase.NewScheduler(repo, slog.Default())
	return scheduler.NewPoller(sched, pub, slog.Default(), time.Minute), sched
}

func schedulePost(t *testing.T, sched *usecase.Scheduler, imageURL string, at time.Time) *domain.Post {
	t.Helper()
	post, err := sched.Schedule(context.Background(), usecase.ScheduleInput{
		OwnerID:     "owner-1",
		ImageURL:    imageURL,
		Caption:     "caption",
		ScheduledAt: at,
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	return post
}

func TestRunCycle_PublishesDuePost(t *testing.T) {
	repo := newMemPostRepo()
	pub := &stubPublisher{results: map[string]instagram.PublishResult{
		"https://example/due.jpg": {ContainerID: "C1", MediaID: "M1"},
	}}
	poller, sched := newTestPoller(repo, pub)

	due := schedulePost(t, sched, "https://example/due.jpg", time.Now().Add(-time.Minute))
	future := schedulePost(t, sched, "https://example/future.jpg", time.Now().Add(24*time.Hour))

	if err := poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	got, _ := repo.GetByID(context.Background(), due.ID)
	if got.Status != domain.StatusPublished {
		t.Errorf("due post status = %q, want published", got.Status)
	}
	if got.MediaID == nil || *got.MediaID != "M1" {
		t.Errorf("media id = %v, want M1", got.MediaID)
	}

	// Not yet due: untouched.
	got, _ = repo.GetByID(context.Background(), future.ID)
	if got.Status != domain.StatusScheduled {
		t.Errorf("future post status = %q, want scheduled", got.Status)
	}
	if len(pub.published) != 1 {
		t.Errorf("publisher called %d times, want 1", len(pub.published))
	}
}

func TestRunCycle_PublishFailureMarksFailed(t *testing.T) {
	repo := newMemPostRepo()
	pub := &stubPublisher{results: map[string]instagram.PublishResult{
		"https://example/due.jpg": {Err: errors.New("backend unreachable")},
	}}
	poller, sched := newTestPoller(repo, pub)

	post := schedulePost(t, sched, "https://example/due.jpg", time.Now().Add(-time.Minute))

	if err := poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	got, _ := repo.GetByID(context.Background(), post.ID)
	if got.Status != domain.StatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "backend unreachable" {
		t.Errorf("error message = %v, want backend unreachable", got.ErrorMessage)
	}
}

func TestRunCycle_FailureIsSticky(t *testing.T) {
	repo := newMemPostRepo()
	pub := &stubPublisher{results: map[string]instagram.PublishResult{
		"https://example/due.jpg": {Err: errors.New("backend unreachable")},
	}}
	poller, sched := newTestPoller(repo, pub)

	schedulePost(t, sched, "https://example/due.jpg", time.Now().Add(-time.Minute))

	for i := 0; i < 3; i++ {
		if err := poller.RunCycle(context.Background()); err != nil {
			t.Fatalf("run cycle %d: %v", i, err)
		}
	}

	// Failed posts never come back as due, so no retries happen.
	if len(pub.published) != 1 {
		t.Errorf("publisher called %d times, want 1", len(pub.published))
	}
}

func TestRunCycle_CancellationWinsOverRacingPublish(t *testing.T) {
	repo := newMemPostRepo()
	sched := usecase.NewScheduler(repo, slog.Default())

	post := schedulePost(t, sched, "https://example/due.jpg", time.Now().Add(-time.Minute))

	// The publish succeeds remotely, but the owner cancelled while the
	// upload was in flight.
	pub := &stubPublisher{
		results: map[string]instagram.PublishResult{
			"https://example/due.jpg": {ContainerID: "C1", MediaID: "M1"},
		},
		onPublish: func(string) {
			if _, err := sched.Cancel(context.Background(), post.ID, post.OwnerID); err != nil {
				t.Errorf("cancel: %v", err)
			}
		},
	}
	poller := scheduler.NewPoller(sched, pub, slog.Default(), time.Minute)

	if err := poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	got, _ := repo.GetByID(context.Background(), post.ID)
	if got.Status != domain.StatusCancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}
	if got.MediaID != nil {
		t.Errorf("media id = %v, want nil", got.MediaID)
	}
}

type panickyPublisher struct {
	panicOn string
	inner   scheduler.Publisher
}

func (p *panickyPublisher) Publish(ctx context.Context, imageURL, caption string) instagram.PublishResult {
	if imageURL == p.panicOn {
		panic("publisher bug")
	}
	return p.inner.Publish(ctx, imageURL, caption)
}

func TestRunCycle_PanicDoesNotAbortBatch(t *testing.T) {
	repo := newMemPostRepo()
	inner := &stubPublisher{results: map[string]instagram.PublishResult{
		"https://example/a.jpg": {ContainerID: "C1", MediaID: "M1"},
		"https://example/b.jpg": {ContainerID: "C2", MediaID: "M2"},
	}}
	pub := &panickyPublisher{panicOn: "https://example/a.jpg", inner: inner}
	poller, sched := newTestPoller(repo, pub)

	bad := schedulePost(t, sched, "https://example/a.jpg", time.Now().Add(-2*time.Minute))
	good := schedulePost(t, sched, "https://example/b.jpg", time.Now().Add(-time.Minute))

	if err := poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	got, _ := repo.GetByID(context.Background(), good.ID)
	if got.Status != domain.StatusPublished {
		t.Errorf("good post status = %q, want published", got.Status)
	}
	// The panicking post stays scheduled and will be retried next cycle.
	got, _ = repo.GetByID(context.Background(), bad.ID)
	if got.Status != domain.StatusScheduled {
		t.Errorf("bad post status = %q, want scheduled", got.Status)
	}
}

// blockingPublisher parks in Publish until released, recording whether the
// context it was handed got cancelled.
type blockingPublisher struct {
	started chan struct{}
	release chan struct{}
	ctxErr  error
}

func (p *blockingPublisher) Publish(ctx context.Context, _, _ string) instagram.PublishResult {
	close(p.started)
	<-p.release
	p.ctxErr = ctx.Err()
	return instagram.PublishResult{ContainerID: "C1", MediaID: "M1"}
}

func TestStart_ShutdownWaitsForInFlightPublish(t *testing.T) {
	repo := newMemPostRepo()
	sched := usecase.NewScheduler(repo, slog.Default())
	post := schedulePost(t, sched, "https://example/due.jpg", time.Now().Add(-time.Minute))

	pub := &blockingPublisher{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	poller := scheduler.NewPoller(sched, pub, slog.Default(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Start(ctx)
	}()

	// Shutdown arrives while a publish is in flight.
	<-pub.started
	cancel()

	select {
	case <-done:
		t.Fatal("poller stopped while a publish was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(pub.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after the publish completed")
	}

	// The interrupted cycle still ran to completion and recorded its outcome.
	got, _ := repo.GetByID(context.Background(), post.ID)
	if got.Status != domain.StatusPublished {
		t.Errorf("status = %q, want published", got.Status)
	}
	if pub.ctxErr != nil {
		t.Errorf("publish context error = %v, want none after shutdown signal", pub.ctxErr)
	}
}

func TestRunCycle_StoreErrorPropagates(t *testing.T) {
	repo := newMemPostRepo()
	repo.listErr = errors.New("db down")
	poller, _ := newTestPoller(repo, &stubPublisher{})

	err := poller.RunCycle(context.Background())
	if !errors.Is(err, repo.listErr) {
		t.Errorf("run cycle error = %v, want db down", err)
	}
}
