package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tasuboyz/Insta-Publish-Bot/internal/domain"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/instagram"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/metrics"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/usecase"
)

// Publisher is the slice of instagram.Publisher the poller drives.
type Publisher interface {
	Publish(ctx context.Context, imageURL, caption string) instagram.PublishResult
}

// Poller is the single background loop that promotes due posts to
// execution. One iteration per interval; posts within an iteration are
// published strictly sequentially to bound the Graph API call rate, which
// also gives at-most-one in-flight publish per post for free.
type Poller struct {
	scheduler *usecase.Scheduler
	publisher Publisher
	logger    *slog.Logger

	interval time.Duration
	// recovery is the shorter sleep used after a cycle that failed outright
	// (store unreachable), so a transient outage does not spin the loop.
	recovery time.Duration
}

func NewPoller(scheduler *usecase.Scheduler, publisher Publisher, logger *slog.Logger, interval time.Duration) *Poller {
	return &Poller{
		scheduler: scheduler,
		publisher: publisher,
		logger:    logger.With("component", "poller"),
		interval:  interval,
		recovery:  30 * time.Second,
	}
}

// Start runs the loop until ctx is cancelled. Posts are only guaranteed to
// fire within one interval after their due time, not exactly at it.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("poller started", "interval", p.interval)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller shut down")
			return
		case <-timer.C:
		}

		next := p.interval
		if err := p.RunCycle(ctx); err != nil {
			p.logger.Error("poller cycle failed", "error", err)
			next = p.recovery
		}
		timer.Reset(next)
	}
}

// RunCycle performs one poll iteration: fetch due posts and drive each to a
// terminal state. Exported so tests (and an eventual admin trigger) can run
// a single iteration synchronously.
func (p *Poller) RunCycle(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.PollerCycleDuration.Observe(time.Since(start).Seconds())
	}()

	posts, err := p.scheduler.DuePosts(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("fetch due posts: %w", err)
	}

	metrics.PollerDuePosts.Set(float64(len(posts)))
	if len(posts) == 0 {
		return nil
	}
	p.logger.Info("due posts found", "count", len(posts))

	for _, post := range posts {
		// One post's failure never aborts the batch.
		p.processPost(ctx, post)
	}
	return nil
}

func (p *Poller) processPost(ctx context.Context, post *domain.Post) {
	// Shutdown must not interrupt the two-phase protocol mid-call: a publish
	// once started runs to completion (bounded by the client's own HTTP
	// timeouts), and its outcome is always recorded. Cancellation only stops
	// the loop between cycles.
	ctx = context.WithoutCancel(ctx)

	defer func() {
		// The publisher returns structured results rather than panicking,
		// but a bug must not take the loop down with it.
		if r := recover(); r != nil {
			p.logger.Error("panic while processing post", "post_id", post.ID, "panic", r)
			metrics.PostsProcessedTotal.WithLabelValues("panic").Inc()
		}
	}()

	p.logger.Info("publishing due post", "post_id", post.ID, "scheduled_at", post.ScheduledAt)

	result := p.publisher.Publish(ctx, post.ImageURL, post.Caption)
	if result.Success() {
		if err := p.scheduler.MarkPublished(ctx, post.ID, result.MediaID); err != nil {
			p.logger.Error("mark published", "post_id", post.ID, "error", err)
			return
		}
		metrics.PostsProcessedTotal.WithLabelValues("published").Inc()
		p.logger.Info("post published", "post_id", post.ID, "media_id", result.MediaID, "duration", result.Duration)
		return
	}

	errMsg := result.Err.Error()
	if err := p.scheduler.MarkFailed(ctx, post.ID, errMsg); err != nil {
		p.logger.Error("mark failed", "post_id", post.ID, "error", err)
		return
	}
	metrics.PostsProcessedTotal.WithLabelValues("failed").Inc()
	p.logger.Warn("post failed", "post_id", post.ID, "error", errMsg, "container_id", result.ContainerID)
}
