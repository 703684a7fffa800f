package instagram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tasuboyz/Insta-Publish-Bot/internal/domain"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/metrics"
)

// TokenSource yields the live access token. The publisher reads it at each
// Graph call rather than caching it, so a mid-flight credential refresh
// takes effect automatically.
type TokenSource interface {
	AccessToken() string
}

// GraphAPI is the slice of Client the publisher uses.
type GraphAPI interface {
	CreateContainer(ctx context.Context, accountID, imageURL, caption, token string) (string, error)
	ContainerStatus(ctx context.Context, containerID, token string) (string, error)
	PublishContainer(ctx context.Context, accountID, containerID, token string) (string, error)
}

// PublishResult reports the outcome of one two-phase publish attempt.
// ContainerID is kept even when the commit phase fails, for diagnostics.
type PublishResult struct {
	ContainerID string
	MediaID     string
	Err         error
	Duration    time.Duration
}

func (r PublishResult) Success() bool { return r.Err == nil }

// Publisher runs the two-phase create/commit protocol for a single
// (imageURL, caption) pair. It never retries on its own — the retry policy,
// such as it is, lives with the caller.
type Publisher struct {
	api       GraphAPI
	tokens    TokenSource
	accountID string
	logger    *slog.Logger

	// The backend needs time to process a container before it can be
	// committed. We poll its status until FINISHED, bounded by
	// statusTimeout; if the status endpoint itself is unavailable we fall
	// back to a blind fixedDelay wait.
	statusInterval time.Duration
	statusTimeout  time.Duration
	fixedDelay     time.Duration
}

func NewPublisher(api GraphAPI, tokens TokenSource, accountID string, logger *slog.Logger) *Publisher {
	return &Publisher{
		api:            api,
		tokens:         tokens,
		accountID:      accountID,
		logger:         logger.With("component", "publisher"),
		statusInterval: 2 * time.Second,
		statusTimeout:  60 * time.Second,
		fixedDelay:     10 * time.Second,
	}
}

// Publish runs create -> wait -> commit. A create failure is fatal for the
// attempt; a commit failure is reported with the container id retained.
func (p *Publisher) Publish(ctx context.Context, imageURL, caption string) PublishResult {
	start := time.Now()

	// Enforced here so every path to the backend honors the limit, including
	// immediate publishes that bypass the scheduler.
	caption = domain.TruncateCaption(caption)

	containerID, err := p.api.CreateContainer(ctx, p.accountID, imageURL, caption, p.tokens.AccessToken())
	if err != nil {
		metrics.PublishesTotal.WithLabelValues("create_failed").Inc()
		return PublishResult{Err: fmt.Errorf("create container: %w", err), Duration: time.Since(start)}
	}
	p.logger.Info("container created", "container_id", containerID)

	if err := p.waitForContainer(ctx, containerID); err != nil {
		metrics.PublishesTotal.WithLabelValues("processing_failed").Inc()
		return PublishResult{
			ContainerID: containerID,
			Err:         fmt.Errorf("container processing: %w", err),
			Duration:    time.Since(start),
		}
	}

	mediaID, err := p.api.PublishContainer(ctx, p.accountID, containerID, p.tokens.AccessToken())
	if err != nil {
		metrics.PublishesTotal.WithLabelValues("commit_failed").Inc()
		return PublishResult{
			ContainerID: containerID,
			Err:         fmt.Errorf("publish container: %w", err),
			Duration:    time.Since(start),
		}
	}

	metrics.PublishesTotal.WithLabelValues("success").Inc()
	metrics.PublishDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("media published", "container_id", containerID, "media_id", mediaID)

	return PublishResult{
		ContainerID: containerID,
		MediaID:     mediaID,
		Duration:    time.Since(start),
	}
}

// waitForContainer polls the container status until FINISHED. If the very
// first status call fails, the endpoint is assumed unavailable and we fall
// back to the fixed grace delay instead.
func (p *Publisher) waitForContainer(ctx context.Context, containerID string) error {
	deadline := time.Now().Add(p.statusTimeout)

	status, err := p.api.ContainerStatus(ctx, containerID, p.tokens.AccessToken())
	if err != nil {
		p.logger.Warn("status endpoint unavailable, falling back to fixed delay", "container_id", containerID, "error", err)
		return sleepCtx(ctx, p.fixedDelay)
	}

	for {
		switch status {
		case ContainerFinished:
			return nil
		case ContainerError:
			return fmt.Errorf("container entered ERROR state")
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("container not ready after %s (last status %q)", p.statusTimeout, status)
		}
		if err := sleepCtx(ctx, p.statusInterval); err != nil {
			return err
		}

		status, err = p.api.ContainerStatus(ctx, containerID, p.tokens.AccessToken())
		if err != nil {
			// Mid-poll failure: stop polling and sit out the blind grace
			// delay instead, same as when the endpoint is down from the
			// start. The commit will surface a container that never became
			// ready.
			p.logger.Warn("container status poll failed, falling back to fixed delay", "container_id", containerID, "error", err)
			return sleepCtx(ctx, p.fixedDelay)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
