package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/tasuboyz/Insta-Publish-Bot/internal/domain"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/repository"
)

// SessionUsecase tracks an owner's in-progress date/time selections and
// turns a completed session into exactly one scheduled post. It talks to
// the state machine only through Scheduler.Schedule.
type SessionUsecase struct {
	sessions  repository.SessionStore
	scheduler *Scheduler
	logger    *slog.Logger
}

func NewSessionUsecase(sessions repository.SessionStore, scheduler *Scheduler, logger *slog.Logger) *SessionUsecase {
	return &SessionUsecase{
		sessions:  sessions,
		scheduler: scheduler,
		logger:    logger.With("component", "session"),
	}
}

type SessionUpdate struct {
	Date   *time.Time
	Hour   *int
	Minute *int
}

// Update merges the given selections into the owner's session, creating it
// if absent.
func (u *SessionUsecase) Update(ctx context.Context, ownerID string, update SessionUpdate) (*domain.Session, error) {
	sess, err := u.sessions.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess = &domain.Session{OwnerID: ownerID}
	}

	if update.Date != nil {
		sess.SelectedDate = update.Date
	}
	if update.Hour != nil {
		sess.SelectedHour = update.Hour
	}
	if update.Minute != nil {
		sess.SelectedMin = update.Minute
	}
	sess.UpdatedAt = time.Now()

	if err := u.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (u *SessionUsecase) Get(ctx context.Context, ownerID string) (*domain.Session, error) {
	return u.sessions.Get(ctx, ownerID)
}

func (u *SessionUsecase) Clear(ctx context.Context, ownerID string) error {
	return u.sessions.Clear(ctx, ownerID)
}

// Confirm schedules a post at the session's selected instant and clears the
// session, so one session produces at most one post.
func (u *SessionUsecase) Confirm(ctx context.Context, ownerID, imageURL, caption string, originRef *string) (*domain.Post, error) {
	sess, err := u.sessions.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.ErrSessionIncomplete
	}

	dueTime, err := sess.DueTime()
	if err != nil {
		return nil, err
	}

	post, err := u.scheduler.Schedule(ctx, ScheduleInput{
		OwnerID:     ownerID,
		ImageURL:    imageURL,
		Caption:     caption,
		ScheduledAt: dueTime,
		OriginRef:   originRef,
	})
	if err != nil {
		return nil, err
	}

	// The post exists; a dangling session must not produce a second one.
	if err := u.sessions.Clear(ctx, ownerID); err != nil {
		u.logger.Warn("clear session after scheduling", "owner_id", ownerID, "error", err)
	}

	return post, nil
}
