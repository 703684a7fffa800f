package domain

import (
	"errors"
	"time"
)

var (
	ErrPostNotFound  = errors.New("post not found")
	ErrDuplicatePost = errors.New("post with this id already exists")
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a post in this status can never transition again.
func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusFailed || s == StatusCancelled
}

// MaxCaptionRunes is the Instagram caption limit in unicode code points.
// Longer captions are truncated, not rejected.
const MaxCaptionRunes = 2200

// TruncateCaption bounds a caption to MaxCaptionRunes, counting code points
// rather than bytes.
func TruncateCaption(caption string) string {
	runes := []rune(caption)
	if len(runes) <= MaxCaptionRunes {
		return caption
	}
	return string(runes[:MaxCaptionRunes])
}

type Post struct {
	ID       string
	OwnerID  string
	ImageURL string
	Caption  string

	Status      Status
	ScheduledAt time.Time

	// MediaID is the Instagram media id, set only on transition to published.
	MediaID *string
	// ErrorMessage is the last failure, set only on transition to failed.
	// Never cleared — it is a historical record.
	ErrorMessage *string

	// OriginRef points back to the ingestion message that produced this
	// post (e.g. a Telegram message id). Correlation only.
	OriginRef *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
