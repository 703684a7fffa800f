package repository

import (
	"context"

	"github.com/tasuboyz/Insta-Publish-Bot/internal/domain"
)

// SessionStore holds transient per-owner scheduling selections.
type SessionStore interface {
	// Get returns the owner's session, or nil if none exists.
	Get(ctx context.Context, ownerID string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Clear(ctx context.Context, ownerID string) error
}

// CredentialStore persists the refreshed access token to the same durable
// configuration the process reads at startup, so a restart resumes with the
// latest value.
type CredentialStore interface {
	SaveAccessToken(token string) error
	// SavePageToken persists the page-scoped token resolved after a
	// refresh. Best effort, separate key.
	SavePageToken(token string) error
}
