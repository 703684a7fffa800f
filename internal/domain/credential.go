package domain

import (
	"errors"
	"time"
)

var (
	// ErrTokenNotConfigured means no access token is available at all.
	ErrTokenNotConfigured = errors.New("instagram access token not configured")
	// ErrAppNotConfigured means app id/secret are missing, so no exchange
	// can ever succeed until configuration changes.
	ErrAppNotConfigured = errors.New("facebook app id/secret not configured")
	// ErrExchangeFailed wraps a failed token-exchange attempt. The previous
	// credential stays live when this is returned.
	ErrExchangeFailed = errors.New("token exchange failed")
)

// Credential is the live bearer token for the Graph API.
type Credential struct {
	Value string
	// ExpiresAt is the unix expiry reported by token introspection.
	// Zero means the token is treated as non-expiring.
	ExpiresAt int64
}

// ExpiresWithin reports whether the credential expires within d of now.
// Non-expiring credentials never do.
func (c Credential) ExpiresWithin(now time.Time, d time.Duration) bool {
	if c.ExpiresAt == 0 {
		return false
	}
	return time.Unix(c.ExpiresAt, 0).Sub(now) <= d
}
