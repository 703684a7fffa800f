package token

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tasuboyz/Insta-Publish-Bot/internal/domain"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/email"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/instagram"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/metrics"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/repository"
)

// GraphAPI is the slice of the Graph client the manager uses.
type GraphAPI interface {
	DebugToken(ctx context.Context, token, appID, appSecret string) (*instagram.TokenInfo, error)
	ExchangeToken(ctx context.Context, token, appID, appSecret string) (*instagram.ExchangedToken, error)
	PageAccounts(ctx context.Context, userToken string) ([]instagram.PageAccount, error)
	PageBusinessAccount(ctx context.Context, pageID, userToken string) (string, error)
}

// Manager owns the live Graph API credential. The credential is held behind
// an atomic pointer: the publisher reads it on every call and only ever
// observes the old or the fully-updated value, never a torn one.
type Manager struct {
	api    GraphAPI
	store  repository.CredentialStore
	alerts email.Sender
	logger *slog.Logger

	appID     string
	appSecret string
	accountID string
	alertTo   string

	cred atomic.Pointer[domain.Credential]
}

type Config struct {
	AccessToken string
	AppID       string
	AppSecret   string
	AccountID   string
	AlertTo     string
}

func NewManager(api GraphAPI, store repository.CredentialStore, alerts email.Sender, cfg Config, logger *slog.Logger) *Manager {
	m := &Manager{
		api:       api,
		store:     store,
		alerts:    alerts,
		logger:    logger.With("component", "token_manager"),
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		accountID: cfg.AccountID,
		alertTo:   cfg.AlertTo,
	}
	m.cred.Store(&domain.Credential{Value: cfg.AccessToken})
	return m
}

// AccessToken returns the live token value. Implements instagram.TokenSource.
func (m *Manager) AccessToken() string {
	return m.cred.Load().Value
}

// Current returns a copy of the live credential.
func (m *Manager) Current() domain.Credential {
	return *m.cred.Load()
}

// CheckAndRefresh introspects the credential and performs a refresh exchange
// when it expires within threshold. A failing introspection does not give
// up: a token can sometimes still be exchanged after its debug call starts
// failing, so we fall through to a forced refresh.
func (m *Manager) CheckAndRefresh(ctx context.Context, threshold time.Duration) error {
	cred := m.cred.Load()
	if cred.Value == "" {
		return domain.ErrTokenNotConfigured
	}
	if m.appID == "" || m.appSecret == "" {
		return domain.ErrAppNotConfigured
	}

	info, err := m.api.DebugToken(ctx, cred.Value, m.appID, m.appSecret)
	if err != nil {
		m.logger.Warn("token introspection failed, attempting forced refresh", "error", err)
		return m.ForceRefresh(ctx)
	}

	if info.ExpiresAt == 0 {
		// Non-expiring token, nothing to do.
		m.logger.Debug("token reports no expiry, skipping refresh")
		metrics.TokenExpirySeconds.Set(0)
		return nil
	}

	m.storeExpiry(cred, info.ExpiresAt)
	metrics.TokenExpirySeconds.Set(float64(info.ExpiresAt))

	now := time.Now()
	left := time.Unix(info.ExpiresAt, 0).Sub(now)
	m.logger.Info("token expiry checked", "expires_in", left.Round(time.Hour))

	if left > threshold {
		return nil
	}
	return m.exchange(ctx, cred.Value)
}

// ForceRefresh performs the exchange unconditionally, bypassing the expiry
// check. Used by the operator endpoint and as the fallback above.
func (m *Manager) ForceRefresh(ctx context.Context) error {
	cred := m.Current()
	if cred.Value == "" {
		return domain.ErrTokenNotConfigured
	}
	if m.appID == "" || m.appSecret == "" {
		return domain.ErrAppNotConfigured
	}
	return m.exchange(ctx, cred.Value)
}

func (m *Manager) exchange(ctx context.Context, oldToken string) error {
	exchanged, err := m.api.ExchangeToken(ctx, oldToken, m.appID, m.appSecret)
	if err != nil {
		// The old credential stays live; the next scheduled check retries.
		metrics.TokenRefreshesTotal.WithLabelValues("failed").Inc()
		m.alert(ctx, fmt.Sprintf("Token exchange failed: %s", err))
		return fmt.Errorf("%w: %v", domain.ErrExchangeFailed, err)
	}

	newCred := &domain.Credential{Value: exchanged.AccessToken}
	if exchanged.ExpiresIn > 0 {
		newCred.ExpiresAt = time.Now().Unix() + exchanged.ExpiresIn
	}

	// Persist first, then swap. If persistence fails the new token still
	// goes live in memory, matching a restart picking up the old value in
	// the worst case rather than losing a valid exchange.
	if err := m.store.SaveAccessToken(newCred.Value); err != nil {
		m.logger.Warn("token refreshed but not persisted, in-memory only", "error", err)
	}
	m.cred.Store(newCred)

	metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()
	metrics.TokenExpirySeconds.Set(float64(newCred.ExpiresAt))
	m.logger.Info("access token refreshed", "expires_at", newCred.ExpiresAt)

	// Secondary, best-effort: resolve and persist the page-scoped token
	// for the configured business account.
	m.resolvePageToken(ctx, newCred.Value)

	return nil
}

// resolvePageToken walks the user's pages looking for the one backing the
// configured Instagram business account and persists its page token.
// Failures here never fail the refresh.
func (m *Manager) resolvePageToken(ctx context.Context, userToken string) {
	pages, err := m.api.PageAccounts(ctx, userToken)
	if err != nil {
		m.logger.Debug("could not list page accounts", "error", err)
		return
	}

	for _, page := range pages {
		igAccount, err := m.api.PageBusinessAccount(ctx, page.ID, userToken)
		if err != nil {
			m.logger.Debug("could not resolve page business account", "page_id", page.ID, "error", err)
			continue
		}
		if igAccount != m.accountID || page.AccessToken == "" {
			continue
		}
		if err := m.store.SavePageToken(page.AccessToken); err != nil {
			m.logger.Warn("persist page token", "page_id", page.ID, "error", err)
			return
		}
		m.logger.Info("page access token persisted", "page_id", page.ID)
		return
	}
}

func (m *Manager) alert(ctx context.Context, body string) {
	if m.alerts == nil || m.alertTo == "" {
		return
	}
	if err := m.alerts.Send(ctx, m.alertTo, "Instagram token refresh failed", body); err != nil {
		m.logger.Warn("send operator alert", "error", err)
	}
}

// storeExpiry records a freshly observed expiry on the credential the check
// started from. The introspection call is slow, so the live credential may
// have been swapped meanwhile (operator refresh); in that case the
// observation describes the old token and is dropped rather than letting the
// write-back resurrect a stale value.
func (m *Manager) storeExpiry(old *domain.Credential, expiresAt int64) {
	updated := *old
	updated.ExpiresAt = expiresAt
	m.cred.CompareAndSwap(old, &updated)
}
