package app

import (
	"context"
	"errors"
	"log/slog"

	"tweet-quiz-service/internal/domain"
)

// SessionManager owns the current identity and keeps the local cache consistent
// with the remote profile service across session transitions.
type SessionManager struct {
	provider  IdentityProvider
	profiles  ProfileService
	cache     LocalCache
	presenter Presenter
	log       *slog.Logger

	identity *domain.Identity
	profile  *domain.Profile
	offline  bool

	onAuthenticated func(ctx context.Context)
}

// NewSessionManager wires the session lifecycle. provider and profiles may be nil,
// which puts the manager in local-only mode.
func NewSessionManager(provider IdentityProvider, profiles ProfileService, cache LocalCache, presenter Presenter, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		provider:  provider,
		profiles:  profiles,
		cache:     cache,
		presenter: presenter,
		log:       logger,
	}
}

// OnAuthenticated registers a hook run after the authenticated view is entered.
func (m *SessionManager) OnAuthenticated(fn func(ctx context.Context)) {
	m.onAuthenticated = fn
}

// Identity returns the current identity, if any.
func (m *SessionManager) Identity() (domain.Identity, bool) {
	if m.identity == nil {
		return domain.Identity{}, false
	}
	return *m.identity, true
}

func (m *SessionManager) Authenticated() bool {
	return m.identity != nil
}

// Profile returns the linked remote profile. It is nil in offline mode or when
// reconciliation could not reach the remote service.
func (m *SessionManager) Profile() *domain.Profile {
	return m.profile
}

// Offline reports whether the identity was restored from cache without a provider.
func (m *SessionManager) Offline() bool {
	return m.offline
}

// SignIn starts the provider's interactive flow. Completion arrives as a session event.
func (m *SessionManager) SignIn(ctx context.Context) (string, error) {
	if m.provider == nil {
		m.presenter.Notice("Sign-in is not available right now.")
		return "", domain.ErrProviderUnavailable
	}
	url, err := m.provider.SignIn(ctx)
	if err != nil {
		m.log.Warn("sign-in failed", slog.Any("error", err))
		m.presenter.Notice("Sign-in failed. Please try again.")
		return "", err
	}
	return url, nil
}

// SignOut terminates the provider session and always returns to the sign-in view.
func (m *SessionManager) SignOut(ctx context.Context) {
	if m.provider != nil {
		if err := m.provider.SignOut(ctx); err != nil {
			m.log.Warn("provider sign-out failed", slog.Any("error", err))
			m.presenter.Notice("Sign-out could not reach the provider; you are signed out on this device.")
		}
	}
	if err := m.cache.ClearIdentity(ctx); err != nil {
		m.log.Warn("clear cached identity", slog.Any("error", err))
	}
	m.OnSessionChange(ctx, nil)
}

// CheckExistingSession determines the identity at startup. When the provider is not
// configured it trusts a previously cached identity without remote sync.
func (m *SessionManager) CheckExistingSession(ctx context.Context) {
	if m.provider == nil {
		m.restoreOffline(ctx)
		return
	}
	session, err := m.provider.CurrentSession(ctx)
	switch {
	case errors.Is(err, domain.ErrProviderUnavailable):
		m.restoreOffline(ctx)
	case err != nil:
		m.log.Warn("current session lookup failed", slog.Any("error", err))
		m.OnSessionChange(ctx, nil)
	default:
		m.OnSessionChange(ctx, session)
	}
}

func (m *SessionManager) restoreOffline(ctx context.Context) {
	identity, err := m.cache.LoadIdentity(ctx)
	if err != nil {
		m.log.Warn("cached identity unreadable", slog.Any("error", err))
		identity = nil
	}
	if identity == nil {
		m.OnSessionChange(ctx, nil)
		return
	}
	m.identity = identity
	m.profile = nil
	m.offline = true
	m.log.Info("restored cached identity in offline mode", slog.String("user", identity.ID))
	m.enterAuthenticated(ctx)
}

// OnSessionChange is the single reconciliation entry point for provider session changes.
func (m *SessionManager) OnSessionChange(ctx context.Context, session *domain.Session) {
	if session == nil {
		m.identity = nil
		m.profile = nil
		m.offline = false
		m.presenter.EnterSignIn()
		return
	}

	identity := session.User
	m.identity = &identity
	m.offline = false
	m.profile = m.reconcileProfile(ctx, identity)

	if m.profile != nil {
		if remote := m.fetchRemoteAggregate(ctx, m.profile.ID); remote != nil {
			if err := m.cache.SaveAggregate(ctx, identity.ID, remote.Normalize()); err != nil {
				m.log.Warn("cache remote aggregate", slog.String("user", identity.ID), slog.Any("error", err))
			}
		}
	}

	if err := m.cache.SaveIdentity(ctx, identity); err != nil {
		m.log.Warn("cache identity", slog.String("user", identity.ID), slog.Any("error", err))
	}
	m.enterAuthenticated(ctx)
}

func (m *SessionManager) enterAuthenticated(ctx context.Context) {
	m.presenter.EnterAuthenticated(*m.identity)
	if m.onAuthenticated != nil {
		m.onAuthenticated(ctx)
	}
}

// reconcileProfile fetches or creates the remote profile. Remote failures yield nil.
func (m *SessionManager) reconcileProfile(ctx context.Context, identity domain.Identity) *domain.Profile {
	if m.profiles == nil {
		return nil
	}
	existing, err := m.profiles.FetchProfile(ctx, identity.ID)
	if err != nil {
		m.logRemote("fetchProfile", err)
		return nil
	}

	candidate := domain.Profile{ProviderID: identity.ID}
	if existing != nil {
		candidate = *existing
	}
	candidate.DisplayName = identity.DisplayName
	candidate.Email = identity.Email
	candidate.PictureURL = identity.PictureURL

	saved, err := m.profiles.UpsertProfile(ctx, candidate)
	if err != nil {
		m.logRemote("upsertProfile", err)
		return existing
	}
	return &saved
}

func (m *SessionManager) fetchRemoteAggregate(ctx context.Context, profileID string) *domain.UserAggregate {
	agg, err := m.profiles.FetchAggregate(ctx, profileID)
	if err != nil {
		m.logRemote("fetchAggregate", err)
		return nil
	}
	return agg
}

func (m *SessionManager) logRemote(op string, err error) {
	m.log.Warn("remote profile call failed", slog.Any("error", &domain.RemoteError{Op: op, Err: err}))
}

// LoadAggregate returns the current identity's aggregate, or defaults when there is
// no identity, no record, or the record is unreadable.
func (m *SessionManager) LoadAggregate(ctx context.Context) domain.UserAggregate {
	if m.identity == nil {
		return domain.NewUserAggregate()
	}
	agg, ok, err := m.cache.LoadAggregate(ctx, m.identity.ID)
	if err != nil {
		m.log.Warn("cached aggregate unreadable", slog.String("user", m.identity.ID), slog.Any("error", err))
		return domain.NewUserAggregate()
	}
	if !ok {
		return domain.NewUserAggregate()
	}
	return agg.Normalize()
}

// SaveAggregate writes the aggregate locally and mirrors it remotely when a profile is linked.
func (m *SessionManager) SaveAggregate(ctx context.Context, agg domain.UserAggregate) error {
	if m.identity == nil {
		return domain.ErrNotAuthenticated
	}
	if err := m.cache.SaveAggregate(ctx, m.identity.ID, agg); err != nil {
		return err
	}
	if m.profile != nil && m.profiles != nil {
		if _, err := m.profiles.UpsertAggregate(ctx, m.profile.ID, agg); err != nil {
			m.logRemote("upsertAggregate", err)
		}
	}
	return nil
}

// RecordPlaythrough folds a completed play-through into the aggregate. Without an
// identity nothing is recorded.
func (m *SessionManager) RecordPlaythrough(ctx context.Context, score, maxStreak int) (domain.UserAggregate, bool) {
	if m.identity == nil {
		return domain.UserAggregate{}, false
	}
	agg := m.LoadAggregate(ctx).Fold(score, maxStreak)
	if err := m.SaveAggregate(ctx, agg); err != nil {
		m.log.Error("persist play-through", slog.String("user", m.identity.ID), slog.Any("error", err))
		return agg, false
	}
	return agg, true
}

// SubscribeNewsletter records a newsletter subscription for the linked profile.
// An empty email falls back to the identity's email.
func (m *SessionManager) SubscribeNewsletter(ctx context.Context, email string) (bool, error) {
	if m.identity == nil {
		return false, domain.ErrNotAuthenticated
	}
	if m.profile == nil || m.profiles == nil {
		return false, domain.ErrProfileNotLinked
	}
	if email == "" {
		email = m.identity.Email
	}
	ok, err := m.profiles.UpsertNewsletterSubscription(ctx, email, m.profile.ID)
	if err != nil {
		return false, &domain.RemoteError{Op: "upsertNewsletterSubscription", Err: err}
	}
	return ok, nil
}
