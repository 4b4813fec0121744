// Package auth implements the identity provider: Google OAuth redirect sign-in,
// credential sign-in through a TokenVerifier, and session change notification.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"tweet-quiz-service/internal/domain"
)

// SessionStore persists the provider session so it survives reconnects.
type SessionStore interface {
	LoadSession(ctx context.Context) (*domain.Session, error)
	SaveSession(ctx context.Context, session domain.Session) error
	DeleteSession(ctx context.Context) error
}

// GoogleConfig builds the OAuth client configuration for Google sign-in.
func GoogleConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	if clientID == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "profile", "email"},
		Endpoint:     google.Endpoint,
	}
}

// Options configures a Provider. Any of the fields may be nil.
type Options struct {
	OAuth    *oauth2.Config
	Verifier TokenVerifier
	Registry *Registry
	Store    SessionStore
}

// Provider is the identity provider of one connection.
type Provider struct {
	opts Options

	mu     sync.Mutex
	loaded bool
	sess   *domain.Session
	subs   map[int]chan domain.SessionEvent
	nextID int
}

func NewProvider(opts Options) *Provider {
	return &Provider{opts: opts, subs: make(map[int]chan domain.SessionEvent)}
}

func (p *Provider) configured() bool {
	return p.opts.OAuth != nil || p.opts.Verifier != nil
}

// SignIn registers a state value and returns the Google consent URL.
func (p *Provider) SignIn(_ context.Context) (string, error) {
	if p.opts.OAuth == nil || p.opts.Registry == nil {
		return "", domain.ErrProviderUnavailable
	}
	state := p.opts.Registry.Register(p)
	return p.opts.OAuth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// Complete exchanges an authorization code and signs the user in.
func (p *Provider) Complete(ctx context.Context, code string) error {
	if p.opts.OAuth == nil {
		return domain.ErrProviderUnavailable
	}
	token, err := p.opts.OAuth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return fmt.Errorf("%w: token response has no id_token", domain.ErrInvalidCredential)
	}
	identity, expires, err := identityFromIDToken(raw)
	if err != nil {
		return err
	}
	if expires.IsZero() {
		expires = token.Expiry
	}
	return p.establish(ctx, domain.Session{
		User:        identity,
		Provider:    "google",
		AccessToken: token.AccessToken,
		ExpiresAt:   expires,
	})
}

// SignInWithCredential verifies a client-obtained ID token and signs the user in.
func (p *Provider) SignInWithCredential(ctx context.Context, credential string) error {
	if p.opts.Verifier == nil {
		return domain.ErrProviderUnavailable
	}
	identity, expires, err := p.opts.Verifier.Verify(ctx, credential)
	if err != nil {
		return err
	}
	return p.establish(ctx, domain.Session{
		User:      identity,
		Provider:  "credential",
		ExpiresAt: expires,
	})
}

func (p *Provider) establish(ctx context.Context, session domain.Session) error {
	if p.opts.Store != nil {
		if err := p.opts.Store.SaveSession(ctx, session); err != nil {
			return fmt.Errorf("auth: saving session: %w", err)
		}
	}
	p.mu.Lock()
	p.sess = &session
	p.loaded = true
	p.mu.Unlock()

	out := session
	p.publish(domain.SessionEvent{Kind: domain.SessionSignedIn, Session: &out})
	return nil
}

// SignOut ends the session locally and notifies subscribers. A store failure is
// returned after the local session is already gone.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.sess = nil
	p.loaded = true
	p.mu.Unlock()

	if p.opts.Registry != nil {
		p.opts.Registry.Forget(p)
	}
	p.publish(domain.SessionEvent{Kind: domain.SessionSignedOut})

	if p.opts.Store != nil {
		if err := p.opts.Store.DeleteSession(ctx); err != nil {
			return fmt.Errorf("auth: deleting session: %w", err)
		}
	}
	return nil
}

// CurrentSession returns the live session or nil. Expired sessions are dropped.
func (p *Provider) CurrentSession(ctx context.Context) (*domain.Session, error) {
	if !p.configured() {
		return nil, domain.ErrProviderUnavailable
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded && p.opts.Store != nil {
		stored, err := p.opts.Store.LoadSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		p.sess = stored
	}
	p.loaded = true
	if p.sess == nil {
		return nil, nil
	}
	if !p.sess.ExpiresAt.IsZero() && time.Now().After(p.sess.ExpiresAt) {
		p.sess = nil
		return nil, nil
	}
	out := *p.sess
	return &out, nil
}

// Subscribe returns a channel of session changes and a function that ends the subscription.
func (p *Provider) Subscribe() (<-chan domain.SessionEvent, func()) {
	ch := make(chan domain.SessionEvent, 8)
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

// publish never blocks; a subscriber that falls behind misses events.
func (p *Provider) publish(ev domain.SessionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
