package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tweet-quiz-service/internal/domain"
)

// ProfileService is an in-memory remote profile store, useful for tests and demos.
// SetFailure makes every call fail, simulating an unreachable service.
type ProfileService struct {
	mu          sync.RWMutex
	clock       func() time.Time
	fail        error
	profiles    map[string]domain.Profile // keyed by provider id
	aggregates  map[string]domain.UserAggregate
	newsletters map[string]string // email -> profile id
}

func NewProfileService() *ProfileService {
	return &ProfileService{
		clock:       time.Now,
		profiles:    make(map[string]domain.Profile),
		aggregates:  make(map[string]domain.UserAggregate),
		newsletters: make(map[string]string),
	}
}

// SetFailure makes subsequent calls return err; nil restores normal behavior.
func (s *ProfileService) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *ProfileService) FetchProfile(_ context.Context, providerID string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return nil, s.fail
	}
	p, ok := s.profiles[providerID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *ProfileService) UpsertProfile(_ context.Context, profile domain.Profile) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return domain.Profile{}, s.fail
	}
	now := s.clock()
	if existing, ok := s.profiles[profile.ProviderID]; ok {
		profile.ID = existing.ID
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.ID = uuid.NewString()
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	s.profiles[profile.ProviderID] = profile
	return profile, nil
}

func (s *ProfileService) FetchAggregate(_ context.Context, profileID string) (*domain.UserAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return nil, s.fail
	}
	agg, ok := s.aggregates[profileID]
	if !ok {
		return nil, nil
	}
	out := agg.Clone()
	return &out, nil
}

func (s *ProfileService) UpsertAggregate(_ context.Context, profileID string, agg domain.UserAggregate) (domain.UserAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return domain.UserAggregate{}, s.fail
	}
	s.aggregates[profileID] = agg.Clone()
	return agg.Clone(), nil
}

// UpsertNewsletterSubscription reports true when the email was not yet subscribed.
func (s *ProfileService) UpsertNewsletterSubscription(_ context.Context, email, profileID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return false, s.fail
	}
	_, existed := s.newsletters[email]
	s.newsletters[email] = profileID
	return !existed, nil
}
