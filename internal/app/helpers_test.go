package app_test

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"tweet-quiz-service/internal/app"
	"tweet-quiz-service/internal/domain"
	"tweet-quiz-service/internal/infra/memory"
)

// recorder is a Presenter that keeps every signal for assertions.
type recorder struct {
	mu            sync.Mutex
	authenticated []domain.Identity
	signIn        int
	redirects     []string
	items         []domain.QuizItem
	results       []domain.GuessResult
	boards        []domain.Scoreboard
	completions   []domain.Completion
	favorites     [][]domain.FavoriteItem
	buttons       []bool
	stats         []domain.UserAggregate
	notices       []string
}

func (r *recorder) EnterAuthenticated(id domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authenticated = append(r.authenticated, id)
}

func (r *recorder) EnterSignIn() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signIn++
}

func (r *recorder) RedirectToSignIn(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects = append(r.redirects, url)
}

func (r *recorder) RenderItem(item domain.QuizItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
}

func (r *recorder) RenderResult(res domain.GuessResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) RenderScoreboard(b domain.Scoreboard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boards = append(r.boards, b)
}

func (r *recorder) RenderCompletion(c domain.Completion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completions = append(r.completions, c)
}

func (r *recorder) RenderFavorites(f []domain.FavoriteItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.favorites = append(r.favorites, f)
}

func (r *recorder) RenderFavoriteButton(saved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buttons = append(r.buttons, saved)
}

func (r *recorder) RenderStats(agg domain.UserAggregate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = append(r.stats, agg)
}

func (r *recorder) Notice(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, msg)
}

func (r *recorder) authCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.authenticated)
}

func (r *recorder) signInCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.signIn
}

func (r *recorder) lastNotice() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return ""
	}
	return r.notices[len(r.notices)-1]
}

// fakeProvider is an in-memory identity provider.
type fakeProvider struct {
	mu          sync.Mutex
	session     *domain.Session
	unavailable bool
	signOutErr  error
	events      chan domain.SessionEvent
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{events: make(chan domain.SessionEvent, 8)}
}

func (p *fakeProvider) SignIn(context.Context) (string, error) {
	return "https://accounts.example.com/auth?state=abc", nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signOutErr != nil {
		return p.signOutErr
	}
	p.session = nil
	return nil
}

func (p *fakeProvider) CurrentSession(context.Context) (*domain.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unavailable {
		return nil, domain.ErrProviderUnavailable
	}
	return p.session, nil
}

func (p *fakeProvider) Subscribe() (<-chan domain.SessionEvent, func()) {
	return p.events, func() {}
}

func (p *fakeProvider) SignInWithCredential(_ context.Context, credential string) error {
	s := &domain.Session{User: domain.Identity{ID: credential, DisplayName: "Cred User"}}
	p.mu.Lock()
	p.session = s
	p.mu.Unlock()
	p.events <- domain.SessionEvent{Kind: domain.SessionSignedIn, Session: s}
	return nil
}

type fixture struct {
	app      *app.App
	view     *recorder
	cache    *memory.LocalCache
	profiles *memory.ProfileService
	provider *fakeProvider
}

func newFixture(t *testing.T, items []domain.QuizItem) *fixture {
	t.Helper()
	f := &fixture{
		view:     &recorder{},
		cache:    memory.NewLocalCache(),
		profiles: memory.NewProfileService(),
		provider: newFakeProvider(),
	}
	f.app = app.New(app.Config{
		Items:     items,
		Provider:  f.provider,
		Profiles:  f.profiles,
		Cache:     f.cache,
		Presenter: f.view,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Rand:      rand.New(rand.NewSource(1)),
	})
	return f
}

func (f *fixture) signIn(ctx context.Context, id domain.Identity) {
	f.app.Sessions().OnSessionChange(ctx, &domain.Session{User: id})
}

// playThrough answers every item, correctly when correct(i) is true.
func playThrough(t *testing.T, ctx context.Context, a *app.App, correct func(i int) bool) {
	t.Helper()
	for i := 0; a.Game().Phase() == app.PhaseInProgress; i++ {
		item, err := a.Game().CurrentItem()
		require.NoError(t, err)
		claim := item.AttributedToTarget
		if !correct(i) {
			claim = !claim
		}
		require.NoError(t, a.Guess(ctx, claim))
		require.NoError(t, a.Next(ctx))
	}
}

func alice() domain.Identity {
	return domain.Identity{ID: "google-alice", DisplayName: "Alice", Email: "alice@example.com"}
}

func sampleItems() []domain.QuizItem {
	return []domain.QuizItem{
		{Text: "I'm nice at ping pong", AttributedToTarget: true, Date: "Nov 21, 2010"},
		{Text: "Fur pillows are hard to actually sleep on", AttributedToTarget: true, Date: "Dec 30, 2010"},
		{Text: "Eggs are just boneless chickens", Date: "Aug 30, 2018", RealAuthor: "Random Internet Person"},
		{Text: "How can mirrors be real if our eyes aren't real", Date: "Sep 6, 2013", RealAuthor: "Jaden Smith"},
	}
}
