package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweet-quiz-service/internal/app"
	"tweet-quiz-service/internal/domain"
	"tweet-quiz-service/internal/infra/memory"
)

func TestSignInStartsPlaythrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleItems())

	f.signIn(ctx, alice())

	require.Equal(t, 1, f.view.authCount())
	assert.Equal(t, app.PhaseInProgress, f.app.Game().Phase())
	require.NotEmpty(t, f.view.items)
	require.NotNil(t, f.app.Sessions().Profile())

	cached, err := f.cache.LoadIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "google-alice", cached.ID)
}

func TestUnauthenticatedPlaythroughLeavesCacheUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleItems())

	before := domain.NewUserAggregate().Fold(1, 1)
	require.NoError(t, f.cache.SaveAggregate(ctx, "google-alice", before))

	f.app.StartGame(ctx)
	playThrough(t, ctx, f.app, func(int) bool { return true })

	require.Len(t, f.view.completions, 1)
	assert.Equal(t, 4, f.view.completions[0].Score)

	after, ok, err := f.cache.LoadAggregate(ctx, "google-alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestAggregateMonotonicAcrossPlaythroughs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleItems())
	f.signIn(ctx, alice())

	patterns := []func(int) bool{
		func(int) bool { return true },
		func(i int) bool { return i%2 == 0 },
		func(int) bool { return false },
	}
	scores, streaks := []int{}, []int{}
	for _, p := range patterns {
		f.app.StartGame(ctx)
		playThrough(t, ctx, f.app, p)
		state := f.app.Game().State()
		scores = append(scores, state.Score)
		streaks = append(streaks, state.MaxStreak)
	}

	agg := f.app.Sessions().LoadAggregate(ctx)
	// The sign-in hook started one play-through that was replaced before completion.
	assert.Equal(t, len(patterns), agg.GamesPlayed)
	for i := range scores {
		assert.GreaterOrEqual(t, agg.BestScore, scores[i])
		assert.GreaterOrEqual(t, agg.BestStreak, streaks[i])
	}
	assert.Equal(t, 4, agg.BestScore)

	remote, err := f.profiles.FetchAggregate(ctx, f.app.Sessions().Profile().ID)
	require.NoError(t, err)
	assert.Equal(t, agg.GamesPlayed, remote.GamesPlayed)
}

func TestFavoriteToggleRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleItems())
	f.signIn(ctx, alice())

	favs := f.app.Favorites()
	first := favs.IsFavorited(ctx)
	assert.Equal(t, first, favs.IsFavorited(ctx))
	assert.False(t, first)

	before := f.app.Sessions().LoadAggregate(ctx).Favorites

	require.NoError(t, favs.Toggle(ctx))
	assert.True(t, favs.IsFavorited(ctx))
	assert.Len(t, f.app.Sessions().LoadAggregate(ctx).Favorites, len(before)+1)

	require.NoError(t, favs.Toggle(ctx))
	assert.False(t, favs.IsFavorited(ctx))
	assert.Equal(t, before, f.app.Sessions().LoadAggregate(ctx).Favorites)
}

func TestFavoriteRequiresSignIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleItems())
	f.app.StartGame(ctx)

	require.NoError(t, f.app.Favorites().Toggle(ctx))
	assert.Equal(t, "Please sign in to save favorite tweets!", f.view.lastNotice())
	assert.False(t, f.app.Favorites().IsFavorited(ctx))
}

func TestIsFavoritedFalseWhenSignedOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleItems())
	f.signIn(ctx, alice())
	require.NoError(t, f.app.Favorites().Toggle(ctx))
	require.True(t, f.app.Favorites().IsFavorited(ctx))

	f.app.Sessions().OnSessionChange(ctx, nil)
	assert.False(t, f.app.Favorites().IsFavorited(ctx))
}

func TestRemoveFavoriteRerendersList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleItems())
	f.signIn(ctx, alice())
	require.NoError(t, f.app.Favorites().Toggle(ctx))

	item, err := f.app.Game().CurrentItem()
	require.NoError(t, err)
	require.NoError(t, f.app.Favorites().Remove(ctx, domain.FavoriteID(item.Text)))

	require.NotEmpty(t, f.view.favorites)
	assert.Empty(t, f.view.favorites[len(f.view.favorites)-1])
	assert.Empty(t, f.app.Sessions().LoadAggregate(ctx).Favorites)
}

func TestSignOutSignInRestoresAggregateWhenRemoteUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleItems())
	f.profiles.SetFailure(errors.New("service unavailable"))

	f.signIn(ctx, alice())
	assert.Nil(t, f.app.Sessions().Profile())
	require.NoError(t, f.app.Favorites().Toggle(ctx))
	playThrough(t, ctx, f.app, func(int) bool { return true })
	before := f.app.Sessions().LoadAggregate(ctx)
	require.Equal(t, 1, before.GamesPlayed)

	f.app.Sessions().SignOut(ctx)
	assert.False(t, f.app.Sessions().Authenticated())
	cached, err := f.cache.LoadIdentity(ctx)
	require.NoError(t, err)
	assert.Nil(t, cached)

	f.signIn(ctx, alice())
	assert.Equal(t, before, f.app.Sessions().LoadAggregate(ctx))
}

func TestRemoteAggregateOverwritesLocalAtSignIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleItems())

	require.NoError(t, f.cache.SaveAggregate(ctx, "google-alice", domain.NewUserAggregate().Fold(1, 1)))
	profile, err := f.profiles.UpsertProfile(ctx, domain.Profile{ProviderID: "google-alice", DisplayName: "Old Name"})
	require.NoError(t, err)
	remote := domain.NewUserAggregate().Fold(3, 3).Fold(2, 1)
	_, err = f.profiles.UpsertAggregate(ctx, profile.ID, remote)
	require.NoError(t, err)

	f.signIn(ctx, alice())

	got := f.app.Sessions().LoadAggregate(ctx)
	assert.Equal(t, 2, got.GamesPlayed)
	assert.Equal(t, 3, got.BestScore)
	assert.Equal(t, profile.ID, f.app.Sessions().Profile().ID)
	assert.Equal(t, "Alice", f.app.Sessions().Profile().DisplayName)
}

func TestCheckExistingSessionFallsBackToCachedIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleItems())
	f.provider.unavailable = true
	require.NoError(t, f.cache.SaveIdentity(ctx, alice()))

	f.app.Init(ctx)

	id, ok := f.app.Sessions().Identity()
	require.True(t, ok)
	assert.Equal(t, "google-alice", id.ID)
	assert.True(t, f.app.Sessions().Offline())
	assert.Nil(t, f.app.Sessions().Profile())
	assert.Equal(t, app.PhaseInProgress, f.app.Game().Phase())
}

func TestCheckExistingSessionWithoutSessionShowsSignIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleItems())
	require.NoError(t, f.cache.SaveIdentity(ctx, alice()))

	f.app.Init(ctx)

	assert.False(t, f.app.Sessions().Authenticated())
	assert.Equal(t, 1, f.view.signInCount())
}

func TestSignOutSurvivesProviderFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleItems())
	f.signIn(ctx, alice())
	f.provider.signOutErr = errors.New("network down")

	f.app.Sessions().SignOut(ctx)

	assert.False(t, f.app.Sessions().Authenticated())
	assert.Equal(t, 1, f.view.signInCount())
	assert.Contains(t, f.view.lastNotice(), "signed out on this device")
}

func TestLocalOnlyAppWithoutProvider(t *testing.T) {
	ctx := context.Background()
	view := &recorder{}
	a := app.New(app.Config{Items: sampleItems(), Cache: memory.NewLocalCache(), Presenter: view})

	a.Init(ctx)
	assert.Equal(t, 1, view.signInCount())

	a.SignIn(ctx)
	assert.Empty(t, view.redirects)
	assert.Equal(t, "Sign-in is not available right now.", view.lastNotice())
	assert.ErrorIs(t, a.Dispatch(ctx, app.Action{Kind: app.ActionCredential, Credential: "x"}), domain.ErrProviderUnavailable)
}

func TestNewsletterRequiresLinkedProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleItems())

	assert.ErrorIs(t, f.app.SubscribeNewsletter(ctx, ""), domain.ErrNotAuthenticated)

	f.signIn(ctx, alice())
	require.NoError(t, f.app.SubscribeNewsletter(ctx, ""))
	assert.Equal(t, "Subscribed to the newsletter.", f.view.lastNotice())
	require.NoError(t, f.app.SubscribeNewsletter(ctx, "alice@example.com"))
	assert.Equal(t, "You are already subscribed.", f.view.lastNotice())
}

func TestShowStatsRendersAggregate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleItems())
	f.signIn(ctx, alice())
	playThrough(t, ctx, f.app, func(int) bool { return true })

	f.app.ShowStats(ctx)
	require.Len(t, f.view.stats, 1)
	assert.Equal(t, 4, f.view.stats[0].BestScore)
	assert.Equal(t, 1, f.view.stats[0].GamesPlayed)
}

func TestDispatchRejectsInvalidState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleItems())

	assert.ErrorIs(t, f.app.Dispatch(ctx, app.Action{Kind: app.ActionGuess, Claim: true}), domain.ErrNotInProgress)
	require.NoError(t, f.app.Dispatch(ctx, app.Action{Kind: app.ActionPlay}))
	assert.ErrorIs(t, f.app.Dispatch(ctx, app.Action{Kind: app.ActionNext}), domain.ErrNotAnswered)
	assert.Error(t, f.app.Dispatch(ctx, app.Action{Kind: "dance"}))
}

func TestRunDrainsSessionEventsAndActionsInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, sampleItems())

	actions := make(chan app.Action)
	done := make(chan error, 1)
	go func() { done <- f.app.Run(ctx, actions) }()

	actions <- app.Action{Kind: app.ActionCredential, Credential: "google-bob"}
	require.Eventually(t, func() bool { return f.view.authCount() == 1 }, time.Second, 10*time.Millisecond)

	actions <- app.Action{Kind: app.ActionSignOut}
	require.Eventually(t, func() bool { return f.view.signInCount() >= 2 }, time.Second, 10*time.Millisecond)

	close(actions)
	require.NoError(t, <-done)
	assert.False(t, f.app.Sessions().Authenticated())
}
