package domain

import (
	"fmt"
	"time"
)

// DefaultTarget is the author players guess against unless configured otherwise.
const DefaultTarget = "Kanye West"

// favoriteIDLength is the number of leading characters of an item's text used as its favorite key.
const favoriteIDLength = 50

// Identity is the authenticated user as reported by the identity provider.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	PictureURL  string `json:"picture,omitempty"`
}

// Session is a provider-issued session for an identity.
type Session struct {
	User        Identity  `json:"user"`
	Provider    string    `json:"provider"`
	AccessToken string    `json:"-"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
}

// SessionEventKind names a session transition reported by the provider.
type SessionEventKind string

const (
	SessionSignedIn  SessionEventKind = "signed_in"
	SessionSignedOut SessionEventKind = "signed_out"
)

// SessionEvent is delivered on every provider session change. Session is nil when signed out.
type SessionEvent struct {
	Kind    SessionEventKind
	Session *Session
}

// Profile is the remote record for an identity, matched by the provider-issued id.
type Profile struct {
	ID          string    `json:"id"`
	ProviderID  string    `json:"providerId"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	PictureURL  string    `json:"pictureUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// QuizItem is a single attribution statement from the content store.
type QuizItem struct {
	Text               string `json:"text" yaml:"text"`
	AttributedToTarget bool   `json:"attributedToTarget" yaml:"attributed_to_target"`
	Date               string `json:"date" yaml:"date"`
	RealAuthor         string `json:"realAuthor,omitempty" yaml:"real_author,omitempty"`
}

// Validate checks that non-target items name their real author.
func (q QuizItem) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidItem)
	}
	if !q.AttributedToTarget && q.RealAuthor == "" {
		return fmt.Errorf("%w: %q has no real author", ErrInvalidItem, FavoriteID(q.Text))
	}
	return nil
}

// Author resolves the human-readable author of the item.
func (q QuizItem) Author(target string) string {
	if q.AttributedToTarget {
		return target
	}
	return q.RealAuthor
}

// FavoriteItem is a saved quiz item. Its ID is derived from the item text.
type FavoriteItem struct {
	ID                 string `json:"id"`
	Text               string `json:"text"`
	AttributedToTarget bool   `json:"attributedToTarget"`
	DisplayAuthor      string `json:"author"`
	Date               string `json:"date"`
}

// FavoriteID derives the favorite key from an item's text: its first 50 characters.
// Two items sharing that prefix collide.
func FavoriteID(text string) string {
	runes := []rune(text)
	if len(runes) <= favoriteIDLength {
		return text
	}
	return string(runes[:favoriteIDLength])
}

// NewFavorite builds a FavoriteItem from a quiz item.
func NewFavorite(item QuizItem, target string) FavoriteItem {
	return FavoriteItem{
		ID:                 FavoriteID(item.Text),
		Text:               item.Text,
		AttributedToTarget: item.AttributedToTarget,
		DisplayAuthor:      item.Author(target),
		Date:               item.Date,
	}
}

// UserAggregate is the per-identity durable record of stats and favorites.
type UserAggregate struct {
	BestScore   int            `json:"bestScore"`
	GamesPlayed int            `json:"gamesPlayed"`
	BestStreak  int            `json:"bestStreak"`
	Favorites   []FavoriteItem `json:"favorites"`
}

// NewUserAggregate returns the zero-value record used when nothing is stored.
func NewUserAggregate() UserAggregate {
	return UserAggregate{Favorites: []FavoriteItem{}}
}

// Fold records one completed play-through.
func (a UserAggregate) Fold(score, maxStreak int) UserAggregate {
	out := a.Clone()
	out.GamesPlayed++
	if score > out.BestScore {
		out.BestScore = score
	}
	if maxStreak > out.BestStreak {
		out.BestStreak = maxStreak
	}
	return out
}

// Clone returns a copy that does not share the favorites slice.
func (a UserAggregate) Clone() UserAggregate {
	out := a
	out.Favorites = make([]FavoriteItem, len(a.Favorites))
	copy(out.Favorites, a.Favorites)
	return out
}

// HasFavorite reports whether a favorite with id is saved.
func (a UserAggregate) HasFavorite(id string) bool {
	return a.favoriteIndex(id) >= 0
}

// WithoutFavorite returns the aggregate with the favorite id removed.
func (a UserAggregate) WithoutFavorite(id string) UserAggregate {
	out := a.Clone()
	filtered := out.Favorites[:0]
	for _, f := range out.Favorites {
		if f.ID != id {
			filtered = append(filtered, f)
		}
	}
	out.Favorites = filtered
	return out
}

// WithFavorite appends fav unless its id is already present.
func (a UserAggregate) WithFavorite(fav FavoriteItem) UserAggregate {
	out := a.Clone()
	if out.favoriteIndex(fav.ID) < 0 {
		out.Favorites = append(out.Favorites, fav)
	}
	return out
}

func (a UserAggregate) favoriteIndex(id string) int {
	for i, f := range a.Favorites {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// Normalize clamps negative counters and drops duplicate favorite ids from decoded data.
func (a UserAggregate) Normalize() UserAggregate {
	out := UserAggregate{
		BestScore:   max(a.BestScore, 0),
		GamesPlayed: max(a.GamesPlayed, 0),
		BestStreak:  max(a.BestStreak, 0),
		Favorites:   make([]FavoriteItem, 0, len(a.Favorites)),
	}
	seen := make(map[string]struct{}, len(a.Favorites))
	for _, f := range a.Favorites {
		if _, ok := seen[f.ID]; ok {
			continue
		}
		seen[f.ID] = struct{}{}
		out.Favorites = append(out.Favorites, f)
	}
	return out
}

// PlaythroughState is the in-memory state of one pass over the content.
type PlaythroughState struct {
	Order     []QuizItem `json:"-"`
	Position  int        `json:"position"`
	Score     int        `json:"score"`
	Streak    int        `json:"streak"`
	MaxStreak int        `json:"maxStreak"`
}

// GuessResult describes the outcome of one guess.
type GuessResult struct {
	Correct        bool     `json:"correct"`
	Item           QuizItem `json:"item"`
	Author         string   `json:"author"`
	StreakAtResult int      `json:"streak"`
	Headline       string   `json:"headline"`
	Detail         string   `json:"detail"`
}

// Scoreboard is the running score view. Current is 1-based.
type Scoreboard struct {
	Score   int `json:"score"`
	Current int `json:"current"`
	Total   int `json:"total"`
	Streak  int `json:"streak"`
}

// Completion summarizes a finished play-through.
type Completion struct {
	Score      int     `json:"score"`
	Total      int     `json:"total"`
	MaxStreak  int     `json:"maxStreak"`
	Percentage float64 `json:"percentage"`
	Message    string  `json:"message"`
}
