package app

import (
	"fmt"
	"math/rand"
	"time"

	"tweet-quiz-service/internal/domain"
)

// Phase is the play-through lifecycle state.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseInProgress
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseInProgress:
		return "in_progress"
	case PhaseCompleted:
		return "completed"
	default:
		return "uninitialized"
	}
}

// Game is the quiz engine for one play-through at a time. It is not safe for
// concurrent use; the owning App serializes access.
type Game struct {
	items  []domain.QuizItem
	target string
	rnd    *rand.Rand

	phase    Phase
	answered bool
	state    domain.PlaythroughState
}

// NewGame builds an engine over a fixed item set.
func NewGame(items []domain.QuizItem, target string) *Game {
	return NewGameWithRand(items, target, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewGameWithRand allows deterministic shuffles in tests.
func NewGameWithRand(items []domain.QuizItem, target string, rnd *rand.Rand) *Game {
	if target == "" {
		target = domain.DefaultTarget
	}
	return &Game{items: items, target: target, rnd: rnd}
}

// Start begins a new play-through over a fresh permutation of the content.
func (g *Game) Start() {
	g.state = domain.PlaythroughState{Order: g.shuffle()}
	g.answered = false
	if len(g.state.Order) == 0 {
		g.phase = PhaseCompleted
		return
	}
	g.phase = PhaseInProgress
}

// Restart is Start from any state.
func (g *Game) Restart() {
	g.Start()
}

// shuffle is a Fisher-Yates pass over a copy of the items.
func (g *Game) shuffle() []domain.QuizItem {
	order := make([]domain.QuizItem, len(g.items))
	copy(order, g.items)
	for i := len(order) - 1; i > 0; i-- {
		j := g.rnd.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

func (g *Game) Phase() Phase {
	return g.phase
}

// Answered reports whether the current item has been guessed.
func (g *Game) Answered() bool {
	return g.answered
}

// CurrentItem returns the item at the current position.
func (g *Game) CurrentItem() (domain.QuizItem, error) {
	if g.phase != PhaseInProgress {
		return domain.QuizItem{}, domain.ErrNoCurrentItem
	}
	return g.state.Order[g.state.Position], nil
}

// Guess scores a claim that the current item is attributed to the target.
func (g *Game) Guess(claim bool) (domain.GuessResult, error) {
	if g.phase != PhaseInProgress {
		return domain.GuessResult{}, domain.ErrNotInProgress
	}
	if g.answered {
		return domain.GuessResult{}, domain.ErrAlreadyAnswered
	}

	item := g.state.Order[g.state.Position]
	correct := claim == item.AttributedToTarget
	if correct {
		g.state.Score++
		g.state.Streak++
		if g.state.Streak > g.state.MaxStreak {
			g.state.MaxStreak = g.state.Streak
		}
	} else {
		g.state.Streak = 0
	}
	g.answered = true

	return g.describe(correct, item), nil
}

func (g *Game) describe(correct bool, item domain.QuizItem) domain.GuessResult {
	res := domain.GuessResult{
		Correct:        correct,
		Item:           item,
		Author:         item.Author(g.target),
		StreakAtResult: g.state.Streak,
	}
	switch {
	case correct && g.state.Streak >= 3:
		res.Headline = fmt.Sprintf("%d in a row!", g.state.Streak)
	case correct:
		res.Headline = "Correct!"
	default:
		res.Headline = "Wrong!"
	}
	switch {
	case correct && item.AttributedToTarget:
		res.Detail = fmt.Sprintf("That was indeed %s!", g.target)
	case correct:
		res.Detail = fmt.Sprintf("Not %s! That was %s", g.target, item.RealAuthor)
	case item.AttributedToTarget:
		res.Detail = fmt.Sprintf("That was actually %s!", g.target)
	default:
		res.Detail = fmt.Sprintf("That was %s, not %s!", item.RealAuthor, g.target)
	}
	return res
}

// Advance moves past an answered item. It reports true when the play-through completed.
func (g *Game) Advance() (bool, error) {
	if g.phase != PhaseInProgress {
		return false, domain.ErrNotInProgress
	}
	if !g.answered {
		return false, domain.ErrNotAnswered
	}
	g.state.Position++
	g.answered = false
	if g.state.Position >= len(g.state.Order) {
		g.phase = PhaseCompleted
		return true, nil
	}
	return false, nil
}

// State returns a copy of the play-through counters.
func (g *Game) State() domain.PlaythroughState {
	s := g.state
	s.Order = append([]domain.QuizItem(nil), g.state.Order...)
	return s
}

// Total is the number of items in a play-through.
func (g *Game) Total() int {
	return len(g.items)
}

// Scoreboard returns the running score view.
func (g *Game) Scoreboard() domain.Scoreboard {
	current := g.state.Position + 1
	if current > len(g.state.Order) {
		current = len(g.state.Order)
	}
	return domain.Scoreboard{
		Score:   g.state.Score,
		Current: current,
		Total:   len(g.state.Order),
		Streak:  g.state.Streak,
	}
}

// Completion summarizes the play-through. An empty item set scores 0/0 at 0%.
func (g *Game) Completion() domain.Completion {
	total := len(g.state.Order)
	pct := 0.0
	if total > 0 {
		pct = float64(g.state.Score) / float64(total) * 100
	}
	return domain.Completion{
		Score:      g.state.Score,
		Total:      total,
		MaxStreak:  g.state.MaxStreak,
		Percentage: pct,
		Message:    completionMessage(pct, g.target),
	}
}

func completionMessage(pct float64, target string) string {
	switch {
	case pct >= 90:
		return fmt.Sprintf("You're a %s expert!", target)
	case pct >= 70:
		return fmt.Sprintf("Great job! You've got that %s intuition!", target)
	case pct >= 50:
		return "Not bad! You know some of the energy!"
	case pct >= 30:
		return "Keep studying those tweets!"
	default:
		return fmt.Sprintf("Maybe listen to more %s interviews?", target)
	}
}
