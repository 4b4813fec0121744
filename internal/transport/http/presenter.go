package http

import (
	"tweet-quiz-service/internal/domain"
)

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type noticePayload struct {
	Message string `json:"message"`
}

type redirectPayload struct {
	URL string `json:"url"`
}

type helloPayload struct {
	DeviceID string `json:"deviceId"`
}

// itemPayload hides the attribution until the item is answered.
type itemPayload struct {
	Text string `json:"text"`
	Date string `json:"date"`
}

type favoriteButtonPayload struct {
	Saved bool `json:"saved"`
}

type favoritesPayload struct {
	Favorites []domain.FavoriteItem `json:"favorites"`
}

// wsPresenter turns view signals into outbound websocket messages. Sends stop
// once done is closed so a dead writer never blocks the App.
type wsPresenter struct {
	send chan<- outboundMessage[any]
	done <-chan struct{}
}

func (p *wsPresenter) emit(kind string, payload any) {
	select {
	case p.send <- outboundMessage[any]{Type: kind, Payload: payload}:
	case <-p.done:
	}
}

func (p *wsPresenter) EnterAuthenticated(identity domain.Identity) {
	p.emit("authenticated", identity)
}

func (p *wsPresenter) EnterSignIn() {
	p.emit("signIn", struct{}{})
}

func (p *wsPresenter) RedirectToSignIn(url string) {
	p.emit("signInRedirect", redirectPayload{URL: url})
}

func (p *wsPresenter) RenderItem(item domain.QuizItem) {
	p.emit("item", itemPayload{Text: item.Text, Date: item.Date})
}

func (p *wsPresenter) RenderResult(result domain.GuessResult) {
	p.emit("result", result)
}

func (p *wsPresenter) RenderScoreboard(board domain.Scoreboard) {
	p.emit("scoreboard", board)
}

func (p *wsPresenter) RenderCompletion(completion domain.Completion) {
	p.emit("completion", completion)
}

func (p *wsPresenter) RenderFavorites(favorites []domain.FavoriteItem) {
	if favorites == nil {
		favorites = []domain.FavoriteItem{}
	}
	p.emit("favorites", favoritesPayload{Favorites: favorites})
}

func (p *wsPresenter) RenderFavoriteButton(saved bool) {
	p.emit("favoriteButton", favoriteButtonPayload{Saved: saved})
}

func (p *wsPresenter) RenderStats(agg domain.UserAggregate) {
	p.emit("stats", agg)
}

func (p *wsPresenter) Notice(message string) {
	p.emit("notice", noticePayload{Message: message})
}
