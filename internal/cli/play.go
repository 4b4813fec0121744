package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tweet-quiz-service/internal/app"
	"tweet-quiz-service/internal/auth"
	"tweet-quiz-service/internal/config"
	"tweet-quiz-service/internal/domain"
	"tweet-quiz-service/internal/infra/sqlite"
)

const terminalDevice = "terminal"

// NewPlayCmd runs the quiz in the terminal with a SQLite-backed device cache.
func NewPlayCmd(configPath *string) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play the quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = cfg.Cache.SQLitePath
			}
			if dbPath == "" {
				dbPath = "data/quiz.db"
			}
			return runPlay(cmd.Context(), cfg, dbPath, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite cache path (defaults to cache.sqlite_path)")
	return cmd
}

func runPlay(ctx context.Context, cfg config.Config, dbPath string, in io.Reader, out io.Writer) error {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return err
		}
	}
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	items, err := loadContent(cfg)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	appCfg := app.Config{
		Items:     items,
		Cache:     db.Cache(terminalDevice),
		Presenter: newTerminalPresenter(out, targetName(cfg)),
		Target:    targetName(cfg),
		Logger:    logger,
	}
	if cfg.Auth.JWTSecret != "" {
		verifier, err := auth.NewHMACVerifier(cfg.Auth.JWTSecret, jwtIssuer(cfg))
		if err != nil {
			return err
		}
		appCfg.Provider = auth.NewProvider(auth.Options{Verifier: verifier, Store: db.Sessions(terminalDevice)})
	}
	quiz := app.New(appCfg)

	fmt.Fprintln(out, "Commands: y (they said it), n (they didn't), next, restart, fav, unfav <id>, stats, signin <token>, signout, quit")

	actions := make(chan app.Action)
	go func() {
		defer close(actions)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			act, ok, quit := parseCommand(scanner.Text())
			if quit {
				return
			}
			if !ok {
				fmt.Fprintln(out, "unknown command")
				continue
			}
			select {
			case actions <- act:
			case <-ctx.Done():
				return
			}
		}
	}()
	return quiz.Run(ctx, actions)
}

// parseCommand maps a terminal line onto an action. quit is set for "quit"/"exit".
func parseCommand(line string) (act app.Action, ok, quit bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return app.Action{}, false, false
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	switch strings.ToLower(fields[0]) {
	case "y", "yes":
		return app.Action{Kind: app.ActionGuess, Claim: true}, true, false
	case "n", "no":
		return app.Action{Kind: app.ActionGuess, Claim: false}, true, false
	case "next":
		return app.Action{Kind: app.ActionNext}, true, false
	case "restart":
		return app.Action{Kind: app.ActionRestart}, true, false
	case "play":
		return app.Action{Kind: app.ActionPlay}, true, false
	case "fav":
		return app.Action{Kind: app.ActionToggleFavorite}, true, false
	case "unfav":
		// Favorite ids may contain spaces.
		return app.Action{Kind: app.ActionRemoveFavorite, ID: strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))}, true, false
	case "stats":
		return app.Action{Kind: app.ActionStats}, true, false
	case "signin":
		if arg == "" {
			return app.Action{Kind: app.ActionSignIn}, true, false
		}
		return app.Action{Kind: app.ActionCredential, Credential: arg}, true, false
	case "signout":
		return app.Action{Kind: app.ActionSignOut}, true, false
	case "newsletter":
		return app.Action{Kind: app.ActionNewsletter, Email: arg}, true, false
	case "quit", "exit":
		return app.Action{}, false, true
	}
	return app.Action{}, false, false
}

// terminalPresenter renders view signals as colored text.
type terminalPresenter struct {
	out    io.Writer
	target string
	good   *color.Color
	bad    *color.Color
	dim    *color.Color
	strong *color.Color
}

func newTerminalPresenter(out io.Writer, target string) *terminalPresenter {
	return &terminalPresenter{
		out:    out,
		target: target,
		good:   color.New(color.FgGreen, color.Bold),
		bad:    color.New(color.FgRed, color.Bold),
		dim:    color.New(color.Faint),
		strong: color.New(color.Bold),
	}
}

func (p *terminalPresenter) EnterAuthenticated(identity domain.Identity) {
	p.strong.Fprintf(p.out, "Signed in as %s\n", identity.DisplayName)
}

func (p *terminalPresenter) EnterSignIn() {
	p.dim.Fprintln(p.out, "Not signed in. Play anyway, or sign in to keep stats and favorites.")
}

func (p *terminalPresenter) RedirectToSignIn(url string) {
	fmt.Fprintf(p.out, "Open this URL to sign in: %s\n", url)
}

func (p *terminalPresenter) RenderItem(item domain.QuizItem) {
	fmt.Fprintf(p.out, "\n  \"%s\"\n", item.Text)
	p.dim.Fprintf(p.out, "  %s\n", item.Date)
	fmt.Fprintf(p.out, "Did %s tweet this? [y/n]\n", p.target)
}

func (p *terminalPresenter) RenderResult(result domain.GuessResult) {
	c := p.bad
	if result.Correct {
		c = p.good
	}
	c.Fprintln(p.out, result.Headline)
	fmt.Fprintln(p.out, result.Detail)
}

func (p *terminalPresenter) RenderScoreboard(board domain.Scoreboard) {
	p.dim.Fprintf(p.out, "Score %d | %d/%d | Streak %d\n", board.Score, board.Current, board.Total, board.Streak)
}

func (p *terminalPresenter) RenderCompletion(c domain.Completion) {
	p.strong.Fprintf(p.out, "\nFinal score: %d/%d (%.0f%%), best streak %d\n", c.Score, c.Total, c.Percentage, c.MaxStreak)
	fmt.Fprintln(p.out, c.Message)
}

func (p *terminalPresenter) RenderFavorites(favorites []domain.FavoriteItem) {
	if len(favorites) == 0 {
		p.dim.Fprintln(p.out, "No favorites yet.")
		return
	}
	for _, f := range favorites {
		fmt.Fprintf(p.out, "  * \"%s\" (%s, %s)\n", f.Text, f.DisplayAuthor, f.Date)
		p.dim.Fprintf(p.out, "    id: %s\n", f.ID)
	}
}

func (p *terminalPresenter) RenderFavoriteButton(saved bool) {
	if saved {
		p.dim.Fprintln(p.out, "[saved to favorites]")
	}
}

func (p *terminalPresenter) RenderStats(agg domain.UserAggregate) {
	p.strong.Fprintf(p.out, "Best score %d | Games played %d | Best streak %d\n", agg.BestScore, agg.GamesPlayed, agg.BestStreak)
}

func (p *terminalPresenter) Notice(message string) {
	color.New(color.FgYellow).Fprintln(p.out, message)
}
