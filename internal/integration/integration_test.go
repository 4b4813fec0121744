package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"tweet-quiz-service/internal/app"
	"tweet-quiz-service/internal/content"
	"tweet-quiz-service/internal/domain"
	"tweet-quiz-service/internal/infra/postgres"
	pgmigrations "tweet-quiz-service/internal/infra/postgres/migrations"
	infraredis "tweet-quiz-service/internal/infra/redis"
)

func TestPlaythroughSyncsAcrossDevicesEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migrateDB(t, ctx, pgURL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := postgres.NewItemStore(pool)
	if err := store.ReplaceItems(ctx, content.Default()); err != nil {
		t.Fatalf("seed items: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	items, err := infraredis.NewItemRepository(redisClient, store, 5*time.Minute).Items(ctx)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 20 {
		t.Fatalf("expected 20 seeded items, got %d", len(items))
	}

	profiles := postgres.NewProfileService(db)
	alice := domain.Identity{ID: "google-alice", DisplayName: "Alice", Email: "alice@example.com"}

	laptopView := &countingPresenter{}
	laptop := app.New(app.Config{
		Items:     items,
		Profiles:  profiles,
		Cache:     infraredis.NewLocalCache(redisClient, "laptop", time.Hour),
		Presenter: laptopView,
	})
	laptop.Sessions().OnSessionChange(ctx, &domain.Session{User: alice})
	if laptop.Sessions().Profile() == nil {
		t.Fatalf("expected linked profile")
	}
	for laptop.Game().Phase() == app.PhaseInProgress {
		item, err := laptop.Game().CurrentItem()
		if err != nil {
			t.Fatalf("current item: %v", err)
		}
		if err := laptop.Guess(ctx, item.AttributedToTarget); err != nil {
			t.Fatalf("guess: %v", err)
		}
		if err := laptop.Next(ctx); err != nil {
			t.Fatalf("next: %v", err)
		}
	}
	if laptopView.completions() != 1 {
		t.Fatalf("expected one completion, got %d", laptopView.completions())
	}

	remote, err := profiles.FetchAggregate(ctx, laptop.Sessions().Profile().ID)
	if err != nil || remote == nil {
		t.Fatalf("fetch aggregate: %+v err=%v", remote, err)
	}
	if remote.GamesPlayed != 1 || remote.BestScore != 20 || remote.BestStreak != 20 {
		t.Fatalf("unexpected remote aggregate %+v", remote)
	}

	phone := app.New(app.Config{
		Items:     items,
		Profiles:  profiles,
		Cache:     infraredis.NewLocalCache(redisClient, "phone", time.Hour),
		Presenter: &countingPresenter{},
	})
	phone.Sessions().OnSessionChange(ctx, &domain.Session{User: alice})
	if got := phone.Sessions().LoadAggregate(ctx); got.BestScore != 20 || got.GamesPlayed != 1 {
		t.Fatalf("expected remote aggregate on second device, got %+v", got)
	}
	if phone.Sessions().Profile().ID != laptop.Sessions().Profile().ID {
		t.Fatalf("expected the same profile on both devices")
	}

	first, err := profiles.UpsertNewsletterSubscription(ctx, alice.Email, phone.Sessions().Profile().ID)
	if err != nil || !first {
		t.Fatalf("expected new subscription, got %v err=%v", first, err)
	}
	again, err := profiles.UpsertNewsletterSubscription(ctx, alice.Email, phone.Sessions().Profile().ID)
	if err != nil || again {
		t.Fatalf("expected existing subscription, got %v err=%v", again, err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// countingPresenter ignores every signal except completions.
type countingPresenter struct {
	mu   sync.Mutex
	done int
}

func (p *countingPresenter) EnterAuthenticated(domain.Identity) {}
func (p *countingPresenter) EnterSignIn() {}
func (p *countingPresenter) RedirectToSignIn(string) {}
func (p *countingPresenter) RenderItem(domain.QuizItem) {}
func (p *countingPresenter) RenderResult(domain.GuessResult) {}
func (p *countingPresenter) RenderScoreboard(domain.Scoreboard) {}
func (p *countingPresenter) RenderFavorites([]domain.FavoriteItem) {}
func (p *countingPresenter) RenderFavoriteButton(bool) {}
func (p *countingPresenter) RenderStats(domain.UserAggregate) {}
func (p *countingPresenter) Notice(string) {}

func (p *countingPresenter) RenderCompletion(domain.Completion) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
}

func (p *countingPresenter) completions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
