package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
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

	"majority-rules-service/internal/app"
	"majority-rules-service/internal/broadcast"
	pgstore "majority-rules-service/internal/infra/postgres"
	"majority-rules-service/internal/infra/postgres/migrations"
	infraredis "majority-rules-service/internal/infra/redis"
)

func TestRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	store := pgstore.NewStore(pool)
	presence := infraredis.NewPresence(redisClient, 5*time.Minute)
	registry := broadcast.NewRegistry()
	service := app.NewGameService(registry, store, app.ServiceConfig{MajorityPoints: 2})

	for _, p := range []struct{ id, name string }{
		{"u1", "Alice"}, {"u2", "Bob"}, {"u3", "Carol"},
	} {
		if err := service.Join(ctx, "game-1", p.id, p.name); err != nil {
			t.Fatalf("join %s: %v", p.id, err)
		}
		if err := presence.Connect(ctx, "game-1", p.id); err != nil {
			t.Fatalf("presence %s: %v", p.id, err)
		}
	}

	members, err := presence.Members(ctx, "game-1")
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 present players, got %v", members)
	}

	err = service.StartRound(ctx, app.StartRoundRequest{
		GameID:     "game-1",
		RoundID:    "round-1",
		QuestionID: "q1",
		Duration:   1,
		Players:    members,
		Options:    []string{"Pizza"},
	})
	if err != nil {
		t.Fatalf("start round: %v", err)
	}

	if err := service.SubmitAnswer(ctx, "round-1", "u1", " Pizza "); err != nil {
		t.Fatalf("submit u1: %v", err)
	}
	if err := service.SubmitAnswer(ctx, "round-1", "u2", "pizza"); err != nil {
		t.Fatalf("submit u2: %v", err)
	}
	// u3 never answers and gets auto-filled at expiry.

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	service.WaitForRound(waitCtx, "round-1")

	rows, err := store.Leaderboard(ctx, "game-1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %+v", rows)
	}
	// Everyone lands on pizza, so the tie break falls back to id order.
	for i, want := range []string{"u1", "u2", "u3"} {
		if rows[i].ParticipantID != want || rows[i].Points != 2 {
			t.Fatalf("expected %s with 2 points at position %d, got %+v", want, i, rows[i])
		}
	}

	responses, err := store.ListResponses(ctx, "round-1")
	if err != nil {
		t.Fatalf("list responses: %v", err)
	}
	if len(responses) != 3 {
		t.Fatalf("expected 3 persisted responses, got %+v", responses)
	}
	for _, r := range responses {
		if r.ParticipantID == "u3" {
			if !r.IsAuto {
				t.Fatalf("expected u3 response to be auto filled, got %+v", r)
			}
			if r.Answer != "Pizza" {
				t.Fatalf("auto fill must pick from the options, got %q", r.Answer)
			}
		}
	}
}

func TestResubmitReplacesPersistedAnswer(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := pgstore.NewStore(pool)
	if err := store.AddParticipant(ctx, "game-1", "u1", "Alice"); err != nil {
		t.Fatalf("add participant: %v", err)
	}
	if err := store.CreateRound(ctx, "round-1", "game-1", "q1"); err != nil {
		t.Fatalf("create round: %v", err)
	}
	if err := store.UpsertResponse(ctx, "round-1", "u1", "first", false); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.UpsertResponse(ctx, "round-1", "u1", "second", false); err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	responses, err := store.ListResponses(ctx, "round-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(responses) != 1 || responses[0].Answer != "second" {
		t.Fatalf("expected a single replaced response, got %+v", responses)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "game", "POSTGRES_PASSWORD": "gamepass", "POSTGRES_DB": "gamedb"},
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
	dsn := fmt.Sprintf("postgres://game:gamepass@%s:%s/gamedb?sslmode=disable", host, port.Port())
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
