package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"exam-delivery-service/internal/app"
	"exam-delivery-service/internal/domain"
	infraredis "exam-delivery-service/internal/infra/redis"
	"exam-delivery-service/internal/infra/repotest"
	"exam-delivery-service/internal/infra/sqlstore"
	"exam-delivery-service/internal/infra/sqlstore/migrations"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

func TestSQLStoreOnPostgres(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	migrate(t, ctx, pgURL)

	db, err := sqlstore.Open(ctx, sqlstore.DriverPostgres, pgURL)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	repotest.Run(t, func(t *testing.T) app.Repository {
		for _, model := range sqlstore.Models() {
			if _, err := db.NewTruncateTable().Model(model).Exec(ctx); err != nil {
				t.Fatalf("truncate: %v", err)
			}
		}
		return sqlstore.NewStore(db)
	})
}

func TestAttemptEndToEndOnRedis(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()
	client, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer client.Close()

	repotest.Run(t, func(t *testing.T) app.Repository {
		if err := client.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		return infraredis.NewStore(client)
	})

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	repo := infraredis.NewStore(client)
	student := repotest.Student("u1", "aisha@student.com")
	if _, err := repo.RegisterUser(ctx, student); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := repo.CreateSet(ctx, repotest.MixedSet("s1")); err != nil {
		t.Fatalf("create set: %v", err)
	}
	if _, err := repo.CreateAssignment(ctx, domain.Assignment{
		ID: "a1", UserID: "u1", SetID: "s1", TimeLimitMinutes: 10, PassPercent: 60, MaxAttempts: 1,
	}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	sessions := infraredis.NewSessionStore(client, 5*time.Minute)
	service := app.NewExamService(repo, sessions)
	if _, err := service.StartAttempt(ctx, "u1", "a1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	for qid, idx := range map[string]int{"s1-q1": 1, "s1-p1-a": 2, "s1-p1-b": 1} {
		if _, err := service.Choose(ctx, "u1", qid, idx); err != nil {
			t.Fatalf("choose %s: %v", qid, err)
		}
	}
	result, err := service.Submit(ctx, "u1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Attempt.Score != 2 || result.Total != 3 || result.Attempt.Percentage != 67 || !result.Attempt.Pass {
		t.Fatalf("unexpected result %+v", result)
	}
	if err := service.Exit(ctx, "u1"); err != nil {
		t.Fatalf("exit: %v", err)
	}

	review, err := service.Review(ctx, "u1", "s1", app.ReviewFilter{IncorrectOnly: true})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if len(review.Items) != 1 || review.Items[0].Question.ID != "s1-p1-b" || review.Items[0].Number != 3 {
		t.Fatalf("unexpected review items %+v", review.Items)
	}
}

func migrate(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "exam", "POSTGRES_PASSWORD": "exampass", "POSTGRES_DB": "examdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
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
	dsn := fmt.Sprintf("postgres://exam:exampass@%s:%s/examdb?sslmode=disable", host, port.Port())
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
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
