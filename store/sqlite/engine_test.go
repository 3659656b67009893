package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goAuthz "github.com/MrEthical07/goAuthz"
	"github.com/MrEthical07/goAuthz/store/sqlite"
)

func TestEngineOnSQLite(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	st, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	cfg := goAuthz.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("sqlite-engine-test-secret-0123456")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := goAuthz.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(st).
		WithPermissions(goAuthz.PermissionDefinition{Code: "reports.read"}).
		WithRoles(goAuthz.RoleTemplate{Code: "analyst", Permissions: []string{"reports.read"}}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if err := engine.SeedRoles(ctx); err != nil {
		t.Fatalf("SeedRoles failed: %v", err)
	}
	u, err := engine.Register(ctx, goAuthz.RegisterInput{Username: "alice", Email: "alice@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := engine.Register(ctx, goAuthz.RegisterInput{Username: "alice2", Email: "Alice@example.com", Password: "correct-horse"}); !errors.Is(err, goAuthz.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if err := engine.AssignRole(ctx, u.ID, "analyst"); err != nil {
		t.Fatalf("AssignRole failed: %v", err)
	}

	pair, err := engine.Login(ctx, "alice", "correct-horse", false)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	res, err := engine.Authorize(ctx, pair.AccessToken, "reports.read")
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if res.User.ID != u.ID {
		t.Fatalf("expected user %s, got %s", u.ID, res.User.ID)
	}
}
