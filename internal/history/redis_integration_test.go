//go:build integration

package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/researchpilot/config"
)

func startRedis(t *testing.T, ctx context.Context) config.RedisConfig {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("failed to start redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get host: %v", err)
	}
	port, err := c.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	return config.RedisConfig{Host: host, Port: port.Port(), Timeout: 5 * time.Second, KeyPrefix: "test:"}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := startRedis(t, ctx)

	store, err := NewRedisStore(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()

	seed(t, store)

	list, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].ID != "c" {
		t.Fatalf("expected newest first, got %+v", list)
	}

	rec, err := store.Get(ctx, "a")
	if err != nil || rec.Report != "Electrolyte advances dominate." {
		t.Fatalf("get a: %+v %v", rec, err)
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
