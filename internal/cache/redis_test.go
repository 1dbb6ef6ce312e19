package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("integration test: skipped in short mode")
	}

	ctx := context.Background()

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestKey(t *testing.T) {
	c := NewRedisCache("localhost:0", "orders")
	if got := c.Key("analytics", "store"); got != "orders:analytics:store" {
		t.Errorf("Unexpected key %q", got)
	}
}

func TestRedisCacheSetGet(t *testing.T) {
	c := NewRedisCache(startRedis(t), "orders")
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("Expected miss for unknown key")
	}

	if err := c.Set(ctx, "report", `{"total":1}`, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	value, ok, err := c.Get(ctx, "report")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || value != `{"total":1}` {
		t.Errorf("Expected cached value, got %q (ok=%v)", value, ok)
	}
}
