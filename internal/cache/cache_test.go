package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s", host, port.Port())
}

func TestRedisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	c, err := NewRedisCache(startRedis(t))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.SetJobStatus(ctx, "job-1", "processing"))
	require.NoError(t, c.SetCallStage(ctx, "call-1", "transcribe_poll"))

	got, err := c.client.Get(ctx, jobStatusKey("job-1")).Result()
	require.NoError(t, err)
	assert.Equal(t, "processing", got)

	ttl, err := c.client.TTL(ctx, callStageKey("call-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache("not-a-url")
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	var c Cache = Noop{}
	ctx := context.Background()
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.SetJobStatus(ctx, "j", "done"))
	assert.NoError(t, c.SetCallStage(ctx, "c", "analyze"))
	assert.NoError(t, c.Close())
}
