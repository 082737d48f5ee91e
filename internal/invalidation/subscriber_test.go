package invalidation

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	mu      sync.Mutex
	tenants []string
	all     int
}

func (r *recordingInvalidator) Invalidate(_ context.Context, tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants = append(r.tenants, tenantID)
}

func (r *recordingInvalidator) InvalidateAll(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all++
}

func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSubscriberHandle(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	target := &recordingInvalidator{}
	subscriber, err := NewSubscriber(unreachableClient(t), "curfew:invalidate", target, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)

	ctx := context.Background()
	subscriber.Handle(ctx, "tenant-a")
	subscriber.Handle(ctx, " tenant-b\n")
	subscriber.Handle(ctx, AllTenants)
	subscriber.Handle(ctx, "   ")

	assert.Equal(t, []string{"tenant-a", "tenant-b"}, target.tenants)
	assert.Equal(t, 1, target.all)
	assert.True(t, strings.Contains(logs.String(), "ignoring blank invalidation payload"))
}

func TestNewSubscriberValidatesArguments(t *testing.T) {
	t.Parallel()

	client := unreachableClient(t)
	target := &recordingInvalidator{}

	_, err := NewSubscriber(nil, "channel", target, nil)
	assert.Error(t, err)
	_, err = NewSubscriber(client, " ", target, nil)
	assert.Error(t, err)
	_, err = NewSubscriber(client, "channel", nil, nil)
	assert.Error(t, err)
}

func TestSubscriberRunReportsUnreachableServer(t *testing.T) {
	t.Parallel()

	subscriber, err := NewSubscriber(unreachableClient(t), "curfew:invalidate", &recordingInvalidator{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, subscriber.Run(ctx))
}

func TestSubscriberRunStopsWhenCancelled(t *testing.T) {
	t.Parallel()

	subscriber, err := NewSubscriber(unreachableClient(t), "curfew:invalidate", &recordingInvalidator{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, subscriber.Run(ctx))
}

func TestPublishRequiresTenant(t *testing.T) {
	t.Parallel()

	assert.Error(t, Publish(context.Background(), unreachableClient(t), "curfew:invalidate", " "))
	assert.Error(t, Publish(context.Background(), unreachableClient(t), "curfew:invalidate", "tenant-a"))
}
