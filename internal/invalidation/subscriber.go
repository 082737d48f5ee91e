// Package invalidation turns curfew change notifications published by the
// administration side into snapshot cache invalidations.
package invalidation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/example/community-gate/internal/logging"
)

// AllTenants is the payload that drops every cached snapshot.
const AllTenants = "*"

// Invalidator is implemented by the gate service.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID string)
	InvalidateAll(ctx context.Context)
}

// Subscriber listens on a Redis pub/sub channel. Each message payload is a
// tenant id, or AllTenants.
type Subscriber struct {
	client  redis.UniversalClient
	channel string
	target  Invalidator
	logger  *slog.Logger
}

// NewSubscriber wires a subscriber to the given client and channel.
func NewSubscriber(client redis.UniversalClient, channel string, target Invalidator, logger *slog.Logger) (*Subscriber, error) {
	if client == nil {
		return nil, errors.New("invalidation: redis client is required")
	}
	if strings.TrimSpace(channel) == "" {
		return nil, errors.New("invalidation: channel is required")
	}
	if target == nil {
		return nil, errors.New("invalidation: invalidator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		client:  client,
		channel: channel,
		target:  target,
		logger:  logger.With("component", "invalidation", "channel", channel),
	}, nil
}

// Run subscribes and dispatches messages until ctx is cancelled. It returns an
// error only when the initial subscription cannot be confirmed.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			s.logger.Warn("failed to close subscription", "error", err)
		}
	}()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("invalidation: subscribe %s: %w", s.channel, err)
	}
	s.logger.Info("invalidation subscriber started")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("invalidation subscriber stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.Handle(ctx, msg.Payload)
		}
	}
}

// Handle applies a single notification payload.
func (s *Subscriber) Handle(ctx context.Context, payload string) {
	tenantID := strings.TrimSpace(payload)
	ctx = logging.ContextWithLogger(ctx, s.logger)
	switch tenantID {
	case "":
		s.logger.Warn("ignoring blank invalidation payload")
	case AllTenants:
		s.target.InvalidateAll(ctx)
	default:
		s.target.Invalidate(ctx, tenantID)
	}
}

// Publish announces a change for tenantID, or for every tenant when tenantID
// is AllTenants.
func Publish(ctx context.Context, client redis.UniversalClient, channel, tenantID string) error {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return errors.New("invalidation: tenant id is required")
	}
	if err := client.Publish(ctx, channel, tenantID).Err(); err != nil {
		return fmt.Errorf("invalidation: publish %s: %w", channel, err)
	}
	return nil
}
