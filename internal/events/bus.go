// Package events carries domain events from the engine to downstream consumers.
// Unlock events go out on a Redis channel so every instance can relay them to
// its connected clients; without Redis they stay in-process.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terra-clan/toolkit-engine/internal/metrics"
	"github.com/terra-clan/toolkit-engine/internal/models"
)

// TypeLevelUnlocked is the event type of a goal level unlock
const TypeLevelUnlocked = "goal_level.unlocked"

// Envelope is the wire form of an event
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Bus publishes unlock events and forwards received ones to a handler
type Bus interface {
	PublishLevelUnlocked(ctx context.Context, event models.LevelUnlockedEvent) error
	StartForwarder(ctx context.Context, onEvent func(models.LevelUnlockedEvent)) error
	Close() error
}

// RedisBus implements Bus on Redis pub/sub
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

// NewRedisBus connects to Redis and verifies the connection
func NewRedisBus(ctx context.Context, cfg RedisConfig) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = "toolkit-engine.events"
	}

	return &RedisBus{
		client:  client,
		channel: channel,
		logger:  slog.Default().With("component", "redis_bus", "channel", channel),
	}, nil
}

// PublishLevelUnlocked publishes one unlock event
func (b *RedisBus) PublishLevelUnlocked(ctx context.Context, event models.LevelUnlockedEvent) error {
	raw, err := encode(event)
	if err == nil {
		err = b.client.Publish(ctx, b.channel, raw).Err()
	}
	metrics.RecordEventPublished(TypeLevelUnlocked, err)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", TypeLevelUnlocked, err)
	}
	return nil
}

// StartForwarder subscribes to the channel and calls onEvent for every unlock
// event until ctx is cancelled
func (b *RedisBus) StartForwarder(ctx context.Context, onEvent func(models.LevelUnlockedEvent)) error {
	if onEvent == nil {
		return fmt.Errorf("event handler required")
	}

	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				event, err := decode([]byte(m.Payload))
				if err != nil {
					b.logger.Warn("bad event payload", "error", err)
					continue
				}
				if event != nil {
					onEvent(*event)
				}
			}
		}
	}()

	return nil
}

// Name identifies the bus in health reports
func (b *RedisBus) Name() string {
	return "redis"
}

// HealthCheck verifies Redis connectivity
func (b *RedisBus) HealthCheck(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (b *RedisBus) Close() error {
	return b.client.Close()
}

// LocalBus implements Bus in-process for single-instance deployments
type LocalBus struct {
	mu       sync.RWMutex
	handlers []func(models.LevelUnlockedEvent)
}

// NewLocalBus creates an in-process bus
func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

// PublishLevelUnlocked hands the event to every registered handler
func (b *LocalBus) PublishLevelUnlocked(_ context.Context, event models.LevelUnlockedEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.handlers {
		h(event)
	}
	metrics.RecordEventPublished(TypeLevelUnlocked, nil)
	return nil
}

// StartForwarder registers onEvent for the lifetime of ctx
func (b *LocalBus) StartForwarder(ctx context.Context, onEvent func(models.LevelUnlockedEvent)) error {
	if onEvent == nil {
		return fmt.Errorf("event handler required")
	}

	b.mu.Lock()
	b.handlers = append(b.handlers, onEvent)
	idx := len(b.handlers) - 1
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		b.handlers[idx] = func(models.LevelUnlockedEvent) {}
		b.mu.Unlock()
	}()
	return nil
}

func (b *LocalBus) Close() error { return nil }

func encode(event models.LevelUnlockedEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:       TypeLevelUnlocked,
		OccurredAt: event.UnlockedAt,
		Payload:    payload,
	})
}

// decode returns nil for envelopes of other event types
func decode(raw []byte) (*models.LevelUnlockedEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Type != TypeLevelUnlocked {
		return nil, nil
	}
	var event models.LevelUnlockedEvent
	if err := json.Unmarshal(env.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
