// Package redismirror publishes presence transitions to Redis so other services can read them.
package redismirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Status values stored under presence keys.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// DefaultChannel is the pub/sub channel status updates go to.
const DefaultChannel = "user_status"

// StatusUpdate is the JSON payload published on every transition.
type StatusUpdate struct {
	UserID int64     `json:"user_id"`
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// Options configures a Mirror.
type Options struct {
	// OnlineTTL bounds how long an online key survives without Refresh.
	OnlineTTL time.Duration

	// OfflineTTL keeps the offline marker briefly to avoid flicker.
	OfflineTTL time.Duration

	Channel string
}

// Mirror writes presence:{id} keys and publishes StatusUpdate messages.
type Mirror struct {
	client *redis.Client
	opts   Options
	logger *zerolog.Logger
}

// New wraps an existing client.
func New(client *redis.Client, opts Options, logger *zerolog.Logger) *Mirror {
	if opts.OnlineTTL <= 0 {
		opts.OnlineTTL = 5 * time.Minute
	}
	if opts.OfflineTTL <= 0 {
		opts.OfflineTTL = time.Minute
	}
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Mirror{client: client, opts: opts, logger: logger}
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// Key returns the presence key for userID.
func Key(userID int64) string {
	return "presence:" + strconv.FormatInt(userID, 10)
}

// SetOnline marks userID online and publishes the transition.
func (m *Mirror) SetOnline(ctx context.Context, userID int64) error {
	return m.set(ctx, userID, StatusOnline, m.opts.OnlineTTL)
}

// SetOffline marks userID offline and publishes the transition.
func (m *Mirror) SetOffline(ctx context.Context, userID int64) error {
	return m.set(ctx, userID, StatusOffline, m.opts.OfflineTTL)
}

func (m *Mirror) set(ctx context.Context, userID int64, status string, ttl time.Duration) error {
	payload, err := json.Marshal(StatusUpdate{UserID: userID, Status: status, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal status update: %w", err)
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, Key(userID), status, ttl)
		pipe.Publish(ctx, m.opts.Channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set presence %d %s: %w", userID, status, err)
	}
	return nil
}

// Refresh extends the online TTL for every id in one round trip.
func (m *Mirror) Refresh(ctx context.Context, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := m.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			pipe.Set(ctx, Key(id), StatusOnline, m.opts.OnlineTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("refresh presence: %w", err)
	}
	return nil
}

// Status returns the stored status of userID, or StatusOffline when the key expired.
func (m *Mirror) Status(ctx context.Context, userID int64) (string, error) {
	val, err := m.client.Get(ctx, Key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return StatusOffline, nil
	}
	if err != nil {
		return "", fmt.Errorf("get presence %d: %w", userID, err)
	}
	return val, nil
}

// Subscribe streams status updates until ctx is done.
func (m *Mirror) Subscribe(ctx context.Context) (<-chan StatusUpdate, error) {
	pubsub := m.client.Subscribe(ctx, m.opts.Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", m.opts.Channel, err)
	}

	out := make(chan StatusUpdate)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var update StatusUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
					m.logger.Warn().Err(err).Msg("discarding malformed status update")
					continue
				}
				select {
				case out <- update:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
