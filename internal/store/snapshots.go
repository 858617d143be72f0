package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dudu/interviewlens/internal/log"
	"github.com/dudu/interviewlens/internal/session"
)

// ErrNoSnapshot is returned when a session has no live snapshot stored
var ErrNoSnapshot = errors.New("no snapshot for session")

// DefaultChannel is the pub/sub channel snapshots are published on
const DefaultChannel = "interviewlens:snapshots"

// redisClient is the part of *redis.Client the publisher uses
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

// RedisOptions configures the snapshot publisher
type RedisOptions struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0"`
	Channel  string        `yaml:"channel"`
	TTL      time.Duration `yaml:"ttl" validate:"gte=0"` // lifetime of the latest-snapshot key
}

// SnapshotPublisher publishes live session snapshots to a Redis channel and
// keeps the latest one per session under its own key
type SnapshotPublisher struct {
	client  redisClient
	channel string
	ttl     time.Duration
}

// NewSnapshotPublisher connects to Redis. An unreachable server is logged,
// not fatal: publishing errors are reported per snapshot.
func NewSnapshotPublisher(opts RedisOptions) *SnapshotPublisher {
	log.Info(log.Fields{"addr": opts.Addr}, "connecting to redis")

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error(log.Fields{"addr": opts.Addr, "error": err.Error()}, "failed to connect to redis")
	} else {
		log.Info(log.Fields{"addr": opts.Addr}, "connected to redis")
	}

	return newSnapshotPublisher(client, opts.Channel, opts.TTL)
}

func newSnapshotPublisher(client redisClient, channel string, ttl time.Duration) *SnapshotPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SnapshotPublisher{client: client, channel: channel, ttl: ttl}
}

// LatestKey is the key holding a session's most recent snapshot
func LatestKey(sessionID string) string {
	return "interviewlens:latest:" + sessionID
}

// Publish implements session.SnapshotSink
func (p *SnapshotPublisher) Publish(ctx context.Context, s session.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	if err := p.client.Set(ctx, LatestKey(s.SessionID), data, p.ttl).Err(); err != nil {
		return fmt.Errorf("store latest snapshot: %w", err)
	}

	log.Debug(log.Fields{"session": s.SessionID, "frame": s.FrameIndex}, "snapshot published")
	return nil
}

// Latest returns the most recent snapshot of a session
func (p *SnapshotPublisher) Latest(ctx context.Context, sessionID string) (*session.Snapshot, error) {
	val, err := p.client.Get(ctx, LatestKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w %s", ErrNoSnapshot, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}

	var s session.Snapshot
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Close closes the Redis client
func (p *SnapshotPublisher) Close() error {
	return p.client.Close()
}
