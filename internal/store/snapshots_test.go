package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dudu/interviewlens/internal/session"
)

// memoryRedis records publishes and keeps keys in memory
type memoryRedis struct {
	published map[string][][]byte
	keys      map[string][]byte
	ttls      map[string]time.Duration
	failSet   bool
	closed    bool
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{
		published: make(map[string][][]byte),
		keys:      make(map[string][]byte),
		ttls:      make(map[string]time.Duration),
	}
}

func (m *memoryRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	m.published[channel] = append(m.published[channel], message.([]byte))
	return redis.NewIntResult(1, nil)
}

func (m *memoryRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if m.failSet {
		return redis.NewStatusResult("", errors.New("READONLY"))
	}
	m.keys[key] = value.([]byte)
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.keys[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (m *memoryRedis) Close() error {
	m.closed = true
	return nil
}

func TestSnapshotPublisher_PublishAndLatest(t *testing.T) {
	ctx := context.Background()
	client := newMemoryRedis()
	p := newSnapshotPublisher(client, "", time.Minute)

	for i := 1; i <= 2; i++ {
		s := session.Snapshot{SessionID: "abc", FrameIndex: i * 30, State: "tracking", Label: "neutral", Analyzed: i * 25, Total: i * 30}
		if err := p.Publish(ctx, s); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	if n := len(client.published[DefaultChannel]); n != 2 {
		t.Errorf("published %d messages on %s, want 2", n, DefaultChannel)
	}
	if client.ttls[LatestKey("abc")] != time.Minute {
		t.Errorf("latest key ttl %v", client.ttls[LatestKey("abc")])
	}

	got, err := p.Latest(ctx, "abc")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.FrameIndex != 60 || got.Analyzed != 50 || got.Label != "neutral" {
		t.Errorf("latest = %+v", got)
	}

	if err := p.Close(); err != nil || !client.closed {
		t.Errorf("Close: %v, closed %v", err, client.closed)
	}
}

func TestSnapshotPublisher_Errors(t *testing.T) {
	ctx := context.Background()
	client := newMemoryRedis()
	p := newSnapshotPublisher(client, "custom", 0)

	if _, err := p.Latest(ctx, "missing"); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("expected ErrNoSnapshot, got %v", err)
	}

	client.failSet = true
	if err := p.Publish(ctx, session.Snapshot{SessionID: "x"}); err == nil {
		t.Error("expected an error when the latest key cannot be written")
	}
	if len(client.published["custom"]) != 1 {
		t.Errorf("expected the message on the custom channel, got %v", client.published)
	}
}

// the publisher is usable wherever a session expects a sink
var _ session.SnapshotSink = (*SnapshotPublisher)(nil)
