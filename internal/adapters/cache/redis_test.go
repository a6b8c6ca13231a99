package cache

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jobrunner/tarantula/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// closedAddr returns an address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func unreachableCache(t *testing.T) *RedisCache {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        closedAddr(t),
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := newRedisCache(client, RedisConfig{}, testLogger())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewRedisCacheDefaults(t *testing.T) {
	tests := []struct {
		name       string
		cfg        RedisConfig
		wantPrefix string
		wantTTL    time.Duration
	}{
		{"defaults", RedisConfig{Addr: "localhost:6379"}, defaultPrefix, defaultTTL},
		{"custom", RedisConfig{Addr: "localhost:6379", Prefix: "kr:", TTL: time.Minute}, "kr:", time.Minute},
		{"negative ttl", RedisConfig{Addr: "localhost:6379", TTL: -time.Second}, defaultPrefix, defaultTTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewRedisCache(tt.cfg, testLogger())
			defer c.Close()
			if c.prefix != tt.wantPrefix {
				t.Errorf("prefix = %q, want %q", c.prefix, tt.wantPrefix)
			}
			if c.ttl != tt.wantTTL {
				t.Errorf("ttl = %v, want %v", c.ttl, tt.wantTTL)
			}
			if got := c.key("abc:127.1,35.1"); got != tt.wantPrefix+"abc:127.1,35.1" {
				t.Errorf("key() = %q", got)
			}
		})
	}
}

func TestRedisCacheUnreachable(t *testing.T) {
	c := unreachableCache(t)
	ctx := context.Background()

	resp, ok, err := c.Get(ctx, "k")
	if err == nil {
		t.Fatal("Get() against a closed port should fail")
	}
	if ok || resp != nil {
		t.Errorf("Get() = %v, %v; want miss", resp, ok)
	}

	if err := c.Set(ctx, "k", &domain.SearchResponse{Matches: []domain.Match{}}); err == nil {
		t.Error("Set() against a closed port should fail")
	}
	if err := c.Flush(ctx); err == nil {
		t.Error("Flush() against a closed port should fail")
	}
	if err := c.Ping(ctx); err == nil {
		t.Error("Ping() against a closed port should fail")
	}
}
