package risk

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestRedisKeyLatest(t *testing.T) {
	id := uuid.MustParse("6f1c2a7e-4b7d-4a53-9d0e-2b1c7f0e9a11")
	want := "healthrisk:risk:latest:6f1c2a7e-4b7d-4a53-9d0e-2b1c7f0e9a11"
	if got := redisKeyLatest(id); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRedisCache_Unreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()
	c := NewRedisCache(rdb, time.Minute)
	ctx := context.Background()

	a, err := c.Get(ctx, uuid.New())
	if err == nil {
		t.Fatal("expected error from unreachable redis")
	}
	if a != nil {
		t.Error("expected no assessment on error")
	}
	if err := c.Set(ctx, &Assessment{ID: uuid.New(), PatientID: uuid.New()}); err == nil {
		t.Error("expected set to fail")
	}
	if err := c.Invalidate(ctx, uuid.New()); err == nil {
		t.Error("expected invalidate to fail")
	}
}
