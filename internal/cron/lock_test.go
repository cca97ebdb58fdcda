package cron

import (
	"context"
	"strings"
	"testing"
	"time"
)

type memoryRedis struct {
	values map[string]string
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) ReleaseIfOwner(_ context.Context, key, owner string) (bool, error) {
	if m.values[key] != owner {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusiveAndOwnerScoped(t *testing.T) {
	t.Setenv("WORKER_ID", "cron-a")
	store := &memoryRedis{values: map[string]string{}}
	first, err := NewRedisLock(store, "rr:lock:cron", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, "rr:lock:cron", time.Minute)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second instance must not acquire a held lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if _, held := store.values["rr:lock:cron"]; !held {
		t.Fatal("non-owner release must not drop the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("owner release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("lock should be free after owner release")
	}
	if !strings.HasPrefix(store.values["rr:lock:cron"], "cron-a:") {
		t.Fatalf("owner should carry the worker id, got %q", store.values["rr:lock:cron"])
	}
}

func TestRedisLockReleaseAfterExpiryKeepsNewHolder(t *testing.T) {
	store := &memoryRedis{values: map[string]string{}}
	ctx := context.Background()
	first, _ := NewRedisLock(store, "rr:lock:cron", time.Minute)
	if ok, _ := first.Acquire(ctx); !ok {
		t.Fatal("expected first acquire")
	}

	// The lease expires and another worker takes it.
	delete(store.values, "rr:lock:cron")
	second, _ := NewRedisLock(store, "rr:lock:cron", time.Minute)
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expected second acquire after expiry")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if _, held := store.values["rr:lock:cron"]; !held {
		t.Fatal("stale holder must not release the new lease")
	}
}
