package cache

import (
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCache_ReadThroughAndInvalidate(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	c := New(store, time.Minute, logger.Discard())
	ctx := context.Background()

	loads := 0
	load := func(context.Context) ([]model.AvailabilityRule, error) {
		loads++
		return []model.AvailabilityRule{{ID: "a", ResourceID: "dr-a", DayOfWeek: 1, StartTime: 540, EndTime: 720}}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := c.Rules(ctx, "dr-a", load)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].ID != "a" {
			t.Fatalf("unexpected rules %+v", got)
		}
	}
	if loads != 1 {
		t.Errorf("expected one load, got %d", loads)
	}

	c.InvalidateRules(ctx, "dr-a")
	if _, err := c.Rules(ctx, "dr-a", load); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loads != 2 {
		t.Errorf("expected reload after invalidation, got %d loads", loads)
	}
}

func TestCache_InvalidationDuringLoadIsNotOverwritten(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	c := New(store, time.Minute, logger.Discard())
	ctx := context.Background()

	// The first load reads the old config, then a writer commits and
	// invalidates before the read-through gets to store it.
	limit := 4
	loads := 0
	load := func(context.Context) (model.ValidationConfig, error) {
		loads++
		vc := model.ValidationConfig{ResourceID: "dr-a", MaxBookingsPerDay: limit}
		if loads == 1 {
			limit = 9
			c.InvalidateConfig(ctx, "dr-a")
		}
		return vc, nil
	}

	got, err := c.Config(ctx, "dr-a", load)
	if err != nil {
		t.Fatal(err)
	}
	if got.MaxBookingsPerDay != 4 {
		t.Fatalf("first read = %d, want the value loaded", got.MaxBookingsPerDay)
	}
	if _, ok, _ := store.Get(ctx, ConfigKey("dr-a")); ok {
		t.Error("a value loaded across an invalidation must not be stored")
	}

	got, err = c.Config(ctx, "dr-a", load)
	if err != nil {
		t.Fatal(err)
	}
	if got.MaxBookingsPerDay != 9 || loads != 2 {
		t.Errorf("second read = %d after %d loads, want 9 after 2", got.MaxBookingsPerDay, loads)
	}

	// the fresh value is cached as usual
	if _, err := c.Config(ctx, "dr-a", load); err != nil {
		t.Fatal(err)
	}
	if loads != 2 {
		t.Errorf("expected the reloaded value to be cached, got %d loads", loads)
	}
}

func TestCache_KeysAreScoped(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	c := New(store, time.Minute, logger.Discard())
	ctx := context.Background()

	_, _ = c.Config(ctx, "dr-a", func(context.Context) (model.ValidationConfig, error) {
		return model.ValidationConfig{ResourceID: "dr-a", MaxBookingsPerDay: 4}, nil
	})
	got, _ := c.Config(ctx, "dr-b", func(context.Context) (model.ValidationConfig, error) {
		return model.ValidationConfig{ResourceID: "dr-b", MaxBookingsPerDay: 9}, nil
	})
	if got.ResourceID != "dr-b" || got.MaxBookingsPerDay != 9 {
		t.Errorf("resource configs leaked across keys: %+v", got)
	}
}

func TestCache_LoaderErrorsAreNotCached(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	c := New(store, time.Minute, logger.Discard())
	ctx := context.Background()

	failing := errors.New("mongo down")
	if _, err := c.Rules(ctx, "dr-a", func(context.Context) ([]model.AvailabilityRule, error) { return nil, failing }); !errors.Is(err, failing) {
		t.Fatalf("expected loader error, got %v", err)
	}

	called := false
	_, err := c.Rules(ctx, "dr-a", func(context.Context) ([]model.AvailabilityRule, error) {
		called = true
		return []model.AvailabilityRule{}, nil
	})
	if err != nil || !called {
		t.Errorf("expected second load after failure, called=%v err=%v", called, err)
	}
}

func TestCache_NilPassesThrough(t *testing.T) {
	var c *Cache
	calls := 0
	load := func(context.Context) ([]model.AvailabilityRule, error) {
		calls++
		return nil, nil
	}
	_, _ = c.Rules(context.Background(), "dr-a", load)
	_, _ = c.Rules(context.Background(), "dr-a", load)
	c.InvalidateRules(context.Background(), "dr-a")

	if calls != 2 {
		t.Errorf("expected every read to hit the loader, got %d", calls)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	_ = store.Set(ctx, "k", []byte("v"), 10*time.Millisecond)
	if _, ok, _ := store.Get(ctx, "k"); !ok {
		t.Fatal("expected fresh entry")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("expected entry to expire")
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := New(NewRedisStore(client), time.Minute, logger.Discard())
	ctx := context.Background()

	loads := 0
	load := func(context.Context) (model.ValidationConfig, error) {
		loads++
		return model.ValidationConfig{ResourceID: "dr-a", MaxBookingsPerDay: 8}, nil
	}

	for i := 0; i < 2; i++ {
		vc, err := c.Config(ctx, "dr-a", load)
		if err != nil || vc.MaxBookingsPerDay != 8 {
			t.Fatalf("Config() = %+v, %v", vc, err)
		}
	}
	if loads != 1 {
		t.Errorf("expected one load, got %d", loads)
	}
	if ttl := mr.TTL(ConfigKey("dr-a")); ttl <= 0 || ttl > time.Minute {
		t.Errorf("entry ttl = %v", ttl)
	}

	c.InvalidateConfig(ctx, "dr-a")
	if mr.Exists(ConfigKey("dr-a")) {
		t.Error("entry survived invalidation")
	}
}

func TestRedisStore_OutageFallsBackToLoader(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	c := New(NewRedisStore(client), time.Minute, logger.Discard())

	mr.Close()
	rules, err := c.Rules(context.Background(), "dr-a", func(context.Context) ([]model.AvailabilityRule, error) {
		return []model.AvailabilityRule{{ID: "r1"}}, nil
	})
	if err != nil || len(rules) != 1 {
		t.Errorf("Rules() = %v, %v", rules, err)
	}
}
