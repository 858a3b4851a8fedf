package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"celiaquia/internal/infrastructure/persistence/sqlite/model"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func setupSQLiteCache(t *testing.T) (*SQLiteCache, *fakeClock) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "cache.db")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.CacheKV{}); err != nil {
		t.Fatalf("auto migrate cache_kv: %v", err)
	}

	clock := &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	return NewSQLiteCache(db).WithClock(clock.Now), clock
}

func TestSQLiteCacheSetGetDelete(t *testing.T) {
	cache, _ := setupSQLiteCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "renaper:30111222:F", "accepted", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := cache.Get(ctx, "renaper:30111222:F")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "accepted" {
		t.Fatalf("Get() = %q, found=%v", value, found)
	}

	if err := cache.Set(ctx, "renaper:30111222:F", "subsanar", 0); err != nil {
		t.Fatalf("Set(update) error = %v", err)
	}
	value, found, err = cache.Get(ctx, "renaper:30111222:F")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "subsanar" {
		t.Fatalf("Get() after update = %q, found=%v", value, found)
	}

	if err := cache.Delete(ctx, "renaper:30111222:F"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, found, err = cache.Get(ctx, "renaper:30111222:F")
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if found {
		t.Fatalf("Get() expected found=false after delete")
	}
}

func TestSQLiteCacheExpiresEntries(t *testing.T) {
	cache, clock := setupSQLiteCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "short", "v", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cache.Set(ctx, "forever", "v", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if _, found, _ := cache.Get(ctx, "short"); !found {
		t.Fatalf("Get() expected entry before expiry")
	}

	clock.now = clock.now.Add(2 * time.Minute)
	if _, found, _ := cache.Get(ctx, "short"); found {
		t.Fatalf("Get() expected expired entry to be missing")
	}

	removed, err := cache.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("Purge() removed = %d, want 1", removed)
	}
	if _, found, _ := cache.Get(ctx, "forever"); !found {
		t.Fatalf("Get() expected entry without ttl to survive purge")
	}
}

func TestSQLiteCacheRejectsEmptyKey(t *testing.T) {
	cache, _ := setupSQLiteCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "", "v", 0); err == nil {
		t.Fatalf("Set() expected error for empty key")
	}
	if _, _, err := cache.Get(ctx, " "); err == nil {
		t.Fatalf("Get() expected error for empty key")
	}
	if err := cache.Delete(ctx, ""); err == nil {
		t.Fatalf("Delete() expected error for empty key")
	}
}
