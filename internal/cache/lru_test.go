package cache

import (
	"testing"
	"time"
)

func TestLRUCache(t *testing.T) {
	t.Run("set then get returns the value", func(t *testing.T) {
		c := NewLRUCache[string](4, time.Minute)
		c.Set("a", "alpha")

		got, ok := c.Get("a")
		if !ok {
			t.Fatal("expected a hit for key a")
		}
		if got != "alpha" {
			t.Errorf("Get(a) = %q, want alpha", got)
		}
	})

	t.Run("expired entries miss", func(t *testing.T) {
		c := NewLRUCache[string](4, 10*time.Millisecond)
		c.Set("a", "alpha")

		time.Sleep(25 * time.Millisecond)

		if _, ok := c.Get("a"); ok {
			t.Error("expected a miss after the TTL elapsed")
		}
		if got := c.Size(); got != 0 {
			t.Errorf("Size() = %d after expired read, want 0", got)
		}
	})

	t.Run("evicts the least recently used entry", func(t *testing.T) {
		c := NewLRUCache[int](2, time.Minute)
		c.Set("a", 1)
		c.Set("b", 2)

		// Touch a so b becomes the eviction candidate.
		if _, ok := c.Get("a"); !ok {
			t.Fatal("expected a hit for key a")
		}
		c.Set("c", 3)

		if _, ok := c.Get("b"); ok {
			t.Error("expected b to be evicted")
		}
		if _, ok := c.Get("a"); !ok {
			t.Error("expected a to survive eviction")
		}
		if _, ok := c.Get("c"); !ok {
			t.Error("expected c to be present")
		}
	})

	t.Run("delete removes a single key", func(t *testing.T) {
		c := NewLRUCache[int](4, time.Minute)
		c.Set("a", 1)
		c.Set("b", 2)
		c.Delete("a")

		if _, ok := c.Get("a"); ok {
			t.Error("expected a to be deleted")
		}
		if got := c.Size(); got != 1 {
			t.Errorf("Size() = %d, want 1", got)
		}
	})

	t.Run("purge drops everything", func(t *testing.T) {
		c := NewLRUCache[int](4, time.Minute)
		c.Set("a", 1)
		c.Set("b", 2)
		c.Purge()

		if got := c.Size(); got != 0 {
			t.Errorf("Size() = %d after Purge, want 0", got)
		}
		if _, ok := c.Get("a"); ok {
			t.Error("expected purged key to miss")
		}
	})

	t.Run("clean expired reports how many were swept", func(t *testing.T) {
		c := NewLRUCache[int](4, 10*time.Millisecond)
		c.Set("a", 1)
		c.Set("b", 2)

		time.Sleep(25 * time.Millisecond)
		c.Set("fresh", 3)

		if got := c.CleanExpired(); got != 2 {
			t.Errorf("CleanExpired() = %d, want 2", got)
		}
		if _, ok := c.Get("fresh"); !ok {
			t.Error("expected the fresh entry to survive the sweep")
		}
	})
}

func TestManagerSweepsRegisteredCaches(t *testing.T) {
	c := NewLRUCache[int](4, 5*time.Millisecond)
	c.Set("a", 1)
	c.Set("b", 2)

	m := NewManager()
	m.Register(c)
	m.StartCleanup(10 * time.Millisecond)
	defer m.Stop()

	deadline := time.Now().Add(time.Second)
	for c.Size() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("sweep never removed expired entries, Size() = %d", c.Size())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
