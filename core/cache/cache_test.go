package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestLRUCache_BasicOperations(t *testing.T) {
	cache := NewLRUCache[string, int](Config{MaxSize: 3})

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Put("c", 3)

	for key, want := range map[string]int{"a": 1, "b": 2, "c": 3} {
		if v, ok := cache.Get(key); !ok || v != want {
			t.Errorf("Get(%s) = %d, %v; want %d, true", key, v, ok, want)
		}
	}
	if _, ok := cache.Get("d"); ok {
		t.Error("Get(d) should return false")
	}
	if n := cache.Len(); n != 3 {
		t.Errorf("Len() = %d; want 3", n)
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	cache := NewLRUCache[string, int](Config{MaxSize: 2})

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Get("a")    // a is now most recently used
	cache.Put("c", 3) // evicts b

	if _, ok := cache.Get("b"); ok {
		t.Error("Get(b) should return false after eviction")
	}
	if _, ok := cache.Get("a"); !ok {
		t.Error("Get(a) should survive eviction")
	}
}

func TestLRUCache_UpdateAndRemove(t *testing.T) {
	cache := NewLRUCache[string, int](DefaultConfig())
	cache.Put("a", 1)
	cache.Put("a", 10)
	if v, _ := cache.Get("a"); v != 10 {
		t.Errorf("Get(a) = %d; want 10", v)
	}
	cache.Remove("a")
	cache.Remove("missing")
	if cache.Len() != 0 {
		t.Errorf("Len() = %d; want 0", cache.Len())
	}
	cache.Put("b", 2)
	cache.Clear()
	if _, ok := cache.Get("b"); ok {
		t.Error("Get(b) after Clear should return false")
	}
}

func TestLRUCache_TTL(t *testing.T) {
	clock := clockz.NewFakeClock()
	cache := NewLRUCache[string, int](Config{MaxSize: 3, TTL: 50 * time.Millisecond, Clock: clock})

	cache.Put("a", 1)
	if v, ok := cache.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}

	clock.Advance(100 * time.Millisecond)

	if _, ok := cache.Get("a"); ok {
		t.Error("Get(a) should return false after TTL expiration")
	}
}

func TestLRUCache_Stats(t *testing.T) {
	cache := NewLRUCache[string, int](Config{MaxSize: 2})

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Get("a")
	cache.Get("b")
	cache.Get("c")
	cache.Get("d")
	cache.Put("c", 3)

	stats := cache.Stats()
	if stats.Hits != 2 || stats.Misses != 2 || stats.Evictions != 1 {
		t.Errorf("Stats = %+v; want 2 hits, 2 misses, 1 eviction", stats)
	}
	if stats.Size != 2 || stats.MaxSize != 2 {
		t.Errorf("Size/MaxSize = %d/%d; want 2/2", stats.Size, stats.MaxSize)
	}
}

func TestNewLRUCache_NegativeMaxSize(t *testing.T) {
	cache := NewLRUCache[int, int](Config{MaxSize: -5})
	for i := 0; i < 10; i++ {
		cache.Put(i, i)
	}
	if cache.Len() != 10 {
		t.Errorf("Len() = %d; want 10 (unlimited)", cache.Len())
	}
}

func TestLRUCache_Concurrency(t *testing.T) {
	config := Config{MaxSize: 100}
	cache := NewLRUCache[int, int](config)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := id*100 + j
				cache.Put(key, key)
				cache.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if n := cache.Len(); n > config.MaxSize {
		t.Errorf("Len() = %d; want <= %d", n, config.MaxSize)
	}
}
