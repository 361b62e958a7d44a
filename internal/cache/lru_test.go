package cache

import (
	"fmt"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClocked[T any](max int, ttl time.Duration) (*LRU[T], *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New[T](Options{MaxEntries: max, TTL: ttl, Clock: clk.now}), clk
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newClocked[string](3, time.Hour)
	c.Set("k1", "v1")
	c.Set("k2", "v2")
	c.Set("k3", "v3")
	c.Get("k1")
	c.Set("k4", "v4") // k2 is now the oldest

	if _, ok := c.Get("k2"); ok {
		t.Error("k2 should have been evicted")
	}
	for _, k := range []string{"k1", "k3", "k4"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
	if st := c.Stats(); st.Evictions != 1 || st.Size != 3 {
		t.Errorf("Stats() = %+v, want 1 eviction and size 3", st)
	}
}

func TestLRU_SetReplacesAndRestartsTTL(t *testing.T) {
	c, clk := newClocked[int](4, time.Minute)
	c.Set("a", 1)
	clk.advance(50 * time.Second)
	c.Set("a", 2)
	clk.advance(50 * time.Second)

	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Errorf("Get(a) = %v, %v; want 2, true", v, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestLRU_Expiry(t *testing.T) {
	c, clk := newClocked[string](10, time.Minute)
	c.Set("k", "v")

	clk.advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry should live until its TTL")
	}
	clk.advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should expire exactly at its TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be dropped on read, Len() = %d", c.Len())
	}
}

func TestLRU_Sweep(t *testing.T) {
	c, clk := newClocked[int](10, time.Minute)
	c.Set("old1", 1)
	c.Set("old2", 2)
	clk.advance(30 * time.Second)
	c.Set("fresh", 3)

	if n := c.Sweep(clk.t.Add(30 * time.Second)); n != 2 {
		t.Errorf("Sweep() = %d, want 2", n)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry must survive the sweep")
	}
}

func TestLRU_DeletePrefix(t *testing.T) {
	c, _ := newClocked[string](10, time.Hour)
	c.Set("u1\x00full", "a")
	c.Set("u1\x00brief", "b")
	c.Set("u10\x00full", "c")
	c.Set("u2\x00full", "d")

	if n := c.DeletePrefix("u1\x00"); n != 2 {
		t.Errorf("DeletePrefix() = %d, want 2", n)
	}
	if _, ok := c.Get("u10\x00full"); !ok {
		t.Error("a longer user id sharing the prefix characters must survive")
	}
	c.Delete("u2\x00full")
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestLRU_Stats(t *testing.T) {
	c, _ := newClocked[int](10, time.Hour)
	if r := c.Stats().HitRatio(); r != 0 {
		t.Errorf("HitRatio() before lookups = %v, want 0", r)
	}
	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	st := c.Stats()
	if st.Hits != 3 || st.Misses != 1 || st.Size != 1 {
		t.Errorf("Stats() = %+v, want 3 hits, 1 miss, size 1", st)
	}
	if r := st.HitRatio(); r != 0.75 {
		t.Errorf("HitRatio() = %v, want 0.75", r)
	}
}

func TestManager_SweepNow(t *testing.T) {
	a, clk := newClocked[int](10, time.Minute)
	b, _ := newClocked[string](10, time.Hour)
	a.Set("x", 1)
	b.Set("y", "y")

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)

	if n := m.SweepNow(clk.t.Add(2 * time.Minute)); n != 1 {
		t.Errorf("SweepNow() = %d, want 1", n)
	}
	if m.Swept() != 1 {
		t.Errorf("Swept() = %d, want 1", m.Swept())
	}
}

func TestManager_BackgroundSweep(t *testing.T) {
	c := New[int](Options{MaxEntries: 10, TTL: 10 * time.Millisecond})
	c.Set("a", 1)

	m := NewManager(nil)
	m.Register(c)
	m.Start(5 * time.Millisecond)
	defer m.Stop()

	deadline := time.Now().Add(time.Second)
	for c.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Len() != 0 {
		t.Error("expired entry was not swept by the manager")
	}
}

func TestManager_StopIsIdempotent(t *testing.T) {
	m := NewManager(nil)
	m.Stop()
	m.Stop()
}

func BenchmarkLRU(b *testing.B) {
	c := New[int](Options{MaxEntries: 1000, TTL: time.Hour})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("user-%d", i%100)
		if i%10 == 0 {
			c.Set(key, i)
		} else {
			c.Get(key)
		}
	}
}
