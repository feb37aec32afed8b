package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int64, string](2, time.Minute)
	c.Set(1, "a")
	c.Set(2, "b")
	c.Get(1)
	c.Set(3, "c")

	if _, ok := c.Get(2); ok {
		t.Fatal("key 2 should have been evicted")
	}
	if v, ok := c.Get(1); !ok || v != "a" {
		t.Fatalf("key 1 = %q, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
}

func TestLRU_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRU[string, int](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.Set("b", 2)
	now = now.Add(30 * time.Second)
	c.Set("b", 3)
	now = now.Add(45 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Fatal("a should be expired")
	}
	if n := c.CleanExpired(); n != 0 {
		t.Fatalf("CleanExpired removed %d, want 0 (a already dropped by Get)", n)
	}
	now = now.Add(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired removed %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d, want 0", c.Size())
	}
}

func TestLoader_CoalescesAndCaches(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	l := NewLoader(NewLRU[int64, string](10, time.Minute), func(ctx context.Context, key int64) (string, error) {
		calls.Add(1)
		<-release
		return "user", nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := l.Get(context.Background(), 7); err != nil || v != "user" {
				t.Errorf("Get = %q, %v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if _, err := l.Get(context.Background(), 7); err != nil {
		t.Fatalf("cached Get error: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("load called %d times, want 1", n)
	}

	l.Invalidate(7)
	release = make(chan struct{})
	close(release)
	l.Get(context.Background(), 7)
	if n := calls.Load(); n != 2 {
		t.Fatalf("load called %d times after invalidate, want 2", n)
	}
}

func TestLoader_DoesNotCacheErrors(t *testing.T) {
	var calls int
	l := NewLoader(NewLRU[int64, int](10, time.Minute), func(ctx context.Context, key int64) (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	l.Get(context.Background(), 1)
	l.Get(context.Background(), 1)
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestJanitorSweep(t *testing.T) {
	now := time.Now()
	a := NewLRU[int, int](10, time.Second)
	a.now = func() time.Time { return now }
	a.Set(1, 1)
	a.Set(2, 2)
	now = now.Add(2 * time.Second)

	j := NewJanitor(nil, a)
	if n := j.Sweep(); n != 2 {
		t.Fatalf("Sweep = %d, want 2", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.Run(ctx, time.Millisecond); err != nil {
		t.Fatalf("Run error: %v", err)
	}
}
