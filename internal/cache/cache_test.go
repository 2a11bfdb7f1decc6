package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock is a settable clock safe for concurrent use.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// countingLoader returns value and err and counts invocations.
type countingLoader struct {
	calls atomic.Int32
	value string
	err   error
}

func (l *countingLoader) load(context.Context) (string, error) {
	l.calls.Add(1)
	return l.value, l.err
}

func TestGet_HitWithinTTL(t *testing.T) {
	clock := newFakeClock()
	c := New[string](Options{Name: "test", TTL: 300 * time.Second, Now: clock.Now})
	loader := &countingLoader{value: "v1"}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := c.Get(ctx, "k", loader.load)
		if err != nil {
			t.Fatalf("Get #%d: %v", i+1, err)
		}
		if v != "v1" {
			t.Errorf("Get #%d = %q, want v1", i+1, v)
		}
		clock.Advance(100 * time.Second)
	}
	if n := loader.calls.Load(); n != 1 {
		t.Errorf("loader calls = %d, want 1", n)
	}
}

func TestGet_ReloadsAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	c := New[string](Options{TTL: 300 * time.Second, Now: clock.Now})
	loader := &countingLoader{value: "v1"}
	ctx := context.Background()

	if _, err := c.Get(ctx, "k", loader.load); err != nil {
		t.Fatalf("Get: %v", err)
	}
	clock.Advance(300 * time.Second)
	loader.value = "v2"
	v, err := c.Get(ctx, "k", loader.load)
	if err != nil {
		t.Fatalf("Get after expiry: %v", err)
	}
	if v != "v2" {
		t.Errorf("Get after expiry = %q, want v2", v)
	}
	if n := loader.calls.Load(); n != 2 {
		t.Errorf("loader calls = %d, want 2", n)
	}
}

func TestGet_KeysAreIndependent(t *testing.T) {
	c := New[string](Options{TTL: time.Minute})
	a := &countingLoader{value: "a"}
	b := &countingLoader{value: "b"}
	ctx := context.Background()

	va, _ := c.Get(ctx, "a", a.load)
	vb, _ := c.Get(ctx, "b", b.load)
	if va != "a" || vb != "b" {
		t.Errorf("values = %q, %q; want a, b", va, vb)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestGet_CoalescesConcurrentMisses(t *testing.T) {
	c := New[string](Options{TTL: time.Minute})
	release := make(chan struct{})
	var calls atomic.Int32
	load := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const waiters = 20
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
		results = make([]string, waiters)
		errs    = make([]error, waiters)
	)
	started.Add(waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			results[i], errs[i] = c.Get(context.Background(), "k", load)
		}(i)
	}
	started.Wait()
	// Give every goroutine time to join the flight before it completes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("loader calls = %d, want 1", n)
	}
	for i := range results {
		if errs[i] != nil || results[i] != "shared" {
			t.Errorf("waiter %d = %q, %v; want shared, nil", i, results[i], errs[i])
		}
	}
}

func TestGet_ErrorNotRetainedByDefault(t *testing.T) {
	c := New[string](Options{TTL: time.Minute})
	boom := errors.New("boom")
	loader := &countingLoader{err: boom}
	ctx := context.Background()

	if _, err := c.Get(ctx, "k", loader.load); !errors.Is(err, boom) {
		t.Fatalf("Get err = %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0 after failed load", c.Len())
	}
	loader.err = nil
	loader.value = "ok"
	v, err := c.Get(ctx, "k", loader.load)
	if err != nil || v != "ok" {
		t.Errorf("Get after failure = %q, %v; want ok, nil", v, err)
	}
	if n := loader.calls.Load(); n != 2 {
		t.Errorf("loader calls = %d, want 2", n)
	}
}

func TestGet_ErrorRetainedForErrorTTL(t *testing.T) {
	clock := newFakeClock()
	c := New[string](Options{TTL: time.Minute, ErrorTTL: 5 * time.Second, Now: clock.Now})
	boom := errors.New("boom")
	loader := &countingLoader{err: boom}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.Get(ctx, "k", loader.load); !errors.Is(err, boom) {
			t.Fatalf("Get #%d err = %v, want boom", i+1, err)
		}
	}
	if n := loader.calls.Load(); n != 1 {
		t.Errorf("loader calls within error TTL = %d, want 1", n)
	}

	clock.Advance(5 * time.Second)
	loader.err = nil
	loader.value = "recovered"
	v, err := c.Get(ctx, "k", loader.load)
	if err != nil || v != "recovered" {
		t.Errorf("Get after error TTL = %q, %v; want recovered, nil", v, err)
	}
}

func TestGet_FailureReplacesExpiredSuccess(t *testing.T) {
	clock := newFakeClock()
	c := New[string](Options{TTL: time.Minute, Now: clock.Now})
	loader := &countingLoader{value: "old"}
	ctx := context.Background()

	if _, err := c.Get(ctx, "k", loader.load); err != nil {
		t.Fatalf("Get: %v", err)
	}
	clock.Advance(2 * time.Minute)
	loader.err = errors.New("store down")
	if _, err := c.Get(ctx, "k", loader.load); err == nil {
		t.Fatal("Get should surface the failed reload, not the stale value")
	}
}

func TestInvalidate_DropsEntry(t *testing.T) {
	c := New[string](Options{TTL: time.Minute})
	loader := &countingLoader{value: "v"}
	ctx := context.Background()

	c.Get(ctx, "k", loader.load)
	c.Invalidate("k")
	c.Get(ctx, "k", loader.load)
	if n := loader.calls.Load(); n != 2 {
		t.Errorf("loader calls = %d, want 2", n)
	}
}

func TestInvalidate_LateLoadDoesNotOverwrite(t *testing.T) {
	c := New[string](Options{TTL: time.Minute})
	release := make(chan struct{})
	entered := make(chan struct{})
	slow := func(context.Context) (string, error) {
		close(entered)
		<-release
		return "stale", nil
	}

	done := make(chan string)
	go func() {
		v, _ := c.Get(context.Background(), "k", slow)
		done <- v
	}()
	<-entered

	c.Invalidate("k")
	fresh := &countingLoader{value: "fresh"}
	v, err := c.Get(context.Background(), "k", fresh.load)
	if err != nil || v != "fresh" {
		t.Fatalf("Get after invalidate = %q, %v; want fresh, nil", v, err)
	}

	close(release)
	if got := <-done; got != "stale" {
		t.Errorf("slow caller = %q, want stale", got)
	}

	v, _ = c.Get(context.Background(), "k", fresh.load)
	if v != "fresh" {
		t.Errorf("cached value = %q, want fresh; late load overwrote newer entry", v)
	}
	if n := fresh.calls.Load(); n != 1 {
		t.Errorf("fresh loader calls = %d, want 1", n)
	}
}

func TestGet_CallerCancelDoesNotAbortLoad(t *testing.T) {
	c := New[string](Options{TTL: time.Minute})
	release := make(chan struct{})
	loaded := make(chan struct{})
	var loadCtxErr error
	load := func(ctx context.Context) (string, error) {
		<-release
		loadCtxErr = ctx.Err()
		close(loaded)
		return "v", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error)
	go func() {
		_, err := c.Get(ctx, "k", load)
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Get err = %v, want context.Canceled", err)
	}

	close(release)
	<-loaded
	if loadCtxErr != nil {
		t.Errorf("load context err = %v, want nil", loadCtxErr)
	}

	// The detached load still populates the cache.
	deadline := time.Now().Add(time.Second)
	for c.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	other := &countingLoader{value: "other"}
	v, _ := c.Get(context.Background(), "k", other.load)
	if v != "v" || other.calls.Load() != 0 {
		t.Errorf("Get = %q with %d loads, want cached v with 0 loads", v, other.calls.Load())
	}
}

func TestGet_NilPointerValueIsCached(t *testing.T) {
	type record struct{ name string }
	c := New[*record](Options{TTL: time.Minute})
	var calls atomic.Int32
	load := func(context.Context) (*record, error) {
		calls.Add(1)
		return nil, nil
	}
	for i := 0; i < 2; i++ {
		v, err := c.Get(context.Background(), "missing", load)
		if err != nil || v != nil {
			t.Fatalf("Get = %v, %v; want nil, nil", v, err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("loader calls = %d, want 1 (not-found is a cacheable result)", n)
	}
}
