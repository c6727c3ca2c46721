package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu        sync.Mutex
	processed []Task
	removed   []Task
	fail      map[string]bool
}

func (r *recorder) Process(_ context.Context, t Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed = append(r.processed, t)
	if r.fail[t.Key] {
		return errors.New("boom")
	}
	return nil
}

func (r *recorder) Remove(_ context.Context, t Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, t)
	return nil
}

func (r *recorder) files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, t := range r.processed {
		out = append(out, t.Key+"="+*t.File)
	}
	return out
}

func task(key, file string) Task {
	return Task{Kind: "template", Key: key, File: &file}
}

func startScheduler(t *testing.T, h Handler) (*Scheduler, chan int) {
	t.Helper()
	drains := make(chan int, 16)
	s := New(h,
		WithDebounce(20*time.Millisecond),
		WithYield(time.Millisecond),
		WithDrainHook(func(n int) { drains <- n }),
	)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = s.Run(ctx) }()
	return s, drains
}

func waitDrain(t *testing.T, drains chan int) int {
	t.Helper()
	select {
	case n := <-drains:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for drain")
		return 0
	}
}

func TestScheduler_CoalescesBurstIntoOneDrain(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	s, drains := startScheduler(t, rec)

	s.Submit(task("a.hbs", "v1"))
	s.Submit(task("a.hbs", "v2"))
	s.Submit(task("a.hbs", "v3"))

	assert.Equal(t, 1, waitDrain(t, drains))
	assert.Equal(t, []string{"a.hbs=v3"}, rec.files())

	select {
	case n := <-drains:
		t.Fatalf("unexpected second drain processing %d", n)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScheduler_FIFOWithInPlaceUpdate(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	s, drains := startScheduler(t, rec)

	s.Submit(task("a.hbs", "a1"))
	s.Submit(task("b.hbs", "b1"))
	s.Submit(task("a.hbs", "a2"))

	assert.Equal(t, 2, waitDrain(t, drains))
	assert.Equal(t, []string{"a.hbs=a2", "b.hbs=b1"}, rec.files())
}

func TestScheduler_FailingEntryIsDropped(t *testing.T) {
	t.Parallel()
	rec := &recorder{fail: map[string]bool{"bad.hbs": true}}
	s, drains := startScheduler(t, rec)

	s.Submit(task("bad.hbs", "x"))
	s.Submit(task("good.hbs", "y"))

	assert.Equal(t, 2, waitDrain(t, drains))
	assert.Equal(t, []string{"bad.hbs=x", "good.hbs=y"}, rec.files())
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_DeletionQueuesRemovalInsteadOfExtraction(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	drains := make(chan int, 1)
	s := New(rec, WithDebounce(time.Millisecond), WithDrainHook(func(n int) { drains <- n }))

	s.Submit(task("a.hbs", "/p/a.hbs"))
	require.Equal(t, 1, s.Pending())

	s.Submit(Task{Kind: "template", Key: "a.hbs"})
	s.Submit(Task{Kind: "template", Key: "a.hbs"})
	assert.Equal(t, 1, s.Pending(), "the extraction is replaced by one removal")

	s.Submit(Task{Kind: "template", Key: "never-seen.hbs"})
	assert.Equal(t, 2, s.Pending())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = s.Run(ctx) }()

	assert.Equal(t, 2, waitDrain(t, drains))
	assert.Empty(t, rec.files(), "deleted files are never re-extracted")
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.removed, 2)
	require.NotNil(t, rec.removed[0].File)
	assert.Equal(t, "/p/a.hbs", *rec.removed[0].File)
	assert.Nil(t, rec.removed[1].File)
}

// gated records handler calls in order and blocks the first Process until
// release is closed.
type gated struct {
	mu      sync.Mutex
	events  []string
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gated) Process(_ context.Context, t Task) error {
	g.once.Do(func() {
		close(g.started)
		<-g.release
	})
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, "process "+t.Key)
	return nil
}

func (g *gated) Remove(_ context.Context, t Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, "remove "+t.Key)
	return nil
}

func TestScheduler_DeletionDuringExtractionRunsAfterIt(t *testing.T) {
	t.Parallel()
	g := &gated{started: make(chan struct{}), release: make(chan struct{})}
	s, drains := startScheduler(t, g)

	s.Submit(task("a.hbs", "/p/a.hbs"))
	select {
	case <-g.started:
	case <-time.After(2 * time.Second):
		t.Fatal("extraction never started")
	}

	s.Submit(Task{Kind: "template", Key: "a.hbs"})
	close(g.release)

	assert.Equal(t, 1, waitDrain(t, drains), "interrupted after the in-flight entry")
	assert.Equal(t, 1, waitDrain(t, drains))

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Equal(t, []string{"process a.hbs", "remove a.hbs"}, g.events)
}

func TestScheduler_ResubmitAfterDeletionRunsInOrder(t *testing.T) {
	t.Parallel()
	g := &gated{started: make(chan struct{}), release: make(chan struct{})}
	close(g.release)
	drains := make(chan int, 1)
	s := New(g, WithDebounce(time.Millisecond), WithDrainHook(func(n int) { drains <- n }))

	s.Submit(task("a.hbs", "/p/a.hbs"))
	s.Submit(Task{Kind: "template", Key: "a.hbs"})
	s.Submit(task("a.hbs", "/p/a.hbs"))
	assert.Equal(t, 2, s.Pending())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = s.Run(ctx) }()

	assert.Equal(t, 2, waitDrain(t, drains))
	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Equal(t, []string{"remove a.hbs", "process a.hbs"}, g.events)
}

func TestScheduler_SameKeyDifferentKindIsDistinct(t *testing.T) {
	t.Parallel()
	s := New(&recorder{})
	s.Submit(Task{Kind: "template", Key: "k", File: new(string)})
	s.Submit(Task{Kind: "script", Key: "k", File: new(string)})
	assert.Equal(t, 2, s.Pending())
}

func TestScheduler_CloseStopsRun(t *testing.T) {
	t.Parallel()
	s := New(&recorder{})
	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()

	s.Close()
	s.Close()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	s.Submit(task("a.hbs", "x"))
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_RunHonoursContext(t *testing.T) {
	t.Parallel()
	s := New(&recorder{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
}
