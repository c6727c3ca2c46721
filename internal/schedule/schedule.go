// Package schedule runs usage re-extraction in the background.
//
// Submitted tasks queue in FIFO order, one entry per (kind, key). Every
// submit restarts a debounce timer; when it fires the queue drains one entry
// at a time with a short yield between entries. A submit during a drain
// stops the drain and restarts the debounce. Deletions cancel the queued
// re-extraction and queue a removal, so the consumer applies changes to a
// file in the order they were submitted.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultDebounce = 100 * time.Millisecond
	DefaultYield    = 16 * time.Millisecond
)

// Task identifies a file to re-extract. A nil File marks a deletion.
type Task struct {
	Kind string
	Key  string
	File *string
}

type taskID struct {
	kind string
	key  string
}

func (t Task) id() taskID { return taskID{kind: t.Kind, key: t.Key} }

// entry is a queued task. remove marks a deletion; its File is the path last
// submitted for the key, or nil.
type entry struct {
	task   Task
	remove bool
}

// Handler processes drained tasks.
type Handler interface {
	// Process re-extracts the task's file.
	Process(ctx context.Context, t Task) error
	// Remove forgets the usages of a deleted file. t.File is the file last
	// submitted for the key, or nil if none was seen.
	Remove(ctx context.Context, t Task) error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDebounce sets the quiet period before a drain.
func WithDebounce(d time.Duration) Option {
	return func(s *Scheduler) { s.debounce = d }
}

// WithYield sets the pause between drained entries.
func WithYield(d time.Duration) Option {
	return func(s *Scheduler) { s.yield = d }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithDrainHook registers fn to be called after each drain pass with the
// number of entries processed.
func WithDrainHook(fn func(processed int)) Option {
	return func(s *Scheduler) { s.onDrain = fn }
}

// Scheduler is a debounced single-consumer task queue.
type Scheduler struct {
	handler  Handler
	logger   zerolog.Logger
	debounce time.Duration
	yield    time.Duration
	onDrain  func(int)

	mu     sync.Mutex
	queue  []entry
	files  map[taskID]string
	closed bool

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Scheduler. Call Run to start consuming.
func New(h Handler, opts ...Option) *Scheduler {
	s := &Scheduler{
		handler:  h,
		logger:   zerolog.Nop(),
		debounce: DefaultDebounce,
		yield:    DefaultYield,
		files:    make(map[taskID]string),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit queues a task. Re-submitting a queued key updates the queued entry
// in place. A nil File drops the queued re-extraction of the key and queues
// the removal of its usages instead.
func (s *Scheduler) Submit(t Task) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if t.File == nil {
		s.queueRemovalLocked(t)
	} else {
		s.queueLocked(t)
	}
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Scheduler) queueLocked(t Task) {
	id := t.id()
	s.files[id] = *t.File
	if i := s.indexLocked(id, false); i >= 0 {
		s.queue[i].task = t
		return
	}
	s.queue = append(s.queue, entry{task: t})
}

func (s *Scheduler) queueRemovalLocked(t Task) {
	id := t.id()
	if i := s.indexLocked(id, false); i >= 0 {
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
	}
	if f, ok := s.files[id]; ok {
		t.File = &f
		delete(s.files, id)
	}
	if i := s.indexLocked(id, true); i >= 0 {
		if t.File != nil {
			s.queue[i].task = t
		}
		return
	}
	s.queue = append(s.queue, entry{task: t, remove: true})
}

// indexLocked returns the position of the queued entry for id, or -1.
func (s *Scheduler) indexLocked(id taskID, remove bool) int {
	for i := range s.queue {
		if s.queue[i].remove == remove && s.queue[i].task.id() == id {
			return i
		}
	}
	return -1
}

// Pending returns the number of queued tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) pop() (entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return entry{}, false
	}
	e := s.queue[0]
	s.queue = s.queue[1:]
	return e, true
}

// Run consumes the queue until ctx is cancelled or Close is called.
func (s *Scheduler) Run(ctx context.Context) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	arm := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.NewTimer(s.debounce)
		fire = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	// Tasks submitted before Run still get drained.
	if s.Pending() > 0 {
		arm()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-s.notify:
			arm()
		case <-fire:
			fire = nil
			if s.drain(ctx) {
				arm()
			}
		}
	}
}

// drain processes queued tasks until the queue is empty. It reports whether
// it was interrupted by a new submit.
func (s *Scheduler) drain(ctx context.Context) (interrupted bool) {
	limiter := rate.NewLimiter(rate.Every(s.yield), 1)
	processed := 0
	defer func() {
		s.logger.Debug().Int("processed", processed).Bool("interrupted", interrupted).Msg("Drain finished")
		if s.onDrain != nil {
			s.onDrain(processed)
		}
	}()

	for {
		if d := limiter.Reserve().Delay(); d > 0 {
			wait := time.NewTimer(d)
			select {
			case <-ctx.Done():
				wait.Stop()
				return false
			case <-s.done:
				wait.Stop()
				return false
			case <-s.notify:
				wait.Stop()
				return true
			case <-wait.C:
			}
		}

		select {
		case <-s.notify:
			return true
		default:
		}

		e, ok := s.pop()
		if !ok {
			return false
		}
		if e.remove {
			if err := s.handler.Remove(ctx, e.task); err != nil {
				s.logger.Warn().Err(err).Str("key", e.task.Key).Msg("Removing usages failed")
			}
		} else if err := s.handler.Process(ctx, e.task); err != nil {
			s.logger.Warn().Err(err).Str("key", e.task.Key).Msg("Dropping task")
		}
		processed++
	}
}

// Close stops Run. Later submits are ignored.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}
