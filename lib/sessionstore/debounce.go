package sessionstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultDelay is the quiet period a session has to stay unchanged
// before it is written.
const DefaultDelay = 750 * time.Millisecond

const writeTimeout = 10 * time.Second

type Writer interface {
	Put(ctx context.Context, user, cookies string) error
}

// whoever removes a pendingWrite from the map marks it done on inflight
type pendingWrite struct {
	cookies    string
	generation uint64
	timer      *time.Timer
}

// Debouncer coalesces bursts of session updates into a single write per
// user. a newer update replaces the pending one and restarts the delay.
type Debouncer struct {
	store Writer
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*pendingWrite
	// bumped by Cancel, a write of an older generation is dropped
	generations map[string]uint64
	// serializes writes so an older blob never lands after a newer one
	writeMu  sync.Mutex
	inflight sync.WaitGroup
}

func NewDebouncer(store Writer, delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{
		store:   store,
		delay:   delay,
		pending:     map[string]*pendingWrite{},
		generations: map[string]uint64{},
	}
}

func (d *Debouncer) Schedule(user, cookies string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[user]; ok {
		p.cookies = cookies
		p.timer.Reset(d.delay)
		return
	}
	p := &pendingWrite{cookies: cookies, generation: d.generations[user]}
	d.inflight.Add(1)
	p.timer = time.AfterFunc(d.delay, func() {
		d.fire(user, p)
	})
	d.pending[user] = p
}

// Cancel drops the pending write of user and waits for a write of user
// that already started. nothing scheduled before Cancel is written after
// it returns.
func (d *Debouncer) Cancel(user string) {
	d.mu.Lock()
	d.generations[user]++
	p, ok := d.pending[user]
	if ok {
		delete(d.pending, user)
		p.timer.Stop()
		d.inflight.Done()
	}
	d.mu.Unlock()

	d.writeMu.Lock()
	d.writeMu.Unlock()
}

// Fence cancels the writes of user like Cancel, then runs fn while no
// write can start. Put or Delete the session of user inside fn so a
// stale blob cannot land after it.
func (d *Debouncer) Fence(ctx context.Context, user string, fn func(ctx context.Context) error) error {
	d.Cancel(user)
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return fn(ctx)
}

func (d *Debouncer) fire(user string, p *pendingWrite) {
	d.mu.Lock()
	if d.pending[user] != p {
		// flushed, cancelled or already written by an earlier tick
		d.mu.Unlock()
		return
	}
	delete(d.pending, user)
	cookies := p.cookies
	d.mu.Unlock()
	defer d.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	err := d.write(ctx, user, cookies, p.generation)
	if err != nil {
		slog.ErrorContext(ctx, "failed to persist session", "user", user, "err", err)
	}
}

func (d *Debouncer) write(ctx context.Context, user, cookies string, generation uint64) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.mu.Lock()
	stale := d.generations[user] != generation
	d.mu.Unlock()
	if stale {
		return nil
	}
	return d.store.Put(ctx, user, cookies)
}

// Flush writes every pending update now and waits for writes already in
// progress. nothing should be scheduled while it runs.
func (d *Debouncer) Flush(ctx context.Context) error {
	d.mu.Lock()
	pending := d.pending
	d.pending = map[string]*pendingWrite{}
	for _, p := range pending {
		p.timer.Stop()
	}
	d.mu.Unlock()

	var errs []error
	for user, p := range pending {
		err := d.write(ctx, user, p.cookies, p.generation)
		if err != nil {
			errs = append(errs, err)
		}
	}
	d.inflight.Add(-len(pending))
	d.inflight.Wait()
	return errors.Join(errs...)
}
