// Package coalesce collapses concurrent executions of the same question
// into one. It is not a cache: once an execution finishes its entry is
// removed and the next call for that question runs again.
package coalesce

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Avexra-AI/SAS-Chatbot/api/metrics"
	"golang.org/x/text/cases"
)

// Func is the work shared by all callers of one fingerprint.
type Func[T any] func(ctx context.Context) (T, error)

type entry[T any] struct {
	done    chan struct{}
	value   T
	err     error
	waiters int

	panicked   bool
	panicValue any
}

// Dispatcher runs at most one Func per fingerprint at a time.
type Dispatcher[T any] struct {
	log *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry[T]
}

func New[T any](log *slog.Logger) *Dispatcher[T] {
	return &Dispatcher[T]{
		log:     log,
		entries: make(map[string]*entry[T]),
	}
}

// Fingerprint is the SHA-256 of the trimmed, case-folded question.
func Fingerprint(question string) string {
	normalized := cases.Fold().String(strings.TrimSpace(question))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Dispatch runs fn for question unless an execution for the same
// fingerprint is already in flight, in which case it waits for that
// execution and returns its outcome.
//
// fn runs in its own goroutine with a context detached from the
// executing caller's cancellation. Any caller whose ctx ends, the executing
// one included, stops waiting and gets ctx.Err(); the shared execution
// continues for the others. A panic in fn is re-raised in the executing
// caller if it is still waiting.
func (d *Dispatcher[T]) Dispatch(ctx context.Context, question string, fn Func[T]) (T, error) {
	key := Fingerprint(question)

	d.mu.Lock()
	if e, ok := d.entries[key]; ok {
		e.waiters++
		d.mu.Unlock()
		metrics.CoalesceWaitersTotal.Inc()
		d.log.Debug("coalesce: waiting on in-flight execution", "fingerprint", key[:12])
		return d.wait(ctx, key, e)
	}
	e := &entry[T]{done: make(chan struct{})}
	d.entries[key] = e
	d.mu.Unlock()

	metrics.CoalesceExecutionsTotal.Inc()
	metrics.CoalesceInFlight.Inc()
	return d.execute(ctx, key, e, fn)
}

func (d *Dispatcher[T]) execute(ctx context.Context, key string, e *entry[T], fn Func[T]) (T, error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.err = fmt.Errorf("coalesce: execution panicked: %v", r)
				e.panicked, e.panicValue = true, r
				d.log.Error("coalesce: execution panicked", "fingerprint", key[:12], "panic", r)
			}
			d.release(key, e)
		}()
		e.value, e.err = fn(context.WithoutCancel(ctx))
	}()

	select {
	case <-e.done:
		if e.panicked {
			panic(e.panicValue)
		}
		return e.value, e.err
	case <-ctx.Done():
		d.log.Debug("coalesce: executing caller left before completion", "fingerprint", key[:12])
		var zero T
		return zero, ctx.Err()
	}
}

func (d *Dispatcher[T]) release(key string, e *entry[T]) {
	d.mu.Lock()
	delete(d.entries, key)
	waiters := e.waiters
	close(e.done)
	d.mu.Unlock()
	metrics.CoalesceInFlight.Dec()
	if waiters > 0 {
		d.log.Debug("coalesce: execution shared", "fingerprint", key[:12], "waiters", waiters)
	}
}

func (d *Dispatcher[T]) wait(ctx context.Context, key string, e *entry[T]) (T, error) {
	select {
	case <-e.done:
		return e.value, e.err
	case <-ctx.Done():
		d.mu.Lock()
		if d.entries[key] == e {
			e.waiters--
		}
		d.mu.Unlock()
		var zero T
		return zero, ctx.Err()
	}
}

// InFlight returns the number of fingerprints currently executing.
func (d *Dispatcher[T]) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Waiters returns how many callers are attached to the in-flight
// execution for question, or -1 if none is running.
func (d *Dispatcher[T]) Waiters(question string) int {
	key := Fingerprint(question)
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[key]; ok {
		return e.waiters
	}
	return -1
}
