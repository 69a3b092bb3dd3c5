// Package channel provides bounded broadcast channels for handing samples from producer goroutines
// to a single control loop. A send never blocks: when a receiver's buffer is full its oldest unread
// value is overwritten.
package channel

import (
	"sync"

	"go.uber.org/atomic"
)

// Channel multicasts every sent value to all of its open receivers.
type Channel[T any] struct {
	mu        sync.RWMutex
	receivers []*Receiver[T]
}

// New returns a channel with no receivers. Values sent before a receiver is opened are lost.
func New[T any]() *Channel[T] {
	return &Channel[T]{}
}

// Sender returns the sending end of the channel. Senders may be copied and used from any goroutine.
func (c *Channel[T]) Sender() Sender[T] {
	return Sender[T]{c: c}
}

// OpenReceiver opens a new receiver holding at most size unread values. A size below 1 is treated as 1.
func (c *Channel[T]) OpenReceiver(size int) *Receiver[T] {
	if size < 1 {
		size = 1
	}
	r := &Receiver[T]{ch: c, buf: make([]T, size)}
	c.add(r)
	return r
}

// NumReceivers returns how many receivers are currently open.
func (c *Channel[T]) NumReceivers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.receivers)
}

func (c *Channel[T]) add(r *Receiver[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.receivers {
		if existing == r {
			return
		}
	}
	c.receivers = append(c.receivers, r)
}

func (c *Channel[T]) remove(r *Receiver[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.receivers {
		if existing == r {
			c.receivers = append(c.receivers[:i], c.receivers[i+1:]...)
			return
		}
	}
}

func (c *Channel[T]) push(v T) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.receivers {
		r.push(v)
	}
}

// Sender is the sending end of a Channel.
type Sender[T any] struct {
	c *Channel[T]
}

// Send delivers v to every open receiver.
func (s Sender[T]) Send(v T) {
	if s.c == nil {
		return
	}
	s.c.push(v)
}

// Receiver is a bounded FIFO of values sent on a Channel.
type Receiver[T any] struct {
	ch *Channel[T]

	mu sync.Mutex
	// buf is a ring: oldest is the index of the oldest unread value and count the number unread.
	buf    []T
	oldest int
	count  int

	dropped atomic.Uint64
}

func (r *Receiver[T]) push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	newest := (r.oldest + r.count) % len(r.buf)
	r.buf[newest] = v
	if r.count == len(r.buf) {
		r.oldest = (r.oldest + 1) % len(r.buf)
		r.dropped.Inc()
		return
	}
	r.count++
}

// Recv removes and returns the oldest unread value. The second return is false when there is none.
func (r *Receiver[T]) Recv() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	if r.count == 0 {
		return zero, false
	}
	v := r.buf[r.oldest]
	r.buf[r.oldest] = zero
	r.oldest = (r.oldest + 1) % len(r.buf)
	r.count--
	return v, true
}

// RecvOr is Recv returning def when there is nothing to receive.
func (r *Receiver[T]) RecvOr(def T) T {
	if v, ok := r.Recv(); ok {
		return v
	}
	return def
}

// Inspect returns the oldest unread value without removing it.
func (r *Receiver[T]) Inspect() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		var zero T
		return zero, false
	}
	return r.buf[r.oldest], true
}

// HasData returns whether there is an unread value.
func (r *Receiver[T]) HasData() bool {
	return r.Len() > 0
}

// Len returns the number of unread values.
func (r *Receiver[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// RecvAll removes and returns every unread value, oldest first.
func (r *Receiver[T]) RecvAll() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return nil
	}
	out := make([]T, 0, r.count)
	var zero T
	for i := 0; i < r.count; i++ {
		idx := (r.oldest + i) % len(r.buf)
		out = append(out, r.buf[idx])
		r.buf[idx] = zero
	}
	r.oldest = 0
	r.count = 0
	return out
}

// Dropped returns how many values were overwritten before being read.
func (r *Receiver[T]) Dropped() uint64 {
	return r.dropped.Load()
}

// Cap returns the maximum number of unread values the receiver holds.
func (r *Receiver[T]) Cap() int {
	return len(r.buf)
}

// Close detaches the receiver from its channel. Unread values stay readable.
func (r *Receiver[T]) Close() {
	r.ch.remove(r)
}

// Open reattaches a closed receiver. Opening an open receiver does nothing.
func (r *Receiver[T]) Open() {
	r.ch.add(r)
}

// Fork opens a new receiver on the same channel. It only sees values sent after the fork.
func (r *Receiver[T]) Fork(size int) *Receiver[T] {
	return r.ch.OpenReceiver(size)
}
