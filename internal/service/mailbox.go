package service

import "sync"

// mailbox is an unbounded FIFO feeding a channel. push never blocks, so producers
// (the event loop and provider callbacks) are never held up by a slow consumer.
type mailbox[T any] struct {
	mu     sync.Mutex
	queue  []T
	closed bool

	wake chan struct{}
	done chan struct{}
	out  chan T
}

func newMailbox[T any]() *mailbox[T] {
	m := &mailbox[T]{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan T),
	}
	go m.pump()
	return m
}

// C returns the delivery channel. It is closed once the mailbox is closed.
func (m *mailbox[T]) C() <-chan T {
	return m.out
}

// push enqueues v. It reports false when the mailbox is already closed.
func (m *mailbox[T]) push(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, v)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// close stops delivery. Queued values that were not yet received are dropped.
func (m *mailbox[T]) close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()
	close(m.done)
}

func (m *mailbox[T]) pump() {
	defer close(m.out)

	for {
		v, ok := m.next()
		if !ok {
			select {
			case <-m.wake:
				continue
			case <-m.done:
				return
			}
		}

		select {
		case m.out <- v:
		case <-m.done:
			return
		}
	}
}

func (m *mailbox[T]) next() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if len(m.queue) == 0 {
		return zero, false
	}
	v := m.queue[0]
	m.queue[0] = zero
	m.queue = m.queue[1:]
	return v, true
}
