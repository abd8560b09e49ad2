package queue

import (
	"context"
	"sync"
)

// Memory is an in-process task channel for single-node runs. Submit
// blocks once the buffer is full, which is the only backpressure the
// dispatcher ever sees.
type Memory struct {
	ch chan Task

	mu     sync.Mutex
	closed bool
}

// NewMemory returns a Memory queue buffering up to size tasks.
func NewMemory(size int) *Memory {
	return &Memory{ch: make(chan Task, size)}
}

func (m *Memory) Submit(ctx context.Context, t Task) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.mu.Unlock()

	select {
	case m.ch <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Receive(ctx context.Context) (Delivery, error) {
	select {
	case t, ok := <-m.ch:
		if !ok {
			return Delivery{}, ErrClosed
		}
		return Delivery{
			Task:    t,
			Ack:     func() error { return nil },
			Requeue: func() error { return m.Submit(context.Background(), t) },
		}, nil
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	}
}

// Close stops the queue; pending tasks are still delivered.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
}
