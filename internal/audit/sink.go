// Package audit records every message the executor emits. Sinks receive
// message values and must not hold on to anything the caller can mutate.
package audit

import (
	"context"
	"errors"
	"sync"

	"cloneexec/internal/ordermsg"
)

type Sink interface {
	Append(ctx context.Context, msg ordermsg.Message) error
}

// Reader is implemented by sinks that can list what they stored, newest first.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]ordermsg.Message, error)
}

// Multi fans a message out to every sink. All sinks are tried; the errors
// are joined.
type Multi []Sink

func (m Multi) Append(ctx context.Context, msg ordermsg.Message) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Append(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory keeps the last Size messages. A zero Size keeps everything.
type Memory struct {
	Size int

	mu   sync.Mutex
	msgs []ordermsg.Message
}

func NewMemory(size int) *Memory {
	return &Memory{Size: size}
}

func (m *Memory) Append(_ context.Context, msg ordermsg.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	if m.Size > 0 && len(m.msgs) > m.Size {
		m.msgs = append([]ordermsg.Message(nil), m.msgs[len(m.msgs)-m.Size:]...)
	}
	return nil
}

// Messages returns a copy in append order.
func (m *Memory) Messages() []ordermsg.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ordermsg.Message(nil), m.msgs...)
}

func (m *Memory) Recent(_ context.Context, limit int) ([]ordermsg.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newestFirst(m.msgs, limit), nil
}

func (m *Memory) Reset() {
	m.mu.Lock()
	m.msgs = nil
	m.mu.Unlock()
}

func newestFirst(msgs []ordermsg.Message, limit int) []ordermsg.Message {
	n := len(msgs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]ordermsg.Message, 0, n)
	for i := len(msgs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, msgs[i])
	}
	return out
}
