// Package view provides the surfaces a chat session renders into.
package view

import (
	"context"
	"sync"

	"github.com/luciancaetano/wsdemo"
)

// Memory records everything a session renders. It is safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	statuses []wsdemo.Status
	entries  []wsdemo.Entry
	scroll   int
	input    string
	changed  chan struct{}
}

// NewMemory returns an empty view with no status set.
func NewMemory() *Memory {
	return &Memory{changed: make(chan struct{})}
}

func (m *Memory) SetStatus(status wsdemo.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	m.notifyLocked()
}

func (m *Memory) AppendEntry(entry wsdemo.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	m.notifyLocked()
}

// ScrollToNewest moves the scroll offset to the last entry.
func (m *Memory) ScrollToNewest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scroll = len(m.entries) - 1
}

func (m *Memory) InputValue() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.input
}

func (m *Memory) SetInput(value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.input = value
}

func (m *Memory) ClearInput() {
	m.SetInput("")
}

// Status returns the current status. ok is false before any status was set.
func (m *Memory) Status() (status wsdemo.Status, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.statuses) == 0 {
		return wsdemo.Status{}, false
	}
	return m.statuses[len(m.statuses)-1], true
}

// Statuses returns every status set so far, oldest first.
func (m *Memory) Statuses() []wsdemo.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]wsdemo.Status(nil), m.statuses...)
}

// Entries returns a copy of the log.
func (m *Memory) Entries() []wsdemo.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]wsdemo.Entry(nil), m.entries...)
}

// ScrollOffset returns the index of the entry scrolled into view, or -1.
func (m *Memory) ScrollOffset() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return -1
	}
	return m.scroll
}

// WaitEntries blocks until the log holds at least n entries or ctx is done.
func (m *Memory) WaitEntries(ctx context.Context, n int) ([]wsdemo.Entry, error) {
	return wait(ctx, m, func() ([]wsdemo.Entry, bool) {
		return append([]wsdemo.Entry(nil), m.entries...), len(m.entries) >= n
	})
}

// WaitStatus blocks until the current status equals want or ctx is done.
func (m *Memory) WaitStatus(ctx context.Context, want wsdemo.Status) error {
	_, err := wait(ctx, m, func() (struct{}, bool) {
		return struct{}{}, len(m.statuses) > 0 && m.statuses[len(m.statuses)-1] == want
	})
	return err
}

func wait[T any](ctx context.Context, m *Memory, check func() (T, bool)) (T, error) {
	for {
		m.mu.Lock()
		v, ok := check()
		changed := m.changed
		m.mu.Unlock()
		if ok {
			return v, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return v, ctx.Err()
		}
	}
}

func (m *Memory) notifyLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

var _ wsdemo.View = (*Memory)(nil)
