package service

import (
	"context"
	"sync"
	"time"
)

type timerHandle interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) timerHandle

func realAfterFunc(d time.Duration, f func()) timerHandle {
	return time.AfterFunc(d, f)
}

type monitorEntry struct {
	token uint64
	timer timerHandle
}

// MonitorRegistry owns the polling timers, at most one per gateway payment
// id. Every armed timer carries a token; a poll may only re-arm the slot it
// was started for, so a cancelled monitor never comes back.
type MonitorRegistry struct {
	mu        sync.Mutex
	entries   map[string]*monitorEntry
	nextToken uint64
	closed    bool
	after     afterFunc
	inflight  sync.WaitGroup
}

func NewMonitorRegistry() *MonitorRegistry {
	return newMonitorRegistry(realAfterFunc)
}

func newMonitorRegistry(after afterFunc) *MonitorRegistry {
	return &MonitorRegistry{
		entries: map[string]*monitorEntry{},
		after:   after,
	}
}

// Start arms the first timer for id. It returns false when id is already
// monitored or the registry is closed.
func (m *MonitorRegistry) Start(id string, delay time.Duration, fn func(token uint64)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	if _, ok := m.entries[id]; ok {
		return false
	}

	m.nextToken++
	entry := &monitorEntry{token: m.nextToken}
	m.entries[id] = entry
	entry.timer = m.arm(entry.token, delay, fn)
	return true
}

// Reschedule arms the next timer for id if token still owns the slot.
func (m *MonitorRegistry) Reschedule(id string, token uint64, delay time.Duration, fn func(token uint64)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	entry, ok := m.entries[id]
	if !ok || entry.token != token {
		return false
	}
	entry.timer = m.arm(token, delay, fn)
	return true
}

// Finish releases the slot held by token.
func (m *MonitorRegistry) Finish(id string, token uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[id]; ok && entry.token == token {
		delete(m.entries, id)
	}
}

func (m *MonitorRegistry) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if !ok {
		return false
	}
	delete(m.entries, id)
	if entry.timer != nil {
		entry.timer.Stop()
	}
	return true
}

// CancelAll stops every timer and closes the registry for new ones.
func (m *MonitorRegistry) CancelAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	count := len(m.entries)
	for id, entry := range m.entries {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(m.entries, id)
	}
	return count
}

func (m *MonitorRegistry) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MonitorRegistry) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[id]
	return ok
}

// Wait blocks until in-flight polls return or ctx is done.
func (m *MonitorRegistry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// arm must be called with m.mu held.
func (m *MonitorRegistry) arm(token uint64, delay time.Duration, fn func(token uint64)) timerHandle {
	return m.after(delay, func() {
		if !m.begin() {
			return
		}
		defer m.inflight.Done()
		fn(token)
	})
}

func (m *MonitorRegistry) begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.inflight.Add(1)
	return true
}
