// Package dispatch_test provides mock implementations for dispatcher testing.
// Related: internal/dispatch/dispatch.go
// Tags: dispatch, mocks, testing

package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/ariel-frischer/hookrelay/internal/config"
	"github.com/ariel-frischer/hookrelay/internal/event"
	"github.com/ariel-frischer/hookrelay/internal/invoker"
	"github.com/ariel-frischer/hookrelay/internal/outcome"
)

// MockRunner records invocations and returns configurable outcomes without
// starting processes
type MockRunner struct {
	mu sync.Mutex

	// Configuration
	PathErrors map[string]error
	InvokeFunc func(ctx context.Context, ch config.Channel, ev event.Event, timeout time.Duration) outcome.Outcome

	// Call tracking
	Invoked  []string
	Timeouts map[string]time.Duration
	Events   []event.Event
}

// NewMockRunner creates a runner whose handlers all succeed
func NewMockRunner() *MockRunner {
	return &MockRunner{
		PathErrors: make(map[string]error),
		Timeouts:   make(map[string]time.Duration),
	}
}

// WithInvalidPath makes CheckPath reject script
func (m *MockRunner) WithInvalidPath(script string) *MockRunner {
	m.PathErrors[script] = invoker.ErrInvalidPath
	return m
}

// WithInvokeFunc replaces the default successful invocation
func (m *MockRunner) WithInvokeFunc(fn func(ctx context.Context, ch config.Channel, ev event.Event, timeout time.Duration) outcome.Outcome) *MockRunner {
	m.InvokeFunc = fn
	return m
}

// CheckPath implements Runner
func (m *MockRunner) CheckPath(script string) error {
	return m.PathErrors[script]
}

// Invoke implements Runner
func (m *MockRunner) Invoke(ctx context.Context, ch config.Channel, ev event.Event, timeout time.Duration) outcome.Outcome {
	m.mu.Lock()
	m.Invoked = append(m.Invoked, ch.Name)
	m.Timeouts[ch.Name] = timeout
	m.Events = append(m.Events, ev)
	fn := m.InvokeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, ch, ev, timeout)
	}
	return outcome.Outcome{Channel: ch.Name, Decision: outcome.Ran, Duration: time.Millisecond}
}

// InvokedNames returns a copy of the invoked channel names in call order
func (m *MockRunner) InvokedNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Invoked...)
}

// MockRecorder collects reports
type MockRecorder struct {
	mu      sync.Mutex
	Err     error
	Reports []Report
}

// Record implements Recorder
func (m *MockRecorder) Record(r Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reports = append(m.Reports, r)
	return m.Err
}
