package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/V4T54L/loanapp/internal/domain"
)

// MockConsole records every written record.
type MockConsole struct {
	mu       sync.Mutex
	Records  []domain.ErrorRecord
	WriteErr error
}

func (m *MockConsole) Write(record domain.ErrorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, record)
	return m.WriteErr
}

func (m *MockConsole) Written() []domain.ErrorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ErrorRecord(nil), m.Records...)
}

// MockRemote records sends and fails them with SendErr when set.
type MockRemote struct {
	mu        sync.Mutex
	Endpoints []string
	Records   []domain.ErrorRecord
	SendErr   error
}

func (m *MockRemote) Send(ctx context.Context, endpoint string, record domain.ErrorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Endpoints = append(m.Endpoints, endpoint)
	m.Records = append(m.Records, record)
	return m.SendErr
}

func (m *MockRemote) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Records)
}

// MockEvents is a mock domain.EventChannel.
type MockEvents struct {
	mu         sync.Mutex
	Records    []domain.ErrorRecord
	CaptureErr error
	Flushes    int
}

func (m *MockEvents) Capture(ctx context.Context, record domain.ErrorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, record)
	return m.CaptureErr
}

func (m *MockEvents) Flush(timeout time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Flushes++
	return true
}

func (m *MockEvents) Captured() []domain.ErrorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ErrorRecord(nil), m.Records...)
}
