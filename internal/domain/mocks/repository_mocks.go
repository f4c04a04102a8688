package mocks

import (
	"context"
	"sync"

	"github.com/V4T54L/loanapp/internal/domain"
)

// MockLogStore is a mock implementation of domain.LogStore for testing.
type MockLogStore struct {
	mu         sync.Mutex
	Records    []domain.ErrorRecord
	Capacities []int
	AppendErr  error
	AllErr     error
	ClearErr   error
	Cleared    int
}

func (m *MockLogStore) Append(ctx context.Context, record domain.ErrorRecord, capacity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.Capacities = append(m.Capacities, capacity)
	m.Records = append(m.Records, record)
	if capacity > 0 && len(m.Records) > capacity {
		m.Records = append([]domain.ErrorRecord(nil), m.Records[len(m.Records)-capacity:]...)
	}
	return nil
}

func (m *MockLogStore) All(ctx context.Context) ([]domain.ErrorRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AllErr != nil {
		return nil, m.AllErr
	}
	return append([]domain.ErrorRecord(nil), m.Records...), nil
}

func (m *MockLogStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.Records = nil
	m.Cleared++
	return nil
}

// Snapshot returns the stored records without going through All.
func (m *MockLogStore) Snapshot() []domain.ErrorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ErrorRecord(nil), m.Records...)
}

// MockSessionStore is a mock implementation of domain.SessionStore.
type MockSessionStore struct {
	mu      sync.Mutex
	Values  map[string]string
	GetErr  error
	SetErr  error
	Sets    int
	Deletes int
}

func (m *MockSessionStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	v, ok := m.Values[key]
	return v, ok, nil
}

func (m *MockSessionStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	if m.Values == nil {
		m.Values = make(map[string]string)
	}
	m.Values[key] = value
	m.Sets++
	return nil
}

func (m *MockSessionStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Values, key)
	m.Deletes++
	return nil
}

// MockReportSink is a mock implementation of domain.ReportSink. With
// FailTimes set, the first FailTimes calls return WriteErr.
type MockReportSink struct {
	mu        sync.Mutex
	Written   []domain.ReceivedReport
	WriteErr  error
	FailTimes int
	Calls     int
}

func (m *MockReportSink) WriteReports(ctx context.Context, reports []domain.ReceivedReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.WriteErr != nil && (m.FailTimes == 0 || m.Calls <= m.FailTimes) {
		return m.WriteErr
	}
	m.Written = append(m.Written, reports...)
	return nil
}

// MockAPIKeyRepository is a mock implementation of domain.APIKeyRepository.
type MockAPIKeyRepository struct {
	ValidKeys map[string]bool
	Err       error
}

func (m *MockAPIKeyRepository) IsValid(ctx context.Context, key string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	return m.ValidKeys[key], nil
}

// Reports returns the written reports.
func (m *MockReportSink) Reports() []domain.ReceivedReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ReceivedReport(nil), m.Written...)
}
