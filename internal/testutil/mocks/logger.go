// Package mocks provides shared mock implementations of the domain ports.
package mocks

import (
	"sync"

	"github.com/kevin07696/subscription-service/internal/domain/ports"
)

// LogCall is one captured log call
type LogCall struct {
	Message string
	Fields  []ports.Field
}

// Field returns the value of the named field and whether it was present
func (c LogCall) Field(key string) (interface{}, bool) {
	for _, f := range c.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// MockLogger captures log calls for assertions; safe for concurrent use
type MockLogger struct {
	infoCalls  []LogCall
	errorCalls []LogCall
	warnCalls  []LogCall
	debugCalls []LogCall
	mu         sync.Mutex
}

// NewMockLogger creates a new mock logger
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// NewNopLogger returns a logger for tests that do not inspect output
func NewNopLogger() ports.Logger {
	return &MockLogger{}
}

func (m *MockLogger) Info(msg string, fields ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoCalls = append(m.infoCalls, LogCall{Message: msg, Fields: fields})
}

func (m *MockLogger) Error(msg string, fields ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCalls = append(m.errorCalls, LogCall{Message: msg, Fields: fields})
}

func (m *MockLogger) Warn(msg string, fields ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnCalls = append(m.warnCalls, LogCall{Message: msg, Fields: fields})
}

func (m *MockLogger) Debug(msg string, fields ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugCalls = append(m.debugCalls, LogCall{Message: msg, Fields: fields})
}

// ErrorCalls returns the captured Error calls
func (m *MockLogger) ErrorCalls() []LogCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogCall(nil), m.errorCalls...)
}

// WarnCalls returns the captured Warn calls
func (m *MockLogger) WarnCalls() []LogCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogCall(nil), m.warnCalls...)
}

// InfoCalls returns the captured Info calls
func (m *MockLogger) InfoCalls() []LogCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogCall(nil), m.infoCalls...)
}
