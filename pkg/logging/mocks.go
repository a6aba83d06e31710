package logging

import (
	"github.com/stretchr/testify/mock"
)

var loggerMethods = []string{
	"Debug", "Info", "Warn", "Error", "Fatal",
	"Debugf", "Infof", "Warnf", "Errorf", "Fatalf",
}

// MockLogger records log calls for assertions. Every method receives the
// message (or template) and the variadic arguments as one slice.
type MockLogger struct {
	mock.Mock
}

var _ Logger = (*MockLogger)(nil)

// SetupDefaultExpectations accepts any call, for tests that only need a
// Logger that does not fail on unexpected calls.
func (m *MockLogger) SetupDefaultExpectations() {
	for _, method := range loggerMethods {
		m.On(method, mock.Anything, mock.Anything).Maybe().Return()
	}
	m.On("With", mock.Anything).Maybe().Return(nil)
}

func (m *MockLogger) log(method, msg string, args []interface{}) {
	m.MethodCalled(method, msg, args)
}

func (m *MockLogger) Debug(msg string, kv ...interface{}) { m.log("Debug", msg, kv) }
func (m *MockLogger) Info(msg string, kv ...interface{})  { m.log("Info", msg, kv) }
func (m *MockLogger) Warn(msg string, kv ...interface{})  { m.log("Warn", msg, kv) }
func (m *MockLogger) Error(msg string, kv ...interface{}) { m.log("Error", msg, kv) }
func (m *MockLogger) Fatal(msg string, kv ...interface{}) { m.log("Fatal", msg, kv) }

func (m *MockLogger) Debugf(template string, args ...interface{}) { m.log("Debugf", template, args) }
func (m *MockLogger) Infof(template string, args ...interface{})  { m.log("Infof", template, args) }
func (m *MockLogger) Warnf(template string, args ...interface{})  { m.log("Warnf", template, args) }
func (m *MockLogger) Errorf(template string, args ...interface{}) { m.log("Errorf", template, args) }
func (m *MockLogger) Fatalf(template string, args ...interface{}) { m.log("Fatalf", template, args) }

// With returns the mock itself unless the expectation returns another Logger.
func (m *MockLogger) With(tags ...interface{}) Logger {
	ret := m.MethodCalled("With", tags)
	if l, ok := ret.Get(0).(Logger); ok && l != nil {
		return l
	}
	return m
}
