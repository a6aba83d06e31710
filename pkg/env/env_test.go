package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvString(t *testing.T) {
	tests := []struct {
		name         string
		set          bool
		envValue     string
		defaultValue string
		expected     string
	}{
		{"simple string", true, "hello world", "default", "hello world"},
		{"empty string is kept", true, "", "default", ""},
		{"whitespace is kept", true, "  spaced  ", "default", "  spaced  "},
		{"missing uses default", false, "", "default value", "default value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv("JQ_TEST_STRING", tt.envValue)
			}
			assert.Equal(t, tt.expected, GetEnvString("JQ_TEST_STRING", tt.defaultValue))
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		set          bool
		envValue     string
		defaultValue bool
		expected     bool
	}{
		{"true", true, "true", false, true},
		{"one", true, "1", false, true},
		{"false", true, "FALSE", true, false},
		{"invalid falls back", true, "yes please", true, true},
		{"missing falls back", false, "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv("JQ_TEST_BOOL", tt.envValue)
			}
			assert.Equal(t, tt.expected, GetEnvBool("JQ_TEST_BOOL", tt.defaultValue))
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		set          bool
		envValue     string
		defaultValue int
		expected     int
	}{
		{"positive", true, "42", 1, 42},
		{"negative", true, "-3", 1, -3},
		{"padded", true, " 7 ", 1, 7},
		{"float is invalid", true, "1.5", 9, 9},
		{"missing", false, "", 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv("JQ_TEST_INT", tt.envValue)
			}
			assert.Equal(t, tt.expected, GetEnvInt("JQ_TEST_INT", tt.defaultValue))
		})
	}
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("JQ_TEST_FLOAT", "20.5")
	assert.Equal(t, 20.5, GetEnvFloat("JQ_TEST_FLOAT", 1))

	t.Setenv("JQ_TEST_FLOAT", "abc")
	assert.Equal(t, 1.0, GetEnvFloat("JQ_TEST_FLOAT", 1))

	assert.Equal(t, 3.0, GetEnvFloat("JQ_TEST_FLOAT_MISSING", 3))
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		set          bool
		envValue     string
		defaultValue time.Duration
		expected     time.Duration
	}{
		{"go duration", true, "90s", time.Second, 90 * time.Second},
		{"minutes", true, "5m", time.Second, 5 * time.Minute},
		{"bare seconds", true, "420", time.Second, 420 * time.Second},
		{"invalid", true, "soon", time.Minute, time.Minute},
		{"missing", false, "", time.Hour, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv("JQ_TEST_DURATION", tt.envValue)
			}
			assert.Equal(t, tt.expected, GetEnvDuration("JQ_TEST_DURATION", tt.defaultValue))
		})
	}
}

func TestGetEnvDurationList(t *testing.T) {
	def := []time.Duration{time.Second}

	tests := []struct {
		name     string
		set      bool
		envValue string
		expected []time.Duration
	}{
		{"durations", true, "10s, 30s,90s", []time.Duration{10 * time.Second, 30 * time.Second, 90 * time.Second}},
		{"seconds", true, "1,2", []time.Duration{time.Second, 2 * time.Second}},
		{"bad element", true, "10s,x", def},
		{"blank", true, "  ", def},
		{"missing", false, "", def},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv("JQ_TEST_DURATIONS", tt.envValue)
			}
			assert.Equal(t, tt.expected, GetEnvDurationList("JQ_TEST_DURATIONS", def))
		})
	}
}

func TestGetEnvStringList(t *testing.T) {
	t.Setenv("JQ_TEST_LIST", "a@example.com, ,b@example.com")
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, GetEnvStringList("JQ_TEST_LIST", nil))

	assert.Equal(t, []string{"x"}, GetEnvStringList("JQ_TEST_LIST_MISSING", []string{"x"}))
}
