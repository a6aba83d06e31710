package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(""))
	assert.True(t, IsEmpty("   "))
	assert.False(t, IsEmpty("x"))
}

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"ops@example.com", true},
		{"first.last+alerts@sub.example.org", true},
		{"no-at.example.com", false},
		{"user@", false},
		{"user@host", false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidEmail(tt.email))
		})
	}
}

func TestIsValidPort(t *testing.T) {
	tests := []struct {
		port  string
		valid bool
	}{
		{"1024", true},
		{"8080", true},
		{"65535", true},
		{"80", false},
		{"65536", false},
		{"abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.port, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidPort(tt.port))
		})
	}
}

func TestIsValidURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"http://localhost:8080", true},
		{"https://example.com", true},
		{"https://api.example.com/path", true},
		{"http://127.0.0.1:9000", true},
		{"ftp://example.com", false},
		{"http://example.com:80", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidURL(tt.url))
		})
	}
}

func TestIsValidRedisURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"redis://localhost:6379/0", true},
		{"redis://:secret@redis:6379", true},
		{"rediss://default:pw@eu1.upstash.io:6379", true},
		{"redis://127.0.0.1", true},
		{"redis://localhost:6379/abc", false},
		{"http://localhost:6379", false},
		{"redis://", false},
		{"localhost:6379", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidRedisURL(tt.url))
		})
	}
}

func TestIsValidQueueName(t *testing.T) {
	assert.True(t, IsValidQueueName("high"))
	assert.True(t, IsValidQueueName("batch_reports-2"))
	assert.False(t, IsValidQueueName(""))
	assert.False(t, IsValidQueueName("High"))
	assert.False(t, IsValidQueueName("9lives"))
	assert.False(t, IsValidQueueName("a:b"))
}
