package id

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Errorf("NewRunID() returned duplicate %q", a)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("NewRunID() = %q, not a UUID: %v", a, err)
	}
}

func TestShort(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"3f2a9c1e-0000-4000-8000-000000000000", "3f2a9c1e"},
		{"abc", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Short(tt.in); got != tt.want {
			t.Errorf("Short(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
