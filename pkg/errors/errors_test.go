package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *CacheError
		expected string
	}{
		{
			name:     "code and message only",
			err:      New(CodeNotFound, "key not found"),
			expected: "NOT_FOUND: key not found",
		},
		{
			name:     "with component",
			err:      New(CodeConnectivity, "backend unreachable").WithComponent("distributed"),
			expected: "[distributed] CONNECTIVITY: backend unreachable",
		},
		{
			name:     "with component and operation",
			err:      New(CodeColdStore, "cold store failure").WithComponent("cold_store").WithOperation("sweep"),
			expected: "[cold_store:sweep] COLD_STORE: cold store failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CodeSerialization, "bad payload at offset %d", 42)
	assert.Equal(t, "bad payload at offset 42", err.Message)
	assert.Equal(t, CodeSerialization, err.Code)
	assert.False(t, err.Timestamp.IsZero())
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := New(CodeConnectivity, "backend unreachable").WithCause(cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Unwrap())
}

func TestIsMatchesByCode(t *testing.T) {
	err := New(CodeNotFound, "key not found").WithComponent("distributed")

	assert.True(t, stderrors.Is(err, New(CodeNotFound, "different message")))
	assert.False(t, stderrors.Is(err, New(CodeConnectivity, "key not found")))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		predicate func(error) bool
		expected  bool
	}{
		{"connectivity", New(CodeConnectivity, "x"), IsConnectivity, true},
		{"serialization", New(CodeSerialization, "x"), IsSerialization, true},
		{"cold store", New(CodeColdStore, "x"), IsColdStore, true},
		{"not found", New(CodeNotFound, "x"), IsNotFound, true},
		{"code mismatch", New(CodeNotFound, "x"), IsConnectivity, false},
		{"nil error", nil, IsNotFound, false},
		{"plain error", stderrors.New("plain"), IsNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.predicate(tt.err))
		})
	}
}

func TestPredicatesThroughWrapping(t *testing.T) {
	inner := New(CodeColdStore, "constraint violation")
	wrapped := fmt.Errorf("sweep pass: %w", inner)

	assert.True(t, IsColdStore(wrapped))
	assert.False(t, IsNotFound(wrapped))
}
