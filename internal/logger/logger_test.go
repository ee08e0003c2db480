// ABOUTME: Tests for the zerolog wrapper.
// ABOUTME: Covers role tagging, level parsing, child loggers and context propagation.
package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RoleField(t *testing.T) {
	var buf bytes.Buffer
	l := New("test-role", &buf, "info")

	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test-role", entry["role"])
	_, hasTime := entry["time"]
	assert.True(t, hasTime, "expected 'time' field in log entry")
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New("lvl", &buf, "warn")

	l.Info().Msg("dropped")
	assert.Empty(t, buf.String())

	l.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New("lvl", &buf, "chatty")

	l.Debug().Msg("dropped")
	assert.Empty(t, buf.String())

	l.Info().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNop_DiscardsOutput(t *testing.T) {
	var buf bytes.Buffer
	l := Nop()
	l.Logger = l.Output(&buf)

	l.Info().Msg("should be discarded")

	assert.Empty(t, buf.String(), "Nop logger should produce no output")
}

func TestChild_InheritsFields(t *testing.T) {
	var buf bytes.Buffer
	parent := New("parent-role", &buf, "debug")

	child := parent.Child("ledger")
	child.Info().Msg("child message")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "parent-role", entry["role"])
	assert.Equal(t, "ledger", entry["component"])
}

func TestFromContext_ReturnsAttachedLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New("ctx-role", &buf, "info")
	ctx := l.WithContext(context.Background())

	got := FromContext(ctx)
	require.NotNil(t, got)
	got.Info().Msg("from context")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ctx-role", entry["role"])
}
