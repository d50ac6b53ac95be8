package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var event Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		events = append(events, event)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestLoggerWritesSessionLog(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "suite-1")
	require.NoError(t, err)

	require.NoError(t, logger.Info(CategorySuite, "suite_start", "starting", map[string]any{"models": 2}))
	require.NoError(t, logger.Warn(CategoryModel, "slow_call", "call took a while", nil))
	require.NoError(t, logger.Close())

	events := readEvents(t, filepath.Join(dir, "sessions", "suite-1.jsonl"))
	require.Len(t, events, 2)
	assert.Equal(t, LevelInfo, events[0].Level)
	assert.Equal(t, "suite_start", events[0].EventType)
	assert.Equal(t, "suite-1", events[0].SuiteID)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, float64(2), events[0].Details["models"])
}

func TestLoggerCopiesErrorsToErrorLog(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "suite-1")
	require.NoError(t, err)

	require.NoError(t, logger.Info(CategoryRunner, "step", "fine", nil))
	require.NoError(t, logger.Error(CategoryRunner, "run_panic", "boom", nil))
	require.NoError(t, logger.Close())

	errors := readEvents(t, filepath.Join(dir, "errors.jsonl"))
	require.Len(t, errors, 1)
	assert.Equal(t, "run_panic", errors[0].EventType)
}

func TestLoggerMinLevel(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "suite-1")
	require.NoError(t, err)

	require.NoError(t, logger.Debug(CategoryRunner, "noise", "dropped by default", nil))
	logger.SetMinLevel(LevelDebug)
	require.NoError(t, logger.Debug(CategoryRunner, "detail", "kept", nil))
	require.NoError(t, logger.Close())

	events := readEvents(t, filepath.Join(dir, "sessions", "suite-1.jsonl"))
	require.Len(t, events, 1)
	assert.Equal(t, "detail", events[0].EventType)
}
