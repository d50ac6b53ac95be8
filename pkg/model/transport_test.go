package model

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readNetworkLog(t *testing.T, dir string) []NetworkLogEntry {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, "network.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var entries []NetworkLogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry NetworkLogEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestLoggingTransportRecordsAndRedacts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	logDir := t.TempDir()
	transport := NewLoggingTransport(nil, logDir)
	client := &http.Client{Transport: transport}

	req, err := http.NewRequest(http.MethodPost, server.URL+"/chat/completions", strings.NewReader(`{"model":"m"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer super-secret")
	req.Header.Set("X-Api-Key", "also-secret")
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.NoError(t, transport.Close())

	entries := readNetworkLog(t, logDir)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, http.MethodPost, entry.Method)
	assert.Equal(t, `{"model":"m"}`, entry.RequestBody)
	assert.Equal(t, http.StatusOK, entry.ResponseStatus)
	assert.Equal(t, `{"ok":true}`, entry.ResponseBody)
	assert.Equal(t, "[REDACTED]", entry.RequestHeaders["Authorization"])
	assert.Equal(t, "[REDACTED]", entry.RequestHeaders["X-Api-Key"])
	assert.Equal(t, "application/json", entry.RequestHeaders["Content-Type"])
}

func TestLoggingTransportDisabledWithoutDir(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	transport := NewLoggingTransport(nil, "")
	client := &http.Client{Transport: transport}

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.NoError(t, transport.Close())
}

func TestLoggingTransportRecordsErrors(t *testing.T) {
	logDir := t.TempDir()
	transport := NewLoggingTransport(nil, logDir)
	client := &http.Client{Transport: transport}

	_, err := client.Get("http://127.0.0.1:1") // nothing listens here
	require.Error(t, err)
	require.NoError(t, transport.Close())

	entries := readNetworkLog(t, logDir)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].Error)
	assert.Zero(t, entries[0].ResponseStatus)
}

func TestTruncateBody(t *testing.T) {
	long := strings.Repeat("x", 10001)
	got := truncateBody(long)
	assert.True(t, strings.HasSuffix(got, "...[truncated]"))
	assert.Equal(t, "short", truncateBody("short"))
}
