package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesConsoleAndFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "bundler.log")
	var console bytes.Buffer

	log, err := NewWithWriter(&Config{LogFile: logFile, MaxSize: 1}, &console)
	require.NoError(t, err)

	log.Named("campaign").Info("Bundle landed", zap.String("bundle_id", "b-1"))
	log.Debug("hidden at info level")
	require.NoError(t, Sync(log))

	assert.Contains(t, console.String(), "Bundle landed")
	assert.Contains(t, console.String(), "b-1")
	assert.NotContains(t, console.String(), "hidden")

	f, err := os.Open(logFile)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	var entry map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "campaign", entry["logger"])
	assert.Equal(t, "b-1", entry["bundle_id"])
	assert.Contains(t, entry, "timestamp")
	assert.False(t, scanner.Scan())
}

func TestNewDebugPretty(t *testing.T) {
	var console bytes.Buffer
	log, err := NewWithWriter(&Config{Debug: true, Pretty: true}, &console)
	require.NoError(t, err)

	log.Debug("quote computed")
	assert.Contains(t, console.String(), "[DEBUG]")
	assert.Contains(t, console.String(), "quote computed")
}

func TestShortenAddress(t *testing.T) {
	assert.Equal(t, "6EF8...wF6P", ShortenAddress("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"))
	assert.Equal(t, "short", ShortenAddress("short"))
}
