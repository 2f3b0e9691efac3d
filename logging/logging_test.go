package logging

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New("info", "json", &buf)
	require.NoError(t, err)
	logger.Info("hello", "station", "journey_fm")
	assert.Contains(t, buf.String(), `"station":"journey_fm"`)

	buf.Reset()
	logger, err = New("info", "console", &buf)
	require.NoError(t, err)
	logger.Info("hello", "station", "spirit_fm")
	assert.Contains(t, buf.String(), "station=spirit_fm")

	_, err = New("info", "xml", &buf)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestSetupWritesFileAndTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radioplex.log")
	var stderr bytes.Buffer

	logger, closeLog, err := Setup("debug", "text", path, &stderr)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		logger.Info(fmt.Sprintf("line %d", i))
	}
	require.NoError(t, closeLog())

	assert.Equal(t, 5, strings.Count(stderr.String(), "\n"))

	lines, err := Tail(path, 2)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "line 3")
	assert.Contains(t, lines[1], "line 4")

	_, err = Tail(filepath.Join(t.TempDir(), "missing.log"), 10)
	assert.True(t, os.IsNotExist(err))
}
