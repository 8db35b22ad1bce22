package errorjournal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesFileAndAppendsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")

	j, err := Open(path)
	require.NoError(t, err)

	j.Record("sync.Flush", "https://example.com/a", "differential flush failed", "TRANSIENT_BUSY", assert.AnError)
	require.NoError(t, j.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.True(t, strings.Contains(line, "sync.Flush"))
	assert.True(t, strings.Contains(line, "https://example.com/a"))
	assert.True(t, strings.Contains(line, "TRANSIENT_BUSY"))
}

func TestOpenAppendsAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")

	j1, err := Open(path)
	require.NoError(t, err)
	j1.Record("fn1", "", "first", "", nil)
	require.NoError(t, j1.Close())

	j2, err := Open(path)
	require.NoError(t, err)
	j2.Record("fn2", "", "second", "", nil)
	require.NoError(t, j2.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "fn1")
	assert.Contains(t, content, "fn2")
}
