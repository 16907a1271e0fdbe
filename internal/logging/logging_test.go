package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "test.log")
	l, err := New(&Config{
		Level:     LevelDebug,
		Format:    FormatJSON,
		Output:    "file",
		FilePath:  path,
		Component: "test",
	})
	require.NoError(t, err)
	defer l.Close()

	l.Info("hello", "answer", 42)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, string(data), `"answer":42`)
}

func TestWithComponent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := New(&Config{Format: FormatJSON, Output: "file", FilePath: path})
	require.NoError(t, err)
	defer l.Close()

	l.WithComponent("worker").Warn("slow")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"worker"`)
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := New(&Config{Level: LevelWarn, Output: "file", FilePath: path})
	require.NoError(t, err)
	defer l.Close()

	l.Debug("invisible")
	l.Info("invisible too")
	l.Error("visible")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "invisible")
	assert.Contains(t, string(data), "visible")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
