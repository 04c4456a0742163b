package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatorRotatesOnSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nexus.log")

	r := NewRotator(path, 1, 2)
	r.limit = 16 // bytes, to force rotation quickly
	defer r.Close()

	line := []byte(strings.Repeat("x", 10) + "\n")
	for i := 0; i < 3; i++ {
		_, err := r.Write(line)
		require.NoError(t, err)
	}

	_, err := os.Stat(path + ".1")
	assert.NoError(t, err, "first backup should exist")
	_, err = os.Stat(path + ".2")
	assert.NoError(t, err, "second backup should exist")

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, line, current)
}

func TestRotatorAppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nexus.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0644))

	r := NewRotator(path, 1, 1)
	_, err := r.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, r.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\nnew\n", string(b))
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nexus.log")

	l, closer := New(Config{Level: "debug", File: path, MaxSizeMB: 1, MaxBackups: 1})
	l.Info().Str("component", "test").Msg("hello")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"message":"hello"`)
	assert.Contains(t, string(b), `"component":"test"`)
}

func TestRotatorWithoutBackupsTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nexus.log")

	r := NewRotator(path, 1, 0)
	r.limit = 8
	_, err := r.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = r.Write([]byte("second\n"))
	require.NoError(t, err)
	require.NoError(t, r.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(b))
	_, err = os.Stat(path + ".1")
	assert.True(t, os.IsNotExist(err))
}

func TestRotatorCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nested", "nexus.log")

	r := NewRotator(path, 1, 1)
	require.NoError(t, r.Open())
	require.NoError(t, r.Close())

	_, err := os.Stat(path)
	assert.NoError(t, err)
}
