package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadClear(t *testing.T) {
	s := New(t.TempDir())

	// пустое хранилище отдает нулевое состояние
	assert.Equal(t, GuestState{}, s.Load())

	st := GuestState{
		GuestID:        "guest-1700000000000-abc12345",
		DisplayName:    "Алиса",
		ConversationID: "conv-42",
	}
	require.NoError(t, s.Save(st))
	assert.Equal(t, st, s.Load())

	// Clear стирает все; повторный Clear — no-op
	require.NoError(t, s.Clear())
	assert.Equal(t, GuestState{}, s.Load())
	require.NoError(t, s.Clear())
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, stateFile), []byte("{не json"), 0o600))

	s := New(dir)
	assert.Equal(t, GuestState{}, s.Load())
}

func TestSaveCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "config")
	s := New(dir)
	require.NoError(t, s.Save(GuestState{GuestID: "guest-1"}))
	assert.Equal(t, "guest-1", s.Load().GuestID)
}
