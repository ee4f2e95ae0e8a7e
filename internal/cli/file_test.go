package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOutputRefusesExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	_, err := CreateOutput(path, false)
	assert.ErrorIs(t, err, os.ErrExist)
}

func TestCreateOutputDiscard(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "log.txt")
	f, err := CreateOutput(path, false)
	require.NoError(t, err)
	_, err = f.WriteString("partial")
	require.NoError(t, err)
	f.Discard()

	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCreateOutputOverwrite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		commit bool
		want   string
	}{
		{"commit replaces", true, "new"},
		{"discard keeps the old file", false, "old"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			path := filepath.Join(dir, "log.txt")
			require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

			f, err := CreateOutput(path, true)
			require.NoError(t, err)
			_, err = f.WriteString("new")
			require.NoError(t, err)

			if tt.commit {
				require.NoError(t, f.Commit())
			} else {
				f.Discard()
			}

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, 1, "no temporary file is left behind")
		})
	}
}
