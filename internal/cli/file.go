package cli

import (
	"fmt"
	"os"
	"path/filepath"
)

// OutputFile is where a received file is written until the transfer ends.
type OutputFile struct {
	*os.File
	path string
	temp bool
}

// CreateOutput opens path for a received file. Without overwrite, path must
// not exist yet. With overwrite, data goes to a temporary file next to path
// that replaces it on Commit, so a failed transfer leaves the old file as it
// was.
func CreateOutput(path string, overwrite bool) (*OutputFile, error) {
	if !overwrite {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
		if err != nil {
			return nil, err
		}
		return &OutputFile{File: f, path: path}, nil
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("create temporary file: %w", err)
	}
	if err := f.Chmod(0644); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("chmod %s: %w", f.Name(), err)
	}
	return &OutputFile{File: f, path: path, temp: true}, nil
}

// Commit closes the file and moves it into place.
func (f *OutputFile) Commit() error {
	if err := f.File.Close(); err != nil {
		f.remove()
		return err
	}
	if !f.temp {
		return nil
	}
	if err := os.Rename(f.Name(), f.path); err != nil {
		f.remove()
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

// Discard closes the file and removes what was written.
func (f *OutputFile) Discard() {
	f.File.Close()
	f.remove()
}

func (f *OutputFile) remove() {
	os.Remove(f.Name())
}
