package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// ErrDestinationExists is returned when output file is present, has
// different content and overwriting was not requested.
var ErrDestinationExists = errors.New("destination already exists")

func digestFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// writeOutput stores data at path creating missing directories. Existing
// file with identical content is left untouched and false is returned.
func writeOutput(path string, data []byte, overwrite bool) (bool, error) {
	old, err := digestFile(path)
	switch {
	case err == nil:
		sum := blake3.Sum256(data)
		if bytes.Equal(old, sum[:]) {
			return false, nil
		}
		if !overwrite {
			return false, fmt.Errorf("%s: %w", path, ErrDestinationExists)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("unable to check destination: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("unable to create destination directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("unable to write destination: %w", err)
	}
	return true, nil
}
