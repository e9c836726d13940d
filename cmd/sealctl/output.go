package main

import (
	"io"
	"os"
	"path/filepath"
)

// writeOutput prints payload plus a newline to w, or replaces the file at
// path when one is given.
func writeOutput(w io.Writer, path string, payload []byte) error {
	if path == "" {
		_, err := w.Write(append(payload[:len(payload):len(payload)], '\n'))
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sealctl-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
