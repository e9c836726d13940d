// Package artifactfs stores artifact bytes as files in one directory.
package artifactfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"sealtrail/internal/domain"
	"sealtrail/internal/infra/idgen"
)

const handleExt = ".png"

var ErrInvalidHandle = errors.New("invalid artifact handle")

// Store hands out handles of the form <uuid>.png. Handles are validated
// before they touch the filesystem, so a handle can never name a path
// outside the directory.
type Store struct {
	dir   string
	newID idgen.Generator
}

func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("artifact dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Store{dir: dir, newID: idgen.Random()}, nil
}

func (s *Store) Put(_ context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", domain.ErrEmptyArtifact
	}
	handle := s.newID() + handleExt
	path := filepath.Join(s.dir, handle)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return handle, nil
}

func (s *Store) Get(_ context.Context, handle string) ([]byte, error) {
	if err := ValidateHandle(handle); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrArtifactUnavailable, err)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, handle))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", domain.ErrArtifactUnavailable, handle)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrArtifactUnavailable, err)
	}
	return data, nil
}

// ValidateHandle accepts only <uuid>.png.
func ValidateHandle(handle string) error {
	id, ok := strings.CutSuffix(handle, handleExt)
	if !ok {
		return ErrInvalidHandle
	}
	canonical, err := idgen.Parse(id)
	if err != nil || canonical != id {
		return ErrInvalidHandle
	}
	return nil
}
