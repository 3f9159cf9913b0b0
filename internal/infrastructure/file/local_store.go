package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidStoredName = errors.New("invalid stored file name")

// LocalStore keeps uploaded CSV files under BaseDir using generated names.
type LocalStore struct {
	BaseDir string
}

func NewLocalStore(baseDir string) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "."
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", baseDir, err)
	}
	return &LocalStore{BaseDir: baseDir}, nil
}

// Save writes content to a new file and returns its stored name. A partial
// file is removed when the copy fails.
func (s *LocalStore) Save(ctx context.Context, originalFilename string, content io.Reader) (string, error) {
	_ = ctx

	ext := strings.ToLower(filepath.Ext(originalFilename))
	if ext == "" {
		ext = ".csv"
	}
	name := uuid.NewString() + ext
	path := filepath.Join(s.BaseDir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("create file %s: %w", path, err)
	}

	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		os.Remove(path)
		return "", fmt.Errorf("write file %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close file %s: %w", path, err)
	}
	return name, nil
}

func (s *LocalStore) Open(ctx context.Context, storedFilename string) (io.ReadCloser, error) {
	_ = ctx

	path, err := s.path(storedFilename)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", path, err)
	}
	return file, nil
}

// Remove deletes a stored file. A file that is already gone is not an error.
func (s *LocalStore) Remove(ctx context.Context, storedFilename string) error {
	_ = ctx

	path, err := s.path(storedFilename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file %s: %w", path, err)
	}
	return nil
}

func (s *LocalStore) path(storedFilename string) (string, error) {
	if storedFilename == "" || filepath.Base(storedFilename) != storedFilename || storedFilename == "." || storedFilename == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidStoredName, storedFilename)
	}
	return filepath.Join(s.BaseDir, storedFilename), nil
}
