package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// FSStorage implements ObjectStorage on an afero filesystem rooted at a
// directory. Keys use forward slashes regardless of platform.
type FSStorage struct {
	fs   afero.Fs
	root string
}

// NewLocalStorage stores objects under dir on the OS filesystem.
func NewLocalStorage(dir string) *FSStorage {
	return &FSStorage{fs: afero.NewBasePathFs(afero.NewOsFs(), dir), root: "/"}
}

// NewMemoryStorage keeps objects in memory.
func NewMemoryStorage() *FSStorage {
	return &FSStorage{fs: afero.NewMemMapFs(), root: "/"}
}

func (s *FSStorage) pathFor(key string) string {
	return path.Join(s.root, strings.TrimPrefix(key, "/"))
}

func (s *FSStorage) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	results := make([]ObjectInfo, 0)
	err := afero.Walk(s.fs, s.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		key := strings.TrimPrefix(filepath.ToSlash(p), "/")
		if strings.HasPrefix(key, prefix) {
			results = append(results, ObjectInfo{Key: key, Size: info.Size()})
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list %s failed: %w", prefix, err)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}

func (s *FSStorage) ReadObject(ctx context.Context, key string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("read %s failed: %w", key, err)
	}
	return data, nil
}

func (s *FSStorage) DownloadObject(ctx context.Context, key, destPath string) error {
	data, err := s.ReadObject(ctx, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (s *FSStorage) UploadObject(ctx context.Context, key string, data []byte) error {
	p := s.pathFor(key)
	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", key, err)
	}
	if err := afero.WriteFile(s.fs, p, data, 0o644); err != nil {
		return fmt.Errorf("write %s failed: %w", key, err)
	}
	return nil
}

var _ ObjectStorage = (*FSStorage)(nil)
