package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const tempPrefix = "payload_tmp_"

// LocalStore keeps payloads as flat files under a root directory.
type LocalStore struct {
	root string
}

var _ Client = (*LocalStore)(nil)

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the store directory.
func (s *LocalStore) Root() string {
	return s.root
}

// Ping checks that the root directory is still there.
func (s *LocalStore) Ping(ctx context.Context) error {
	stat, err := os.Stat(s.root)
	if err != nil {
		return err
	}
	if !stat.IsDir() {
		return fmt.Errorf("%s is not a directory", s.root)
	}
	return nil
}

// Save streams content into a temp file in the root and renames it into place
// once fully written, so readers never see a partial payload.
func (s *LocalStore) Save(ctx context.Context, ext string, content io.Reader) (*FileInfo, error) {
	name := uuid.NewString() + normalizeExt(ext)

	tmpFile, err := os.CreateTemp(s.root, tempPrefix)
	if err != nil {
		return nil, err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath) // Clean up if we didn't rename
	}()

	size, err := io.Copy(tmpFile, contextReader{ctx: ctx, r: content})
	if err != nil {
		return nil, fmt.Errorf("write payload: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return nil, err
	}

	finalPath := filepath.Join(s.root, name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, err
	}

	stat, err := os.Stat(finalPath)
	if err != nil {
		return nil, err
	}
	return &FileInfo{Name: name, Path: name, Size: size, ModifiedAt: stat.ModTime()}, nil
}

func (s *LocalStore) Open(ctx context.Context, path string) (io.ReadCloser, *FileInfo, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if stat.IsDir() {
		f.Close()
		return nil, nil, ErrNotFound
	}

	return f, &FileInfo{Name: stat.Name(), Path: path, Size: stat.Size(), ModifiedAt: stat.ModTime()}, nil
}

func (s *LocalStore) Delete(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List skips directories and in-flight temp files.
func (s *LocalStore) List(ctx context.Context) ([]FileInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		files = append(files, FileInfo{
			Name:       entry.Name(),
			Path:       entry.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	return files, nil
}

// StoredName maps a recorded payload path to the file name it lives under
// in the store root. Older rows carry an "uploads/" style prefix; only the
// base name is trusted. Paths escaping the root yield ErrInvalidPath.
func StoredName(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if !filepath.IsLocal(clean) {
		return "", ErrInvalidPath
	}
	base := filepath.Base(clean)
	if base == "." || base == string(filepath.Separator) {
		return "", ErrInvalidPath
	}
	return base, nil
}

func (s *LocalStore) resolve(path string) (string, error) {
	name, err := StoredName(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, name), nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}

// contextReader stops a copy once the request is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
