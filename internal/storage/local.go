package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Local stores documents on the filesystem.
type Local struct {
	dir string
	now func() time.Time
}

var _ Store = (*Local)(nil)

// NewLocal creates dir when missing and returns a store rooted there.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, errors.New("empty upload directory")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, now: time.Now}, nil
}

// Save writes the upload to a new file.
func (l *Local) Save(ctx context.Context, upload Upload) (string, error) {
	key := NewKey(l.now(), upload.Filename)
	f, err := os.OpenFile(filepath.Join(l.dir, key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if errors.Is(err, os.ErrExist) {
		key = fmt.Sprintf("%d-%s-%s", l.now().UnixMilli(), uuid.NewString()[:8], SanitizeFilename(upload.Filename))
		f, err = os.OpenFile(filepath.Join(l.dir, key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	}
	if err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	if _, err := io.Copy(f, upload.Body); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write document: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close document: %w", err)
	}
	return RefPrefix + key, nil
}

// Remove deletes the document named by ref.
func (l *Local) Remove(ctx context.Context, ref string) error {
	key, err := KeyFromRef(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(l.dir, key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove document: %w", err)
	}
	return nil
}

// Handler serves stored files. Directory listings are refused.
func (l *Local) Handler() http.Handler {
	return http.FileServer(filesOnly{http.Dir(l.dir)})
}

type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}
