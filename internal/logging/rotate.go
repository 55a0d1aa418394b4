package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	DefaultMaxSize    = 10 << 20
	DefaultMaxBackups = 3
)

// RotatingFile writes to a file named by a strftime pattern. Once a write would
// exceed the size limit it moves on to the name the pattern renders for the
// current time, adding a ".N" suffix while that name is taken. Only the newest
// maxBackups files retired by this writer are kept; logs of earlier sessions
// are never touched.
type RotatingFile struct {
	pattern    string
	clock      func() time.Time
	maxSize    int64
	maxBackups int

	mu      sync.Mutex
	f       *os.File
	path    string
	size    int64
	retired []string
}

type Option func(*RotatingFile)

func WithMaxSize(n int64) Option { return func(r *RotatingFile) { r.maxSize = n } }

func WithMaxBackups(n int) Option { return func(r *RotatingFile) { r.maxBackups = n } }

// WithClock sets the time source used to name files after the first one.
func WithClock(clock func() time.Time) Option { return func(r *RotatingFile) { r.clock = clock } }

// NewRotatingFile opens the file pattern renders for start.
func NewRotatingFile(pattern string, start time.Time, opts ...Option) (*RotatingFile, error) {
	r := &RotatingFile{
		pattern:    pattern,
		clock:      time.Now,
		maxSize:    DefaultMaxSize,
		maxBackups: DefaultMaxBackups,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.openAt(FileName(pattern, start)); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the file currently written to.
func (r *RotatingFile) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

func (r *RotatingFile) openAt(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.f, r.path, r.size = f, path, st.Size()
	return nil
}

func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return 0, os.ErrClosed
	}
	if r.size > 0 && r.size+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := r.f.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

func (r *RotatingFile) nextPath() string {
	base := FileName(r.pattern, r.clock())
	if base != r.path && !exists(base) {
		return base
	}
	for i := 1; ; i++ {
		if p := fmt.Sprintf("%s.%d", base, i); p != r.path && !exists(p) {
			return p
		}
	}
}

func (r *RotatingFile) rotate() error {
	next := r.nextPath()
	if err := r.f.Close(); err != nil {
		return err
	}
	r.retired = append(r.retired, r.path)
	for len(r.retired) > max(r.maxBackups, 0) {
		if err := os.Remove(r.retired[0]); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove old log file: %w", err)
		}
		r.retired = r.retired[1:]
	}
	return r.openAt(next)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
