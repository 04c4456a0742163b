package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const megabyte = 1024 * 1024

// Rotator is a size-capped log file. When a write would push the live file
// past its limit, backups shift up one slot (name.1 becomes name.2 and so
// on), the live file becomes name.1 and a fresh file is opened. At most
// backups old files are kept.
type Rotator struct {
	path    string
	limit   int64
	backups int

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewRotator returns a rotator for path. A non-positive maxSizeMB means 10MB.
func NewRotator(path string, maxSizeMB int64, backups int) *Rotator {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if backups < 0 {
		backups = 0
	}
	return &Rotator{path: path, limit: maxSizeMB * megabyte, backups: backups}
}

// Open appends to the existing file or creates it, including its directory.
// Write opens lazily, so calling Open only surfaces errors early.
func (r *Rotator) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openLocked()
}

func (r *Rotator) openLocked() error {
	if r.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	r.file, r.size = f, info.Size()
	return nil
}

// Write implements io.Writer.
func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.openLocked(); err != nil {
		return 0, err
	}
	if r.size > 0 && r.size+int64(len(p)) > r.limit {
		if err := r.rotateLocked(); err != nil {
			// A failed rotation keeps the line in whatever file is open
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
			if r.file == nil {
				return 0, err
			}
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// Close closes the live file.
func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *Rotator) backupName(i int) string {
	return fmt.Sprintf("%s.%d", r.path, i)
}

func (r *Rotator) rotateLocked() error {
	if err := r.file.Close(); err != nil {
		return err
	}
	r.file = nil

	if r.backups == 0 {
		if err := os.Truncate(r.path, 0); err != nil {
			return err
		}
		return r.openLocked()
	}

	for i := r.backups - 1; i >= 1; i-- {
		if _, err := os.Stat(r.backupName(i)); err == nil {
			if err := os.Rename(r.backupName(i), r.backupName(i+1)); err != nil {
				return err
			}
		}
	}
	if err := os.Rename(r.path, r.backupName(1)); err != nil {
		return err
	}
	return r.openLocked()
}
