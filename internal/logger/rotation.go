package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RotatingWriter is a writer that rotates log files
type RotatingWriter struct {
	filename    string
	maxSize     int64 // bytes
	maxAge      int   // days
	compress    bool
	now         func() time.Time
	mu          sync.Mutex
	currentFile *os.File
	currentSize int64
}

// NewRotatingWriter opens filename for appending and removes rotated files
// older than maxAge days.
func NewRotatingWriter(filename string, maxSizeMB int, maxAge int, compress bool) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rw := &RotatingWriter{
		filename: filename,
		maxSize:  int64(maxSizeMB) * 1024 * 1024,
		maxAge:   maxAge,
		compress: compress,
		now:      time.Now,
	}
	if err := rw.open(); err != nil {
		return nil, err
	}

	rw.cleanup()
	return rw, nil
}

func (w *RotatingWriter) open() error {
	file, err := os.OpenFile(w.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	w.currentFile = file
	w.currentSize = info.Size()
	return nil
}

// Write writes data to the log file, rotating first when p would push the
// file past the size limit. An empty file is never rotated.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return 0, os.ErrClosed
	}

	if w.currentSize > 0 && w.currentSize+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.currentFile.Write(p)
	w.currentSize += int64(n)
	return n, err
}

// Close closes the current log file
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return nil
	}
	err := w.currentFile.Close()
	w.currentFile = nil
	return err
}

func (w *RotatingWriter) rotate() error {
	if err := w.currentFile.Close(); err != nil {
		return err
	}

	rotatedName := w.rotatedName()
	if err := os.Rename(w.filename, rotatedName); err != nil {
		return err
	}

	if w.compress {
		if err := w.compressFile(rotatedName); err != nil {
			// keep the plain rotated file
			fmt.Fprintf(os.Stderr, "log rotation: compress %s: %v\n", rotatedName, err)
		}
	}

	return w.open()
}

// rotatedName returns a timestamped name that does not exist yet
func (w *RotatingWriter) rotatedName() string {
	base := fmt.Sprintf("%s.%s", w.filename, w.now().Format("20060102-150405"))
	name := base
	for i := 1; ; i++ {
		_, errPlain := os.Stat(name)
		_, errGz := os.Stat(name + ".gz")
		if os.IsNotExist(errPlain) && os.IsNotExist(errGz) {
			return name
		}
		name = fmt.Sprintf("%s.%d", base, i)
	}
}

func (w *RotatingWriter) compressFile(filename string) error {
	src, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filename + ".gz")
	if err != nil {
		return err
	}

	gzw := gzip.NewWriter(dst)
	if _, err := io.Copy(gzw, src); err != nil {
		gzw.Close()
		dst.Close()
		return err
	}
	if err := gzw.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	return os.Remove(filename)
}

// cleanup removes rotated files older than maxAge days
func (w *RotatingWriter) cleanup() {
	if w.maxAge <= 0 {
		return
	}

	files, err := filepath.Glob(w.filename + ".*")
	if err != nil {
		return
	}

	cutoff := w.now().AddDate(0, 0, -w.maxAge)
	for _, file := range files {
		if !strings.HasPrefix(file, w.filename+".") {
			continue
		}
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(file)
		}
	}
}
