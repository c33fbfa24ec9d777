// Package logdir scans the per-run log directory and provides bounded tail
// reads. The directory is foreign-owned and append-only from this engine's
// perspective; everything here is read-only.
package logdir

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultTailBytes bounds how much of a log file is read for classification
// and result extraction.
const DefaultTailBytes = 16 * 1024

// Entry describes one log file at scan time.
type Entry struct {
	// Path is the absolute path to the log file.
	Path string `json:"path"`

	// Name is the base file name.
	Name string `json:"name"`

	// ModTime is the file's last modification time, used as the run's
	// activity signal and exit-time proxy.
	ModTime time.Time `json:"mod_time"`

	// Size is the file size in bytes at scan time.
	Size int64 `json:"size"`
}

// List returns the .log entries in dir, most recently modified first.
// A missing directory is normal (no runs yet) and yields an empty list.
// Entries that cannot be stat'd are skipped rather than failing the scan.
func List(dir string) ([]Entry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(dirents))
	for _, de := range dirents {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".log") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// File vanished between listing and stat.
			continue
		}
		entries = append(entries, Entry{
			Path:    filepath.Join(dir, de.Name()),
			Name:    de.Name(),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	return entries, nil
}

// ReadTail returns at most maxBytes from the end of the file at path.
// maxBytes <= 0 falls back to DefaultTailBytes.
func ReadTail(path string, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultTailBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := info.Size()
	if size > maxBytes {
		if _, err := f.Seek(size-maxBytes, io.SeekStart); err != nil {
			return nil, err
		}
	}

	return io.ReadAll(f)
}
