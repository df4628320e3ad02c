package sink

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"

	"metro-sim/internal/vehicle"
)

// FileWriter appends snapshots to a JSONL file.
type FileWriter struct {
	mu  sync.Mutex
	f   *os.File
	buf *bufio.Writer
	enc *json.Encoder
}

// NewFileWriter creates (or truncates) path.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	return &FileWriter{f: f, buf: buf, enc: json.NewEncoder(buf)}, nil
}

func (f *FileWriter) Name() string { return "file" }

// Write logs a single snapshot and flushes it.
func (f *FileWriter) Write(st vehicle.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enc.Encode(st); err != nil {
		return err
	}
	return f.buf.Flush()
}

// WriteBatch logs multiple snapshots with a single flush.
func (f *FileWriter) WriteBatch(rows []vehicle.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		if err := f.enc.Encode(r); err != nil {
			return err
		}
	}
	return f.buf.Flush()
}

// Close flushes and closes the file.
func (f *FileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.buf.Flush()
	if e := f.f.Close(); e != nil && err == nil {
		err = e
	}
	return err
}
