package sink

import (
	"errors"

	"metro-sim/internal/vehicle"
)

// MultiWriter fans snapshots out to several writers. A failing writer does
// not stop the others; their errors are joined.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (mw *MultiWriter) Name() string { return "multi" }

// Writers returns the wrapped writers.
func (mw *MultiWriter) Writers() []Writer { return mw.writers }

// Write sends a snapshot to all writers.
func (mw *MultiWriter) Write(st vehicle.State) error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Write(st); err != nil {
			errs = append(errs, &WriteError{Sink: nameOf(w), VehicleID: st.ID, Err: err})
		}
	}
	return errors.Join(errs...)
}

// WriteBatch sends several snapshots to all writers, using batch writes where
// supported.
func (mw *MultiWriter) WriteBatch(rows []vehicle.State) error {
	var errs []error
	for _, w := range mw.writers {
		if bw, ok := w.(BatchWriter); ok {
			if err := bw.WriteBatch(rows); err != nil {
				errs = append(errs, &WriteError{Sink: nameOf(w), VehicleID: "*", Err: err})
			}
			continue
		}
		for _, r := range rows {
			if err := w.Write(r); err != nil {
				errs = append(errs, &WriteError{Sink: nameOf(w), VehicleID: r.ID, Err: err})
			}
		}
	}
	return errors.Join(errs...)
}
