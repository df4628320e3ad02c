package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"metro-sim/internal/vehicle"
)

// ReplayLog replays JSONL snapshots from r to writer. A speed >0 scales the
// recorded gaps between snapshots (2 plays twice as fast). If speed <= 0, no
// delay is inserted. It returns the number of snapshots replayed.
func ReplayLog(ctx context.Context, r io.Reader, writer Writer, speed float64) (int, error) {
	dec := json.NewDecoder(r)
	var prev int64
	n := 0
	for {
		var st vehicle.State
		if err := dec.Decode(&st); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		if prev != 0 && speed > 0 {
			diff := time.Duration(float64(time.Duration(st.LastUpdate-prev)*time.Millisecond) / speed)
			if diff > 0 {
				t := time.NewTimer(diff)
				select {
				case <-ctx.Done():
					t.Stop()
					return n, ctx.Err()
				case <-t.C:
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := writer.Write(st); err != nil {
			return n, err
		}
		n++
		prev = st.LastUpdate
	}
}

// ReplayLogFile opens a file and replays its snapshots.
func ReplayLogFile(ctx context.Context, path string, writer Writer, speed float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReplayLog(ctx, f, writer, speed)
}
