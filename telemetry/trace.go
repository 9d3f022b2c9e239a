// Package telemetry records per-frame effect state and frame time statistics.
package telemetry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// FrameRecord is one trace row: the state of one effect after one frame.
type FrameRecord struct {
	Frame    uint64  `csv:"frame"`
	Effect   string  `csv:"effect"`
	Delta    float32 `csv:"dt"`
	LoopTime float32 `csv:"loop_time"`
	Phase    string  `csv:"phase"`
	Loops    int     `csv:"loops"`
}

// TraceWriter appends FrameRecords as CSV. The header is written with the
// first batch only.
type TraceWriter struct {
	out           io.Writer
	closer        io.Closer
	headerWritten bool
	rows          int
}

func NewTraceWriter(out io.Writer) *TraceWriter {
	return &TraceWriter{out: out}
}

// CreateTrace creates path, and its directory, for writing. An empty path
// disables tracing and returns nil; a nil writer accepts and drops records.
func CreateTrace(path string) (*TraceWriter, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating trace directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating trace file: %w", err)
	}
	return &TraceWriter{out: f, closer: f}, nil
}

func (w *TraceWriter) Write(records ...FrameRecord) error {
	if w == nil || len(records) == 0 {
		return nil
	}
	if !w.headerWritten {
		if err := gocsv.Marshal(records, w.out); err != nil {
			return fmt.Errorf("writing trace: %w", err)
		}
		w.headerWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, w.out); err != nil {
			return fmt.Errorf("writing trace: %w", err)
		}
	}
	w.rows += len(records)
	return nil
}

// Rows counts the records written so far.
func (w *TraceWriter) Rows() int {
	if w == nil {
		return 0
	}
	return w.rows
}

func (w *TraceWriter) Close() error {
	if w == nil || w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// ReadTrace parses a trace written by TraceWriter.
func ReadTrace(r io.Reader) ([]FrameRecord, error) {
	var records []FrameRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	return records, nil
}
