// Package ingest feeds measurements to the sink from a newline-delimited
// JSON stream, typically the BMS poller's stdout piped into stdin.
//
// Each line is one record:
//
//	{"source":"battery","id":"3","data":{"soc":80,"pack_voltage":53.2}}
//	{"source":"pack","data":{"total_power":-1280.5}}
//
// Malformed lines are logged and skipped; they never stop the stream.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nerrad567/seplos-sink/internal/sink"
)

// maxLineSize bounds a single record.
const maxLineSize = 1 << 20

// Record sources.
const (
	SourceBattery = "battery"
	SourcePack    = "pack"
)

// ErrInvalidRecord is wrapped by every decode failure.
var ErrInvalidRecord = errors.New("ingest: invalid record")

// Writer receives decoded measurements. *sink.Sink satisfies it.
type Writer interface {
	WriteBatteryMeasurement(ctx context.Context, id string, data sink.Measurement)
	WritePackMeasurement(ctx context.Context, data sink.Measurement)
}

// Logger is the logging interface used by the reader.
type Logger interface {
	Warn(msg string, args ...any)
}

// Counts summarises a finished stream.
type Counts struct {
	Battery int
	Pack    int
	Skipped int
}

// Record is one decoded line.
type Record struct {
	Source string
	ID     string
	Data   sink.Measurement
}

type wireRecord struct {
	Source string           `json:"source"`
	ID     json.RawMessage  `json:"id"`
	Data   sink.Measurement `json:"data"`
}

// Decode parses one line. Numbers in data are kept as json.Number so the
// sink sees the producer's exact text. id may be a string or a number.
func Decode(line []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var w wireRecord
	if err := dec.Decode(&w); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Record{}, fmt.Errorf("%w: trailing data after record", ErrInvalidRecord)
	}
	if w.Data == nil {
		return Record{}, fmt.Errorf("%w: missing data", ErrInvalidRecord)
	}

	rec := Record{Source: strings.ToLower(w.Source), Data: w.Data}
	switch rec.Source {
	case SourcePack:
	case SourceBattery:
		id, err := decodeID(w.ID)
		if err != nil {
			return Record{}, err
		}
		rec.ID = id
	default:
		return Record{}, fmt.Errorf("%w: unknown source %q", ErrInvalidRecord, w.Source)
	}
	return rec, nil
}

func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("%w: battery record without id", ErrInvalidRecord)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", fmt.Errorf("%w: battery record without id", ErrInvalidRecord)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("%w: id must be a string or number", ErrInvalidRecord)
	}
	return n.String(), nil
}

// Reader pumps records from a stream into a Writer.
type Reader struct {
	w      Writer
	logger Logger

	// OnRecord, if set, is called after each delivered record.
	OnRecord func()
}

// NewReader creates a reader delivering to w. logger may be nil.
func NewReader(w Writer, logger Logger) *Reader {
	return &Reader{w: w, logger: logger}
}

// Run reads r until EOF or until ctx is done. Blank lines are ignored.
// It returns the per-source counts and any read error other than EOF.
//
// Cancelling ctx returns promptly even while r is blocked in Read; the
// pending read is abandoned.
func (rd *Reader) Run(ctx context.Context, r io.Reader) (Counts, error) {
	var counts Counts

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := bytes.Clone(scanner.Bytes())
			select {
			case lines <- line:
			case <-stop:
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	lineNo := 0
	for {
		var (
			raw []byte
			ok  bool
		)
		select {
		case <-ctx.Done():
			return counts, ctx.Err()
		case raw, ok = <-lines:
		}
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		lineNo++

		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}

		rec, err := Decode(line)
		if err != nil {
			counts.Skipped++
			if rd.logger != nil {
				rd.logger.Warn("skipping malformed record", "line", lineNo, "error", err)
			}
			continue
		}

		switch rec.Source {
		case SourceBattery:
			rd.w.WriteBatteryMeasurement(ctx, rec.ID, rec.Data)
			counts.Battery++
		case SourcePack:
			rd.w.WritePackMeasurement(ctx, rec.Data)
			counts.Pack++
		}
		if rd.OnRecord != nil {
			rd.OnRecord()
		}
	}

	if err := <-scanErr; err != nil {
		return counts, fmt.Errorf("reading records: %w", err)
	}
	return counts, nil
}
