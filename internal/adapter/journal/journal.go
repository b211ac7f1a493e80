// Package journal keeps an append-only JSONL record of engine events: every
// apply, revert, resume, drop and store failure, one line per event.
package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"pinengine/internal/domain"
	"pinengine/internal/infra/tracer"
)

const maxLine = 64 * 1024

// Retention bounds the journal file.
type Retention struct {
	MaxAge  time.Duration // 0 = no limit
	MaxSize int64         // bytes; 0 = no limit
}

// Journal appends events to a file.
type Journal struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	retention Retention
	closed    bool
}

// Open creates or appends to the journal at path with 0600 permissions.
func Open(path string, retention Retention) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	f, err := openAppend(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{file: f, path: path, retention: retention}, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
}

// Record writes ev as one JSON line. When a span is recording, the event is
// also attached to it.
func (j *Journal) Record(ctx context.Context, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return domain.WrapOp("Journal.Record", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return domain.NewDomainError("Journal.Record", domain.ErrUnavailable, "journal closed")
	}
	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return domain.WrapOp("Journal.Record", err)
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent("journal."+string(ev.Type), trace.WithAttributes(tracer.PinAttr(ev.GPIO)))
	}
	return nil
}

// Handler adapts Record to a bus subscription. Write errors are reported
// to onErr, which may be nil.
func (j *Journal) Handler(onErr func(error)) domain.EventHandler {
	return func(ctx context.Context, ev domain.Event) {
		if err := j.Record(ctx, ev); err != nil && onErr != nil {
			onErr(err)
		}
	}
}

// Tail returns up to n of the most recent events, oldest first.
func (j *Journal) Tail(n int) ([]domain.Event, error) {
	if n <= 0 {
		return nil, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	lines, err := readLines(j.path)
	if err != nil {
		return nil, err
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	out := make([]domain.Event, 0, len(lines))
	for _, l := range lines {
		var ev domain.Event
		if json.Unmarshal(l, &ev) == nil {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Close closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}

// EnforceRetention rewrites the journal keeping only entries inside the
// retention bounds and returns how many were dropped. Oldest entries go
// first when the size bound is exceeded.
func (j *Journal) EnforceRetention(now time.Time) (removed int, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	pol := j.retention
	if j.closed || (pol.MaxAge == 0 && pol.MaxSize == 0) {
		return 0, nil
	}
	if pol.MaxAge == 0 {
		info, err := os.Stat(j.path)
		if err != nil {
			return 0, fmt.Errorf("stat journal: %w", err)
		}
		if info.Size() <= pol.MaxSize {
			return 0, nil
		}
	}

	lines, err := readLines(j.path)
	if err != nil {
		return 0, err
	}

	var cutoff time.Time
	if pol.MaxAge > 0 {
		cutoff = now.Add(-pol.MaxAge)
	}
	kept := lines[:0]
	var size int64
	for _, l := range lines {
		if !cutoff.IsZero() {
			var ev struct {
				Timestamp time.Time `json:"timestamp"`
			}
			if json.Unmarshal(l, &ev) == nil && ev.Timestamp.Before(cutoff) {
				removed++
				continue
			}
		}
		kept = append(kept, l)
		size += int64(len(l)) + 1
	}
	for pol.MaxSize > 0 && size > pol.MaxSize && len(kept) > 0 {
		size -= int64(len(kept[0])) + 1
		kept = kept[1:]
		removed++
	}
	if removed == 0 {
		return 0, nil
	}

	if err := j.file.Close(); err != nil {
		return 0, fmt.Errorf("close for retention: %w", err)
	}
	tmp := j.path + ".tmp"
	werr := writeLines(tmp, kept)
	if werr == nil {
		werr = os.Rename(tmp, j.path)
	}
	if werr != nil {
		os.Remove(tmp)
	}

	f, err := openAppend(j.path)
	if err != nil {
		j.closed = true
		return removed, fmt.Errorf("reopen journal: %w", err)
	}
	j.file = f
	if werr != nil {
		return 0, fmt.Errorf("rewrite journal: %w", werr)
	}
	return removed, nil
}

// RunRetention enforces retention every interval until ctx is cancelled.
func (j *Journal) RunRetention(ctx context.Context, interval time.Duration, onErr func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := j.EnforceRetention(now); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}

func readLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var lines [][]byte
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), maxLine)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), sc.Bytes()...))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return lines, nil
}

func writeLines(path string, lines [][]byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, l := range lines {
		w.Write(l)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ParseSize parses a human-readable size such as "10MB" or "512KB".
// An empty string means no limit.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1 << 30
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1 << 20
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1 << 10
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("parse size %q: invalid", s)
	}
	return n * multiplier, nil
}
