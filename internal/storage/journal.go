// internal/storage/journal.go
package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-curve/internal/events"
	"github.com/rovshanmuradov/pump-curve/internal/program/pump"
)

// Record is one journal line.
type Record struct {
	Time      time.Time       `json:"time"`
	Signature string          `json:"signature"`
	Slot      uint64          `json:"slot"`
	Type      string          `json:"type"`
	Event     string          `json:"event,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Decode returns the program event held by the record, or nil for
// records that carry none.
func (r *Record) Decode() (pump.Event, error) {
	if r.Event == "" {
		return nil, nil
	}
	ev := pump.NewEvent(r.Event)
	if ev == nil {
		return nil, fmt.Errorf("unknown event %q", r.Event)
	}
	if err := json.Unmarshal(r.Payload, ev); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", r.Event, err)
	}
	return ev, nil
}

// JSONLJournal appends records to a JSON-lines file.
type JSONLJournal struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

var _ Journal = (*JSONLJournal)(nil)

func NewJSONLJournal(path string, logger *zap.Logger) *JSONLJournal {
	return &JSONLJournal{path: path, logger: logger.Named("journal")}
}

func (j *JSONLJournal) Append(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// Records reads the whole journal. A missing file is an empty journal.
func (j *JSONLJournal) Records(ctx context.Context) ([]*Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var out []*Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		out = append(out, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return out, nil
}

// Handler returns a bus handler that journals program events and failed
// transactions.
func (j *JSONLJournal) Handler() events.Handler {
	return events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		rec := &Record{Time: e.Timestamp(), Type: string(e.Type())}
		switch ev := e.(type) {
		case *events.ProgramEvent:
			payload, err := json.Marshal(ev.Payload)
			if err != nil {
				return fmt.Errorf("encode %s: %w", ev.Payload.EventName(), err)
			}
			rec.Signature = ev.Signature.String()
			rec.Slot = ev.Slot
			rec.Event = ev.Payload.EventName()
			rec.Payload = payload
		case *events.TransactionFailedEvent:
			rec.Signature = ev.Signature.String()
			rec.Slot = ev.Slot
			rec.Error = ev.Error.Error()
		default:
			return nil
		}
		return j.Append(ctx, rec)
	})
}
