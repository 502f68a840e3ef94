package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/faucetdb/rolekeeper/internal/model"
)

// FileConfig controls the rotating audit file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// FileSink writes one JSON object per line.
type FileSink struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

type fileEvent struct {
	EventID   string    `json:"event_id"`
	EntryID   int64     `json:"entry_id,omitempty"`
	TargetID  int64     `json:"target_id"`
	ActorID   int64     `json:"actor_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// NewFileSink opens a size-rotated audit file.
func NewFileSink(cfg FileConfig) *FileSink {
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return &FileSink{w: lj, c: lj}
}

// NewWriterSink writes audit lines to w.
func NewWriterSink(w io.Writer) *FileSink {
	fs := &FileSink{w: w}
	if c, ok := w.(io.Closer); ok {
		fs.c = c
	}
	return fs
}

// Append writes e as a single JSON line.
func (f *FileSink) Append(_ context.Context, e *model.AuditEntry) error {
	ev := fileEvent{
		EntryID:   e.ID,
		TargetID:  e.TargetID,
		ActorID:   e.ActorID,
		Action:    e.Action,
		Details:   e.Details,
		Timestamp: e.CreatedAt.UTC(),
	}
	if id, err := uuid.NewV7(); err == nil {
		ev.EventID = id.String()
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.w.Write(line); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// Close closes the underlying file, if any.
func (f *FileSink) Close() error {
	if f.c == nil {
		return nil
	}
	return f.c.Close()
}
