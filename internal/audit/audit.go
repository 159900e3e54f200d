package audit

import (
	"context"
	"time"
)

type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

type Entry struct {
	TraceID  string
	Table    string
	SQL      string
	Params   int
	Rows     int
	Duration time.Duration
	Status   Status
	Error    string
}

// RecordedEntry is an Entry as stored, with its id and insert time.
type RecordedEntry struct {
	AuditID    int64
	Entry      Entry
	RecordedAt time.Time
}

type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

type RecorderFunc func(ctx context.Context, entry Entry) error

func (f RecorderFunc) Record(ctx context.Context, entry Entry) error {
	return f(ctx, entry)
}
