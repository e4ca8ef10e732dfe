package attempt

import (
	"context"
	"fmt"
	"sync"
)

type ctxKey string

const (
	indexKey ctxKey = "attempt"
	logKey   ctxKey = "attemptLog"
)

// WithIndex stores the 1-based attempt number in the context.
func WithIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, indexKey, index)
}

// Index returns the 1-based attempt number stored in the context, or 0 when
// the context does not belong to an attempt.
//
// Example:
//
//	work := func(ctx context.Context) error {
//	    if attempt.Index(ctx) < 3 {
//	        return errFlaky
//	    }
//	    return nil
//	}
func Index(ctx context.Context) int {
	i, ok := ctx.Value(indexKey).(int)
	if !ok {
		return 0
	}

	return i
}

// Log is an append-only, concurrency-safe buffer of diagnostic lines owned by
// a single attempt.
type Log struct {
	mu    sync.Mutex
	lines []string
}

// NewLog creates an empty Log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a line.
func (l *Log) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines = append(l.lines, line)
}

// Lines returns a copy of the lines captured so far.
func (l *Log) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.lines))
	copy(out, l.lines)

	return out
}

// Len returns the number of lines captured so far.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.lines)
}

// WithLog attaches an attempt log to the context.
func WithLog(ctx context.Context, log *Log) context.Context {
	return context.WithValue(ctx, logKey, log)
}

// Logf appends a formatted diagnostic line to the attempt log carried by the
// context. It is a no-op outside of an attempt.
func Logf(ctx context.Context, format string, args ...any) {
	log, ok := ctx.Value(logKey).(*Log)
	if !ok || log == nil {
		return
	}

	log.Append(fmt.Sprintf(format, args...))
}
