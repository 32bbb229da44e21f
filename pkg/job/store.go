package job

import (
	"context"
	"errors"
	"unicode/utf8"
)

// ErrNotFound is returned for job ids the store has never issued.
var ErrNotFound = errors.New("job not found")

// Store tracks job records. Each job is written by exactly one processor; reads may
// come from any goroutine.
type Store interface {
	Create(ctx context.Context) (Job, error)
	Get(ctx context.Context, id string) (Job, error)
	SetStatus(ctx context.Context, id string, status Status) error
	SetOutput(ctx context.Context, id string, ref string) error
	SetFailure(ctx context.Context, id string, stage Stage, reason string) error
	Ping(ctx context.Context) error
}

const maxReasonLen = 1024

// truncateReason caps reason at maxReasonLen bytes without splitting a rune.
func truncateReason(reason string) string {
	if len(reason) <= maxReasonLen {
		return reason
	}
	n := maxReasonLen
	for n > 0 && !utf8.RuneStart(reason[n]) {
		n--
	}
	return reason[:n]
}
