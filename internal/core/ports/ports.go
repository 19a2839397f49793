package ports

import (
	"archratchet/internal/data/history"
	"archratchet/internal/engine/ratchet"
	"context"
)

// BaselineStore abstracts the exclusively locked baseline artifact.
type BaselineStore interface {
	Path() string
	Load(ctx context.Context) (*ratchet.Baseline, error)
	// Modify runs fn as one locked read-modify-write. A nil result from fn
	// leaves the stored baseline untouched.
	Modify(ctx context.Context, fn func(current *ratchet.Baseline) (*ratchet.Baseline, error)) (*ratchet.Baseline, error)
}

// HistoryStore abstracts run persistence for trend workflows.
type HistoryStore interface {
	SaveRun(ctx context.Context, run history.Run) (history.Run, error)
	ListRuns(ctx context.Context, projectKey string, limit int) ([]history.Run, error)
	Close() error
}
