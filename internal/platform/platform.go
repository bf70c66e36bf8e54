package platform

import (
	"context"
	"time"

	"cronwatch/internal/model"
)

// NormalizedJob is one scheduled task as reported by a platform, stripped
// of wire-format details.
type NormalizedJob struct {
	Name     string
	Cron     string
	Metadata model.Metadata
}

// RunRecord is one execution observed on the platform side. NativeJobID
// ties it back to the job's metadata, not to our own job ids.
type RunRecord struct {
	NativeJobID int64
	Status      model.RunStatus
	StartedAt   time.Time
	EndedAt     *time.Time
	Message     string
}

// Fetcher is the capability a platform integration must provide. One
// implementation per platform, selected by platform tag.
type Fetcher interface {
	// FetchJobs lists the scheduled jobs the connection can see.
	FetchJobs(ctx context.Context, config model.ConnectionConfig) ([]NormalizedJob, error)

	// FetchLatestRuns returns recent executions ordered most recent
	// first. Callers collapse them with LatestByJob.
	FetchLatestRuns(ctx context.Context, config model.ConnectionConfig) ([]RunRecord, error)

	// ValidateAccess probes whether the stored credentials still work.
	ValidateAccess(ctx context.Context, config model.ConnectionConfig) (bool, error)
}

// Registry is the flat dispatch table from platform tag to Fetcher.
type Registry struct {
	fetchers map[model.Platform]Fetcher
}

func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[model.Platform]Fetcher)}
}

func (r *Registry) Register(p model.Platform, f Fetcher) {
	r.fetchers[p] = f
}

func (r *Registry) Lookup(p model.Platform) (Fetcher, bool) {
	f, ok := r.fetchers[p]
	return f, ok
}

// LatestByJob keeps the first (most recent) record per native job id from
// a most-recent-first list; later duplicates are discarded.
func LatestByJob(runs []RunRecord) map[int64]RunRecord {
	latest := make(map[int64]RunRecord, len(runs))
	for _, run := range runs {
		if _, seen := latest[run.NativeJobID]; !seen {
			latest[run.NativeJobID] = run
		}
	}
	return latest
}
