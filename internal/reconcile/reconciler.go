package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"cronwatch/internal/connection"
	"cronwatch/internal/logger"
	"cronwatch/internal/model"
	"cronwatch/internal/platform"
	"cronwatch/internal/repository"

	"go.uber.org/zap"
)

// Result summarizes one reconciliation pass. Partial success is a normal
// outcome: per-item failures land in Errors, the batch keeps going.
type Result struct {
	Added   int      `json:"added"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

type Reconciler struct {
	conns    *connection.Store
	jobs     *repository.JobRepository
	registry *platform.Registry
}

func NewReconciler(conns *connection.Store, jobs *repository.JobRepository, registry *platform.Registry) *Reconciler {
	return &Reconciler{conns: conns, jobs: jobs, registry: registry}
}

// Discover runs a user-triggered discovery end to end: decrypt the
// connection config, fetch the platform's job list, reconcile it into the
// local inventory.
func (r *Reconciler) Discover(ctx context.Context, connectionID, userID string) (Result, error) {
	conn, err := r.conns.Get(connectionID, userID)
	if err != nil {
		return Result{}, err
	}

	fetcher, ok := r.registry.Lookup(conn.Platform)
	if !ok {
		return Result{}, fmt.Errorf("platform %q is not supported", conn.Platform)
	}

	discovered, err := fetcher.FetchJobs(ctx, conn.Config)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch jobs: %w", err)
	}

	result := r.Reconcile(conn, discovered)
	logger.Log.Info("discovery finished",
		zap.String("connection", conn.ID),
		zap.Int("added", result.Added),
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// Reconcile merges discovered jobs into the inventory keyed on
// (connectionID, originID). New jobs are inserted, re-seen jobs are
// overwritten and their last-seen bumped. Jobs absent from the discovery
// are left untouched.
func (r *Reconciler) Reconcile(conn connection.Record, discovered []platform.NormalizedJob) Result {
	var result Result
	result.Errors = []string{}
	project := projectLabel(conn.Platform, conn.Config)

	for _, item := range discovered {
		added, err := r.reconcileOne(conn, project, item)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to process job %s: %v", item.Name, err))
			continue
		}
		if added {
			result.Added++
		} else {
			result.Updated++
		}
	}
	return result
}

func (r *Reconciler) reconcileOne(conn connection.Record, project string, item platform.NormalizedJob) (bool, error) {
	if item.Name == "" {
		return false, fmt.Errorf("discovered job has no name")
	}

	metadata := item.Metadata
	if metadata == nil {
		metadata = model.Metadata{}
	}
	rawMetadata, err := json.Marshal(metadata)
	if err != nil {
		return false, fmt.Errorf("failed to encode metadata: %w", err)
	}

	existing, err := r.jobs.GetByOrigin(conn.ID, item.Name)
	switch {
	case err == nil:
		return false, r.jobs.UpdateDiscovered(existing.ID, item.Name, item.Cron, rawMetadata)

	case errors.Is(err, repository.ErrNotFound):
		job := model.Job{
			ConnectionID: conn.ID,
			OriginID:     item.Name,
			Name:         item.Name,
			Cron:         item.Cron,
			Platform:     conn.Platform,
			Project:      project,
			Metadata:     rawMetadata,
			LastSeenAt:   time.Now(),
		}
		return true, r.jobs.Create(&job)

	default:
		return false, err
	}
}

// projectLabel is derived once per connection and applied to every job of
// the run.
func projectLabel(p model.Platform, config model.ConnectionConfig) string {
	if p == model.PlatformSupabase {
		if raw, ok := config.String("projectUrl"); ok && raw != "" {
			if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
				return u.Hostname()
			}
		}
	}
	return "unknown"
}
