package monitor

import (
	"context"
	"encoding/json"
	"time"

	"cronwatch/internal/connection"
	"cronwatch/internal/logger"
	"cronwatch/internal/model"
	"cronwatch/internal/platform"
	"cronwatch/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// dedupWindow is the span within which repeated failure observations for
// one job collapse into a single alert.
const dedupWindow = 60 * time.Minute

// Monitor polls execution history for every monitored connection and
// records runs and deduplicated failure alerts.
type Monitor struct {
	conns    *connection.Store
	jobs     *repository.JobRepository
	runs     *repository.RunRepository
	alerts   *repository.AlertRepository
	registry *platform.Registry
	limit    int
}

func New(
	conns *connection.Store,
	jobs *repository.JobRepository,
	runs *repository.RunRepository,
	alerts *repository.AlertRepository,
	registry *platform.Registry,
	workerLimit int,
) *Monitor {
	if workerLimit < 1 {
		workerLimit = 1
	}
	return &Monitor{
		conns:    conns,
		jobs:     jobs,
		runs:     runs,
		alerts:   alerts,
		registry: registry,
		limit:    workerLimit,
	}
}

// Tick runs one monitoring pass. Errors stay inside the tick: each
// connection is isolated, and the tick itself only reports through logs.
func (m *Monitor) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("monitor tick panicked", zap.Any("panic", r))
		}
	}()

	started := time.Now()

	for _, p := range model.SupportedPlatforms() {
		fetcher, ok := m.registry.Lookup(p)
		if !ok {
			continue
		}

		records, err := m.conns.ListMonitored(p)
		if err != nil {
			logger.Log.Error("failed to list connections",
				zap.String("platform", string(p)),
				zap.Error(err))
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(m.limit)
		for _, record := range records {
			record := record
			g.Go(func() error {
				if err := m.monitorConnection(gctx, fetcher, record); err != nil {
					logger.Log.Warn("failed to monitor connection",
						zap.String("connection", record.ID),
						zap.String("label", record.Label),
						zap.Error(err))
				}
				// Per-connection failures never abort the tick.
				return nil
			})
		}
		_ = g.Wait()
	}

	logger.Log.Info("monitor tick finished",
		zap.Duration("took", time.Since(started)))
}

func (m *Monitor) monitorConnection(ctx context.Context, fetcher platform.Fetcher, record connection.Record) error {
	runs, err := fetcher.FetchLatestRuns(ctx, record.Config)
	if err != nil {
		return err
	}
	latest := platform.LatestByJob(runs)

	jobs, err := m.jobs.ListByConnection(record.ID)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		nativeID, ok := model.DecodeMetadata(job.Metadata).Int("jobId")
		if !ok {
			continue
		}

		run, ok := latest[nativeID]
		if !ok {
			continue
		}

		// Failure detection must precede the run insert for each job so
		// an abandoned tick never records a run whose failure went
		// unexamined.
		if run.Status == model.RunStatusFailed {
			m.handleFailure(job, run)
		}
		m.storeRun(job, run)
	}
	return nil
}

func (m *Monitor) handleFailure(job model.Job, run platform.RunRecord) {
	recent, err := m.alerts.HasRecent(job.ID, model.AlertTypeFailure, dedupWindow)
	if err != nil {
		logger.Log.Warn("failed to check recent alerts",
			zap.String("job", job.ID),
			zap.Error(err))
		return
	}
	if recent {
		logger.Log.Debug("suppressing duplicate failure alert",
			zap.String("job", job.ID))
		return
	}

	snapshot := map[string]any{
		"status":    run.Status,
		"startTime": run.StartedAt,
		"message":   run.Message,
	}
	if run.EndedAt != nil {
		snapshot["endTime"] = run.EndedAt
	}
	details, err := json.Marshal(map[string]any{
		"jobRun":     snapshot,
		"detectedAt": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		logger.Log.Warn("failed to encode alert details",
			zap.String("job", job.ID),
			zap.Error(err))
		return
	}

	alert := model.Alert{
		JobID:   job.ID,
		Type:    model.AlertTypeFailure,
		Details: details,
	}
	if err := m.alerts.Create(&alert); err != nil {
		logger.Log.Warn("failed to create alert",
			zap.String("job", job.ID),
			zap.Error(err))
		return
	}

	logger.Log.Info("failure alert created",
		zap.String("job", job.ID),
		zap.String("name", job.Name),
		zap.String("alert", alert.ID))
}

func (m *Monitor) storeRun(job model.Job, run platform.RunRecord) {
	jobRun := model.JobRun{
		JobID:     job.ID,
		Status:    run.Status,
		StartedAt: run.StartedAt,
		EndedAt:   run.EndedAt,
		Message:   run.Message,
	}
	if err := m.runs.Insert(&jobRun); err != nil {
		logger.Log.Warn("failed to store job run",
			zap.String("job", job.ID),
			zap.Error(err))
	}
}
