package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"cronwatch/internal/connection"
	"cronwatch/internal/db"
	"cronwatch/internal/model"
	"cronwatch/internal/platform"
	"cronwatch/internal/repository"

	"gorm.io/gorm"
)

const testMasterKey = "monitor-test-master-key"

// fakeFetcher serves canned run history; connections whose config carries
// fail=yes error out to exercise isolation.
type fakeFetcher struct {
	runs []platform.RunRecord
}

func (f *fakeFetcher) FetchJobs(context.Context, model.ConnectionConfig) ([]platform.NormalizedJob, error) {
	return nil, nil
}

func (f *fakeFetcher) FetchLatestRuns(_ context.Context, config model.ConnectionConfig) ([]platform.RunRecord, error) {
	if v, _ := config.String("fail"); v == "yes" {
		return nil, fmt.Errorf("simulated upstream outage")
	}
	return f.runs, nil
}

func (f *fakeFetcher) ValidateAccess(context.Context, model.ConnectionConfig) (bool, error) {
	return true, nil
}

type fixture struct {
	gdb     *gorm.DB
	conns   *connection.Store
	jobs    *repository.JobRepository
	runs    *repository.RunRepository
	alerts  *repository.AlertRepository
	fetcher *fakeFetcher
	monitor *Monitor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	f := &fixture{
		gdb:     gdb,
		conns:   connection.NewStore(repository.NewConnectionRepository(gdb), testMasterKey),
		jobs:    repository.NewJobRepository(gdb),
		runs:    repository.NewRunRepository(gdb),
		alerts:  repository.NewAlertRepository(gdb),
		fetcher: &fakeFetcher{},
	}

	registry := platform.NewRegistry()
	registry.Register(model.PlatformSupabase, f.fetcher)
	f.monitor = New(f.conns, f.jobs, f.runs, f.alerts, registry, 2)
	return f
}

func (f *fixture) addConnection(t *testing.T, label string, config model.ConnectionConfig) connection.Record {
	t.Helper()
	record, err := f.conns.Create("user-1", model.PlatformSupabase, label, config)
	if err != nil {
		t.Fatal(err)
	}
	return record
}

func (f *fixture) addJob(t *testing.T, connectionID, name string, nativeID int64) model.Job {
	t.Helper()
	metadata, _ := json.Marshal(model.Metadata{"jobId": nativeID})
	job := model.Job{
		ConnectionID: connectionID,
		OriginID:     name,
		Name:         name,
		Platform:     model.PlatformSupabase,
		Metadata:     metadata,
		LastSeenAt:   time.Now(),
	}
	if err := f.jobs.Create(&job); err != nil {
		t.Fatal(err)
	}
	return job
}

func failedRun(nativeID int64, startedAt time.Time) platform.RunRecord {
	return platform.RunRecord{
		NativeJobID: nativeID,
		Status:      model.RunStatusFailed,
		StartedAt:   startedAt,
		Message:     "ERROR: relation does not exist",
	}
}

func (f *fixture) alertCount(t *testing.T, jobID string) int64 {
	t.Helper()
	n, err := f.alerts.CountByJob(jobID)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestTickRecordsRunAndAlert(t *testing.T) {
	f := newFixture(t)
	conn := f.addConnection(t, "prod", model.ConnectionConfig{"anonKey": "k"})
	job := f.addJob(t, conn.ID, "backup", 7)

	started := time.Now().Add(-time.Minute).Truncate(time.Second)
	f.fetcher.runs = []platform.RunRecord{failedRun(7, started)}

	f.monitor.Tick(context.Background())

	if n := f.alertCount(t, job.ID); n != 1 {
		t.Fatalf("expected 1 alert, got %d", n)
	}
	if n, _ := f.runs.CountByJob(job.ID); n != 1 {
		t.Fatalf("expected 1 run, got %d", n)
	}

	alerts, _ := f.alerts.ListForUser("user-1", "", 10, 0)
	details := model.DecodeMetadata(alerts[0].Details)
	if _, ok := details["detectedAt"]; !ok {
		t.Error("alert details missing detection timestamp")
	}
	if _, ok := details["jobRun"]; !ok {
		t.Error("alert details missing run snapshot")
	}
}

func TestAlertDedupWithinWindow(t *testing.T) {
	f := newFixture(t)
	conn := f.addConnection(t, "prod", model.ConnectionConfig{"anonKey": "k"})
	job := f.addJob(t, conn.ID, "backup", 7)

	f.fetcher.runs = []platform.RunRecord{failedRun(7, time.Now().Add(-time.Minute))}
	f.monitor.Tick(context.Background())

	// A later tick inside the window sees a newer failure of the same job.
	f.fetcher.runs = []platform.RunRecord{failedRun(7, time.Now())}
	f.monitor.Tick(context.Background())

	if n := f.alertCount(t, job.ID); n != 1 {
		t.Fatalf("failures within the dedup window must collapse, got %d alerts", n)
	}
}

func TestAlertDedupWindowExpiry(t *testing.T) {
	f := newFixture(t)
	conn := f.addConnection(t, "prod", model.ConnectionConfig{"anonKey": "k"})
	job := f.addJob(t, conn.ID, "backup", 7)

	f.fetcher.runs = []platform.RunRecord{failedRun(7, time.Now().Add(-2 * time.Hour))}
	f.monitor.Tick(context.Background())

	// Age the alert past the window.
	if err := f.gdb.Model(&model.Alert{}).
		Where("job_id = ?", job.ID).
		Update("created_at", time.Now().Add(-61*time.Minute)).Error; err != nil {
		t.Fatal(err)
	}

	f.fetcher.runs = []platform.RunRecord{failedRun(7, time.Now())}
	f.monitor.Tick(context.Background())

	if n := f.alertCount(t, job.ID); n != 2 {
		t.Fatalf("expired window must allow a new alert, got %d", n)
	}
}

func TestRunPersistenceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	conn := f.addConnection(t, "prod", model.ConnectionConfig{"anonKey": "k"})
	job := f.addJob(t, conn.ID, "backup", 7)

	started := time.Now().Add(-time.Minute).Truncate(time.Second)
	f.fetcher.runs = []platform.RunRecord{failedRun(7, started)}

	f.monitor.Tick(context.Background())
	f.monitor.Tick(context.Background())

	if n, _ := f.runs.CountByJob(job.ID); n != 1 {
		t.Fatalf("re-observed run must not duplicate, got %d rows", n)
	}
}

func TestLatestRunPerJobWins(t *testing.T) {
	f := newFixture(t)
	conn := f.addConnection(t, "prod", model.ConnectionConfig{"anonKey": "k"})
	job := f.addJob(t, conn.ID, "backup", 7)

	now := time.Now().Truncate(time.Second)
	f.fetcher.runs = []platform.RunRecord{
		{NativeJobID: 7, Status: model.RunStatusSucceeded, StartedAt: now},
		failedRun(7, now.Add(-10*time.Minute)),
	}

	f.monitor.Tick(context.Background())

	// The older failure is shadowed by the newer success.
	if n := f.alertCount(t, job.ID); n != 0 {
		t.Fatalf("only the latest run counts, got %d alerts", n)
	}
	if n, _ := f.runs.CountByJob(job.ID); n != 1 {
		t.Fatalf("expected only the latest run stored, got %d", n)
	}
}

func TestConnectionFailureIsolation(t *testing.T) {
	f := newFixture(t)

	broken := f.addConnection(t, "broken", model.ConnectionConfig{"anonKey": "k", "fail": "yes"})
	healthy := f.addConnection(t, "healthy", model.ConnectionConfig{"anonKey": "k"})
	f.addJob(t, broken.ID, "a", 1)
	job := f.addJob(t, healthy.ID, "b", 2)

	f.fetcher.runs = []platform.RunRecord{failedRun(2, time.Now().Add(-time.Minute))}
	f.monitor.Tick(context.Background())

	if n := f.alertCount(t, job.ID); n != 1 {
		t.Fatalf("healthy connection must still be monitored, got %d alerts", n)
	}
}

func TestJobWithoutNativeIDIsSkipped(t *testing.T) {
	f := newFixture(t)
	conn := f.addConnection(t, "prod", model.ConnectionConfig{"anonKey": "k"})

	job := model.Job{
		ConnectionID: conn.ID,
		OriginID:     "no-native-id",
		Name:         "no-native-id",
		Platform:     model.PlatformSupabase,
		Metadata:     []byte(`{}`),
		LastSeenAt:   time.Now(),
	}
	if err := f.jobs.Create(&job); err != nil {
		t.Fatal(err)
	}

	f.fetcher.runs = []platform.RunRecord{failedRun(7, time.Now())}
	f.monitor.Tick(context.Background())

	if n, _ := f.runs.CountByJob(job.ID); n != 0 {
		t.Errorf("job without native id must be skipped, got %d runs", n)
	}
}
