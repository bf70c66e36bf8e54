package supabase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cronwatch/internal/model"
)

func testConfig(url string) model.ConnectionConfig {
	return model.ConnectionConfig{
		"projectUrl": url,
		"anonKey":    "anon-key",
	}
}

func TestFetchJobs(t *testing.T) {
	var gotPath, gotAPIKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"jobid": 7, "jobname": "nightly-backup", "schedule": "0 3 * * *",
			 "command": "CALL backup()", "database": "postgres", "username": "cron",
			 "active": true, "nodename": "localhost", "nodeport": 5432}
		]`))
	}))
	defer srv.Close()

	fetcher := New(srv.Client())
	jobs, err := fetcher.FetchJobs(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("FetchJobs: %v", err)
	}

	if gotPath != "/rest/v1/cron_jobs_view" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAPIKey != "anon-key" {
		t.Errorf("apikey header = %q", gotAPIKey)
	}
	if gotAuth != "Bearer anon-key" {
		t.Errorf("authorization header = %q", gotAuth)
	}

	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	job := jobs[0]
	if job.Name != "nightly-backup" || job.Cron != "0 3 * * *" {
		t.Errorf("job = %+v", job)
	}
	if id, ok := job.Metadata.Int("jobId"); !ok || id != 7 {
		t.Errorf("jobId metadata: %v %v", id, ok)
	}
	if cmd, _ := job.Metadata.String("command"); cmd != "CALL backup()" {
		t.Errorf("command metadata: %q", cmd)
	}
}

func TestFetchLatestRuns(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"jobid": 7, "status": "failed", "start_time": "2026-08-29T03:00:00Z",
			 "end_time": "2026-08-29T03:00:12Z", "return_message": "connection refused"},
			{"jobid": 8, "status": "succeeded", "start_time": "not-a-timestamp"}
		]`))
	}))
	defer srv.Close()

	fetcher := New(srv.Client())
	runs, err := fetcher.FetchLatestRuns(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("FetchLatestRuns: %v", err)
	}

	for _, want := range []string{"order=start_time.desc", "limit=100"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}

	// The unparseable record is dropped, not fatal.
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.NativeJobID != 7 || run.Status != model.RunStatusFailed {
		t.Errorf("run = %+v", run)
	}
	if !run.StartedAt.Equal(time.Date(2026, 8, 29, 3, 0, 0, 0, time.UTC)) {
		t.Errorf("started at = %v", run.StartedAt)
	}
	if run.EndedAt == nil || !run.EndedAt.Equal(run.StartedAt.Add(12*time.Second)) {
		t.Errorf("ended at = %v", run.EndedAt)
	}
	if run.Message != "connection refused" {
		t.Errorf("message = %q", run.Message)
	}
}

func TestValidateAccess(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	fetcher := New(srv.Client())

	ok, err := fetcher.ValidateAccess(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected access valid on 200")
	}

	status = http.StatusUnauthorized
	ok, err = fetcher.ValidateAccess(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected access invalid on 401")
	}
}

func TestMissingCredentials(t *testing.T) {
	fetcher := New(nil)

	cases := []model.ConnectionConfig{
		{},
		{"projectUrl": "https://p.example"},
		{"anonKey": "anon-key"},
	}
	for _, config := range cases {
		if _, err := fetcher.FetchJobs(context.Background(), config); err == nil {
			t.Errorf("config %v: expected error", config)
		}
	}
}

func TestAPIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "permission denied", http.StatusForbidden)
	}))
	defer srv.Close()

	fetcher := New(srv.Client())
	if _, err := fetcher.FetchJobs(context.Background(), testConfig(srv.URL)); err == nil {
		t.Fatal("expected error on 403")
	}
}
