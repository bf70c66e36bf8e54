package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cronwatch/internal/model"
	"cronwatch/internal/platform"
)

// Fetcher reads pg_cron state through the Supabase REST API. It expects a
// project exposing the cron_jobs_view and cron_job_run_logs views to the
// anon role.
type Fetcher struct {
	client *http.Client
}

func New(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client}
}

type cronJob struct {
	JobID    int64  `json:"jobid"`
	JobName  string `json:"jobname"`
	Schedule string `json:"schedule"`
	Command  string `json:"command"`
	NodeName string `json:"nodename,omitempty"`
	NodePort int    `json:"nodeport,omitempty"`
	Database string `json:"database,omitempty"`
	Username string `json:"username,omitempty"`
	Active   *bool  `json:"active,omitempty"`
	JobHost  string `json:"jobhost,omitempty"`
}

type cronJobRun struct {
	JobID         int64  `json:"jobid"`
	JobName       string `json:"jobname"`
	Status        string `json:"status"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time,omitempty"`
	ReturnMessage string `json:"return_message,omitempty"`
}

func (f *Fetcher) FetchJobs(ctx context.Context, config model.ConnectionConfig) ([]platform.NormalizedJob, error) {
	projectURL, anonKey, err := credentials(config)
	if err != nil {
		return nil, err
	}

	var jobs []cronJob
	url := projectURL + "/rest/v1/cron_jobs_view"
	if err := f.getJSON(ctx, url, anonKey, &jobs); err != nil {
		return nil, fmt.Errorf("failed to fetch cron jobs: %w", err)
	}

	normalized := make([]platform.NormalizedJob, 0, len(jobs))
	for _, job := range jobs {
		normalized = append(normalized, platform.NormalizedJob{
			Name: job.JobName,
			Cron: job.Schedule,
			Metadata: model.Metadata{
				"jobId":    job.JobID,
				"command":  job.Command,
				"database": job.Database,
				"username": job.Username,
				"active":   job.Active,
				"nodename": job.NodeName,
				"nodeport": job.NodePort,
				"jobhost":  job.JobHost,
			},
		})
	}
	return normalized, nil
}

func (f *Fetcher) FetchLatestRuns(ctx context.Context, config model.ConnectionConfig) ([]platform.RunRecord, error) {
	projectURL, anonKey, err := credentials(config)
	if err != nil {
		return nil, err
	}

	var runs []cronJobRun
	url := projectURL + "/rest/v1/cron_job_run_logs" +
		"?select=jobid,jobname,status,start_time,end_time,return_message" +
		"&order=start_time.desc&limit=100"
	if err := f.getJSON(ctx, url, anonKey, &runs); err != nil {
		return nil, fmt.Errorf("failed to fetch job runs: %w", err)
	}

	records := make([]platform.RunRecord, 0, len(runs))
	for _, run := range runs {
		started, err := time.Parse(time.RFC3339, run.StartTime)
		if err != nil {
			continue
		}

		record := platform.RunRecord{
			NativeJobID: run.JobID,
			Status:      model.RunStatus(run.Status),
			StartedAt:   started,
			Message:     run.ReturnMessage,
		}
		if run.EndTime != "" {
			if ended, err := time.Parse(time.RFC3339, run.EndTime); err == nil {
				record.EndedAt = &ended
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func (f *Fetcher) ValidateAccess(ctx context.Context, config model.ConnectionConfig) (bool, error) {
	projectURL, anonKey, err := credentials(config)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, projectURL+"/rest/v1/cron_jobs_view?select=count", nil)
	if err != nil {
		return false, err
	}
	setHeaders(req, anonKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

func (f *Fetcher) getJSON(ctx context.Context, url, anonKey string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	setHeaders(req, anonKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("supabase api error: %s", resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func setHeaders(req *http.Request, anonKey string) {
	req.Header.Set("apikey", anonKey)
	req.Header.Set("Authorization", "Bearer "+anonKey)
	req.Header.Set("Accept", "application/json")
}

func credentials(config model.ConnectionConfig) (string, string, error) {
	projectURL, ok := config.String("projectUrl")
	if !ok || projectURL == "" {
		return "", "", fmt.Errorf("connection config is missing projectUrl")
	}
	anonKey, ok := config.String("anonKey")
	if !ok || anonKey == "" {
		return "", "", fmt.Errorf("connection config is missing anonKey")
	}
	return projectURL, anonKey, nil
}
