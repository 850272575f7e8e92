package runlog

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/videodesk-io/videodesk/pkg/triage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string, started time.Time) *triage.RunResult {
	return &triage.RunResult{
		RunID:   id,
		ViewID:  42,
		FieldID: 777,
		Total:   5,
		Distribution: []triage.AgentCount{
			{AgentID: 1, Count: 3},
			{AgentID: 2, Count: 2},
		},
		Jobs: []triage.JobStatus{
			{AgentID: 1, JobURL: "https://example.zendesk.com/api/v2/job_statuses/j1.json"},
			{AgentID: 2, Err: "gateway timeout"},
		},
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
	}
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	started := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	if err := s.Save(sampleRun("run-1", started)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Get("run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Total != 5 {
		t.Errorf("total = %d", got.Total)
	}
	if len(got.Distribution) != 2 || got.Distribution[0].Count != 3 {
		t.Errorf("distribution = %+v", got.Distribution)
	}
	if got.FailedJobs() != 1 {
		t.Errorf("failed jobs = %d", got.FailedJobs())
	}
	if !got.Jobs[1].Failed() || got.Jobs[1].Err != "gateway timeout" {
		t.Errorf("jobs[1] = %+v", got.Jobs[1])
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("nope"); err == nil {
		t.Error("expected error for missing run")
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		run := sampleRun(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Hour))
		if err := s.Save(run); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	runs, err := s.List(3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("list = %d runs", len(runs))
	}
	if runs[0].RunID != "run-4" || runs[2].RunID != "run-2" {
		t.Errorf("order = %s, %s, %s", runs[0].RunID, runs[1].RunID, runs[2].RunID)
	}
}
