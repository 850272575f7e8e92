// Package desk coordinates the triage service: queue operations,
// escalation, and assignment runs, with run results persisted and
// announced.
package desk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/videodesk-io/videodesk/internal/assign"
	"github.com/videodesk-io/videodesk/internal/runlog"
	"github.com/videodesk-io/videodesk/internal/video"
	"github.com/videodesk-io/videodesk/pkg/triage"
)

// Ticketing is the slice of the ticketing client the desk uses for
// escalation.
type Ticketing interface {
	CreateTicket(ctx context.Context, subject, description string) (int64, error)
}

// Notifier announces finished assignment runs. Implemented by
// notify.Slack.
type Notifier interface {
	RunCompleted(ctx context.Context, res *triage.RunResult) error
}

// AssignDefaults are the configured fallbacks for assignment runs
// triggered without explicit parameters (scheduler, bare API calls).
type AssignDefaults struct {
	ViewID   int64
	FieldID  int64
	AgentIDs []int64
}

// Desk is the service hub behind the REST API and the scheduler.
type Desk struct {
	videos        video.Store
	runs          *runlog.SQLiteStore
	runner        *assign.Runner
	ticketing     Ticketing
	notifier      Notifier
	defaults      AssignDefaults
	subjectPrefix string
	logger        *slog.Logger

	// Serializes assignment runs so the run log stays ordered and two
	// triggers can't interleave bulk updates against the same view.
	runMu sync.Mutex
}

// Options configures a Desk. Runner, Ticketing, and Notifier may be nil
// when the corresponding feature is unconfigured.
type Options struct {
	Videos        video.Store
	Runs          *runlog.SQLiteStore
	Runner        *assign.Runner
	Ticketing     Ticketing
	Notifier      Notifier
	Defaults      AssignDefaults
	SubjectPrefix string
	Logger        *slog.Logger
}

// New creates a Desk.
func New(opts Options) *Desk {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Desk{
		videos:        opts.Videos,
		runs:          opts.Runs,
		runner:        opts.Runner,
		ticketing:     opts.Ticketing,
		notifier:      opts.Notifier,
		defaults:      opts.Defaults,
		subjectPrefix: opts.SubjectPrefix,
		logger:        logger,
	}
}

// ListVideos returns queue records matching the filter.
func (d *Desk) ListVideos(filter video.Filter) ([]*triage.Video, error) {
	return d.videos.List(filter)
}

// CountVideos returns the number of records matching the filter.
func (d *Desk) CountVideos(filter video.Filter) (int, error) {
	return d.videos.Count(filter)
}

// RouteVideo moves a record to the given tab.
func (d *Desk) RouteVideo(id string, tab triage.Tab) error {
	if err := d.videos.Route(id, tab); err != nil {
		return err
	}
	d.logger.Info("video routed", "video_id", id, "tab", tab)
	return nil
}

// EscalateVideo opens a support ticket for the record and routes it to
// the ticketed tab. The ticket subject gets the configured prefix.
func (d *Desk) EscalateVideo(ctx context.Context, id, subject, description string) (int64, error) {
	if d.ticketing == nil {
		return 0, fmt.Errorf("ticketing is not configured")
	}
	if _, err := d.videos.Get(id); err != nil {
		return 0, err
	}
	if subject == "" {
		return 0, fmt.Errorf("subject is required")
	}
	if d.subjectPrefix != "" && !strings.HasPrefix(subject, d.subjectPrefix) {
		subject = d.subjectPrefix + " " + subject
	}

	ticketID, err := d.ticketing.CreateTicket(ctx, subject, description)
	if err != nil {
		return 0, fmt.Errorf("escalate %s: %w", id, err)
	}
	if err := d.videos.MarkTicketed(id, ticketID); err != nil {
		// The ticket exists upstream; surface the bookkeeping failure.
		return ticketID, fmt.Errorf("escalate %s: ticket %d created but not recorded: %w", id, ticketID, err)
	}

	d.logger.Info("video escalated", "video_id", id, "ticket_id", ticketID)
	return ticketID, nil
}

// RunAssignment executes a round-robin assignment run. Zero-valued
// parameters fall back to the configured defaults. The result is
// persisted to the run log and announced to the notifier before
// returning.
func (d *Desk) RunAssignment(ctx context.Context, viewID, fieldID int64, agentIDs []int64) (*triage.RunResult, error) {
	if d.runner == nil {
		return nil, &assign.ConfigError{Reason: "ticketing is not configured"}
	}
	if viewID == 0 {
		viewID = d.defaults.ViewID
	}
	if fieldID == 0 {
		fieldID = d.defaults.FieldID
	}
	if len(agentIDs) == 0 {
		agentIDs = d.defaults.AgentIDs
	}

	d.runMu.Lock()
	defer d.runMu.Unlock()

	res, err := d.runner.Run(ctx, viewID, fieldID, agentIDs)
	if err != nil {
		return nil, err
	}

	if d.runs != nil {
		if err := d.runs.Save(res); err != nil {
			d.logger.Error("failed to persist run result", "run_id", res.RunID, "error", err)
		}
	}
	if d.notifier != nil {
		if err := d.notifier.RunCompleted(ctx, res); err != nil {
			d.logger.Warn("run notification failed", "run_id", res.RunID, "error", err)
		}
	}
	return res, nil
}

// ListRuns returns persisted run results, newest first.
func (d *Desk) ListRuns(limit int) ([]*triage.RunResult, error) {
	if d.runs == nil {
		return nil, nil
	}
	return d.runs.List(limit)
}

// GetRun returns one persisted run result.
func (d *Desk) GetRun(runID string) (*triage.RunResult, error) {
	if d.runs == nil {
		return nil, fmt.Errorf("run %q not found", runID)
	}
	return d.runs.Get(runID)
}
