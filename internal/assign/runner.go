package assign

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/videodesk-io/videodesk/pkg/triage"
)

// maxChunkSize is the upstream bulk-update batch limit.
const maxChunkSize = 100

// TicketService is the slice of the ticketing API the runner needs.
// Implemented by *zendesk.Client.
type TicketService interface {
	TicketIDs(ctx context.Context, viewID int64) ([]int64, error)
	UpdateMany(ctx context.Context, ids []int64, fieldID, value int64) (string, error)
}

// Options tunes a Runner.
type Options struct {
	// Pace is the fixed delay applied before every bulk-update call,
	// regardless of response latency. Zero disables pacing (tests).
	Pace time.Duration

	// ChunkSize caps how many tickets go into one bulk-update call.
	// Zero means maxChunkSize; values above the limit are clamped.
	ChunkSize int
}

// Runner executes round-robin assignment runs against a ticket service.
type Runner struct {
	svc       TicketService
	pace      time.Duration
	chunkSize int
	logger    *slog.Logger
}

// NewRunner creates a runner.
func NewRunner(svc TicketService, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	size := opts.ChunkSize
	if size <= 0 || size > maxChunkSize {
		size = maxChunkSize
	}
	return &Runner{
		svc:       svc,
		pace:      opts.Pace,
		chunkSize: size,
		logger:    logger,
	}
}

// Run fetches every ticket id in viewID, allocates them round-robin
// across agentIDs, and dispatches one paced bulk-update call per
// (agent, chunk) setting fieldID to the agent's id. Dispatch is
// agent-major and sequential.
//
// Run returns an error only for failures that happen before any ticket
// is mutated: invalid configuration (*ConfigError) or a fetch failure
// (*zendesk.AuthError / *zendesk.TransportError). Once dispatch starts,
// a chunk's failure is recorded as an error-tagged job entry and the
// remaining chunks still go out; the returned result is then complete
// and the only record of which tickets were updated.
func (r *Runner) Run(ctx context.Context, viewID, fieldID int64, agentIDs []int64) (*triage.RunResult, error) {
	if viewID == 0 {
		return nil, &ConfigError{Reason: "view id is not set"}
	}
	if fieldID == 0 {
		return nil, &ConfigError{Reason: "field id is not set"}
	}
	if len(agentIDs) == 0 {
		return nil, &ConfigError{Reason: "agent pool is empty"}
	}
	if dup := firstDuplicate(agentIDs); dup != 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("duplicate agent id %d would bias the distribution", dup)}
	}

	result := &triage.RunResult{
		RunID:        uuid.NewString(),
		ViewID:       viewID,
		FieldID:      fieldID,
		Distribution: []triage.AgentCount{},
		Jobs:         []triage.JobStatus{},
		StartedAt:    time.Now().UTC(),
	}

	ticketIDs, err := r.svc.TicketIDs(ctx, viewID)
	if err != nil {
		return nil, err
	}
	result.Total = len(ticketIDs)

	if len(ticketIDs) == 0 {
		result.FinishedAt = time.Now().UTC()
		r.logger.Info("assignment run: view is empty", "run_id", result.RunID, "view_id", viewID)
		return result, nil
	}

	buckets, err := Allocate(ticketIDs, agentIDs)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if r.pace > 0 {
		limiter = rate.NewLimiter(rate.Every(r.pace), 1)
		// Drain the initial token so the first call is paced too.
		limiter.Reserve()
	}

	for _, aid := range agentIDs {
		chunks, err := chunkIDs(buckets[aid], r.chunkSize)
		if err != nil {
			return nil, err
		}
		for _, chunk := range chunks {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					result.Jobs = append(result.Jobs, triage.JobStatus{AgentID: aid, Err: err.Error()})
					continue
				}
			}

			jobURL, err := r.svc.UpdateMany(ctx, chunk, fieldID, aid)
			if err != nil {
				r.logger.Warn("bulk update failed",
					"run_id", result.RunID, "agent_id", aid, "tickets", len(chunk), "error", err)
				result.Jobs = append(result.Jobs, triage.JobStatus{AgentID: aid, Err: err.Error()})
				continue
			}
			result.Jobs = append(result.Jobs, triage.JobStatus{AgentID: aid, JobURL: jobURL})
		}
	}

	result.Distribution = distribution(len(ticketIDs), agentIDs)
	result.FinishedAt = time.Now().UTC()

	r.logger.Info("assignment run finished",
		"run_id", result.RunID, "view_id", viewID,
		"total", result.Total, "jobs", len(result.Jobs), "failed", result.FailedJobs())
	return result, nil
}

func firstDuplicate(ids []int64) int64 {
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return id
		}
		seen[id] = true
	}
	return 0
}

