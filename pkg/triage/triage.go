// Package triage defines the wire types shared by the daemon, the REST
// API, and videodeskctl.
package triage

import "time"

// Tab is the destination a video record can be routed to.
type Tab string

const (
	// TabQueue holds candidate records awaiting review.
	TabQueue Tab = "queue"
	// TabDownloaded holds records an operator marked as downloaded.
	TabDownloaded Tab = "downloaded"
	// TabNotRelevant holds records dismissed as not relevant.
	TabNotRelevant Tab = "not_relevant"
	// TabTicketed holds records escalated as support tickets.
	TabTicketed Tab = "ticketed"
)

// Valid reports whether t is one of the known tabs.
func (t Tab) Valid() bool {
	switch t {
	case TabQueue, TabDownloaded, TabNotRelevant, TabTicketed:
		return true
	}
	return false
}

// Video is a single record in the triage queue. ID is the video's
// platform identifier, derived from the link when the archive doesn't
// carry it directly.
type Video struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Channel   string     `json:"channel,omitempty"`
	Link      string     `json:"link"`
	Published string     `json:"published,omitempty"`
	Source    string     `json:"source,omitempty"`
	Tab       Tab        `json:"tab"`
	TicketID  int64      `json:"ticket_id,omitempty"`
	AddedAt   time.Time  `json:"added_at"`
	RoutedAt  *time.Time `json:"routed_at,omitempty"`
}

// AgentCount is the expected number of tickets an agent receives in a
// run, computed from the even split (quotient plus remainder spread over
// the first agents in pool order).
type AgentCount struct {
	AgentID int64 `json:"agent_id"`
	Count   int   `json:"count"`
}

// JobStatus is the outcome of one bulk-update call: either the job URL
// returned by the ticketing API, or the error that failed the chunk.
type JobStatus struct {
	AgentID int64  `json:"agent_id"`
	JobURL  string `json:"job_url,omitempty"`
	Err     string `json:"error,omitempty"`
}

// Failed reports whether the chunk's bulk-update call failed.
func (j JobStatus) Failed() bool { return j.Err != "" }

// RunResult is the record of one round-robin assignment run. The run is
// not transactional: when some jobs fail, this result is the only record
// of which tickets were updated.
type RunResult struct {
	RunID        string       `json:"run_id"`
	ViewID       int64        `json:"view_id"`
	FieldID      int64        `json:"field_id"`
	Total        int          `json:"total"`
	Distribution []AgentCount `json:"distribution"`
	Jobs         []JobStatus  `json:"jobs"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
}

// FailedJobs returns the number of error-tagged job entries.
func (r *RunResult) FailedJobs() int {
	n := 0
	for _, j := range r.Jobs {
		if j.Failed() {
			n++
		}
	}
	return n
}
