// Package assign implements the round-robin ticket assignment pipeline:
// fetch the ids in a view, bucket them across an agent pool, and push
// the assignment through paced bulk-update calls.
package assign

import (
	"fmt"

	"github.com/videodesk-io/videodesk/pkg/triage"
)

// ConfigError reports invalid static configuration, detected before any
// network call is made.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "assign: " + e.Reason }

// Allocate distributes ticket ids across the agent pool round-robin:
// the ticket at index i goes to agentIDs[i mod len(agentIDs)]. Each
// agent's bucket preserves the order tickets were encountered in, and
// bucket sizes differ by at most one. The input order is whatever the
// upstream returned; no sorting happens anywhere in the pipeline.
func Allocate(ticketIDs, agentIDs []int64) (map[int64][]int64, error) {
	if len(agentIDs) == 0 {
		return nil, &ConfigError{Reason: "agent pool is empty"}
	}

	buckets := make(map[int64][]int64, len(agentIDs))
	for _, aid := range agentIDs {
		buckets[aid] = nil
	}
	for i, tid := range ticketIDs {
		aid := agentIDs[i%len(agentIDs)]
		buckets[aid] = append(buckets[aid], tid)
	}
	return buckets, nil
}

// chunkIDs splits ids into consecutive sub-slices of at most size
// elements; the last chunk may be shorter. The sub-slices alias the
// input, which is never mutated.
func chunkIDs(ids []int64, size int) ([][]int64, error) {
	if size <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("chunk size %d must be positive", size)}
	}

	var chunks [][]int64
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end:end])
	}
	return chunks, nil
}

// distribution computes the expected even split for total tickets over
// the pool: base = total/N for everyone, with the remainder spread over
// the first total%N agents in pool order. By construction this equals
// the actual bucket sizes Allocate produces.
func distribution(total int, agentIDs []int64) []triage.AgentCount {
	base := total / len(agentIDs)
	rem := total % len(agentIDs)

	out := make([]triage.AgentCount, len(agentIDs))
	for i, aid := range agentIDs {
		count := base
		if i < rem {
			count++
		}
		out[i] = triage.AgentCount{AgentID: aid, Count: count}
	}
	return out
}
