package assign

import (
	"errors"
	"testing"
)

func TestAllocateConcrete(t *testing.T) {
	buckets, err := Allocate([]int64{10, 11, 12, 13, 14}, []int64{1, 2})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	want1 := []int64{10, 12, 14}
	want2 := []int64{11, 13}
	if !equalInt64(buckets[1], want1) {
		t.Errorf("agent 1 bucket = %v, want %v", buckets[1], want1)
	}
	if !equalInt64(buckets[2], want2) {
		t.Errorf("agent 2 bucket = %v, want %v", buckets[2], want2)
	}
}

func TestAllocateEvenSplit(t *testing.T) {
	for _, total := range []int{0, 1, 2, 5, 7, 99, 100, 101, 250} {
		for _, n := range []int{1, 2, 3, 5, 8} {
			ticketIDs := seq(1000, total)
			agentIDs := seq(1, n)

			buckets, err := Allocate(ticketIDs, agentIDs)
			if err != nil {
				t.Fatalf("Allocate(%d tickets, %d agents): %v", total, n, err)
			}

			sum, minSize, maxSize := 0, total+1, -1
			seen := make(map[int64]bool)
			for _, aid := range agentIDs {
				size := len(buckets[aid])
				sum += size
				if size < minSize {
					minSize = size
				}
				if size > maxSize {
					maxSize = size
				}
				for _, tid := range buckets[aid] {
					if seen[tid] {
						t.Fatalf("ticket %d assigned twice (T=%d N=%d)", tid, total, n)
					}
					seen[tid] = true
				}
			}
			if sum != total {
				t.Errorf("bucket sizes sum to %d, want %d (N=%d)", sum, total, n)
			}
			if maxSize-minSize > 1 {
				t.Errorf("bucket sizes differ by %d (T=%d N=%d)", maxSize-minSize, total, n)
			}
		}
	}
}

func TestAllocateDeterministic(t *testing.T) {
	ticketIDs := []int64{5, 3, 9, 1, 7} // unsorted on purpose
	agentIDs := []int64{20, 10}

	a, _ := Allocate(ticketIDs, agentIDs)
	b, _ := Allocate(ticketIDs, agentIDs)
	for _, aid := range agentIDs {
		if !equalInt64(a[aid], b[aid]) {
			t.Errorf("allocation not deterministic for agent %d: %v vs %v", aid, a[aid], b[aid])
		}
	}
	if !equalInt64(a[20], []int64{5, 9, 7}) {
		t.Errorf("agent 20 bucket = %v (fetch order must be preserved)", a[20])
	}
}

func TestAllocateEmptyTickets(t *testing.T) {
	buckets, err := Allocate(nil, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	for aid, b := range buckets {
		if len(b) != 0 {
			t.Errorf("agent %d bucket = %v, want empty", aid, b)
		}
	}
}

func TestAllocateNoAgents(t *testing.T) {
	_, err := Allocate([]int64{1, 2, 3}, nil)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestChunkIDs(t *testing.T) {
	tests := []struct {
		length, size int
		wantChunks   int
		wantLast     int
	}{
		{0, 100, 0, 0},
		{1, 100, 1, 1},
		{100, 100, 1, 100},
		{101, 100, 2, 1},
		{250, 100, 3, 50},
		{9, 3, 3, 3},
	}
	for _, tt := range tests {
		chunks, err := chunkIDs(seq(1, tt.length), tt.size)
		if err != nil {
			t.Fatalf("chunkIDs(%d, %d): %v", tt.length, tt.size, err)
		}
		if len(chunks) != tt.wantChunks {
			t.Errorf("chunkIDs(%d, %d) = %d chunks, want %d", tt.length, tt.size, len(chunks), tt.wantChunks)
			continue
		}
		for i, c := range chunks {
			want := tt.size
			if i == len(chunks)-1 {
				want = tt.wantLast
			}
			if len(c) != want {
				t.Errorf("chunk %d of (%d, %d) has %d elements, want %d", i, tt.length, tt.size, len(c), want)
			}
		}
	}
}

func TestChunkIDsInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := chunkIDs([]int64{1, 2}, size)
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("chunkIDs(size=%d): expected ConfigError, got %v", size, err)
		}
	}
}

func TestChunkIDsDoesNotCopy(t *testing.T) {
	ids := seq(1, 10)
	chunks, err := chunkIDs(ids, 4)
	if err != nil {
		t.Fatalf("chunkIDs: %v", err)
	}
	if &chunks[0][0] != &ids[0] {
		t.Error("chunks should alias the input slice")
	}
	if !equalInt64(ids, seq(1, 10)) {
		t.Error("input slice was mutated")
	}
}

func TestDistributionMatchesBuckets(t *testing.T) {
	for total := 0; total <= 25; total++ {
		for n := 1; n <= 6; n++ {
			agentIDs := seq(100, n)
			buckets, err := Allocate(seq(1, total), agentIDs)
			if err != nil {
				t.Fatalf("Allocate: %v", err)
			}

			dist := distribution(total, agentIDs)
			sum := 0
			for i, d := range dist {
				sum += d.Count
				if got := len(buckets[d.AgentID]); got != d.Count {
					t.Errorf("T=%d N=%d: expected_count[%d] = %d, actual bucket = %d", total, n, i, d.Count, got)
				}
			}
			if sum != total {
				t.Errorf("T=%d N=%d: distribution sums to %d", total, n, sum)
			}
		}
	}
}

func TestDistributionScenario(t *testing.T) {
	dist := distribution(5, []int64{1, 2})
	if len(dist) != 2 {
		t.Fatalf("dist = %v", dist)
	}
	if dist[0].AgentID != 1 || dist[0].Count != 3 {
		t.Errorf("dist[0] = %+v, want {1 3}", dist[0])
	}
	if dist[1].AgentID != 2 || dist[1].Count != 2 {
		t.Errorf("dist[1] = %+v, want {2 2}", dist[1])
	}
}

// --- helpers ---

func seq(start int64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = start + int64(i)
	}
	return out
}

func equalInt64(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
