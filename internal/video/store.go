// Package video persists the triage queue: candidate records imported
// from the CSV archives, routed between tabs as operators review them.
package video

import (
	"time"

	"github.com/videodesk-io/videodesk/pkg/triage"
)

// Store is the persistence interface for video records.
type Store interface {
	// Upsert inserts a record or refreshes its archive-sourced fields.
	// An existing record keeps its tab and routing state.
	Upsert(v *triage.Video) error
	// Get retrieves a record by video id.
	Get(id string) (*triage.Video, error)
	// List returns records matching the filter, newest first.
	List(filter Filter) ([]*triage.Video, error)
	// Count returns the number of records matching the filter.
	Count(filter Filter) (int, error)
	// Route moves a record to the given tab.
	Route(id string, tab triage.Tab) error
	// MarkTicketed routes a record to the ticketed tab and records the
	// support ticket opened for it.
	MarkTicketed(id string, ticketID int64) error
	// Close releases the underlying database.
	Close() error
}

// Filter constrains record list queries.
type Filter struct {
	Tab     triage.Tab // empty = all tabs
	Channel string     // exact match
	Source  string     // exact match
	Query   string     // text search on title and channel
	Since   time.Time  // zero = unbounded; records added at or after
	Until   time.Time  // zero = unbounded; records added before
	Limit   int        // 0 = no limit
	Offset  int
}
