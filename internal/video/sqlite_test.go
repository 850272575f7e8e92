package video

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/videodesk-io/videodesk/pkg/triage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleVideo(id string) *triage.Video {
	return &triage.Video{
		ID:        id,
		Title:     "Product demo " + id,
		Channel:   "acme",
		Link:      "https://www.youtube.com/watch?v=" + id,
		Published: "2025-06-01",
		Source:    "official",
		AddedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestUpsertAndGet(t *testing.T) {
	s := newTestStore(t)

	if err := s.Upsert(sampleVideo("abc123")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Get("abc123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Product demo abc123" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Tab != triage.TabQueue {
		t.Errorf("tab = %q, new records default to queue", got.Tab)
	}
	if got.RoutedAt != nil {
		t.Errorf("routed_at = %v, want nil", got.RoutedAt)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("nope"); err == nil {
		t.Error("expected error for missing record")
	}
}

func TestUpsertKeepsRouting(t *testing.T) {
	s := newTestStore(t)

	v := sampleVideo("abc123")
	if err := s.Upsert(v); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Route("abc123", triage.TabDownloaded); err != nil {
		t.Fatalf("route: %v", err)
	}

	// Re-import with a refreshed title must not resurrect the record
	// into the queue.
	v.Title = "Product demo abc123 (updated)"
	if err := s.Upsert(v); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := s.Get("abc123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Product demo abc123 (updated)" {
		t.Errorf("title = %q, archive fields should refresh", got.Title)
	}
	if got.Tab != triage.TabDownloaded {
		t.Errorf("tab = %q, routing state should survive re-import", got.Tab)
	}
}

func TestRoute(t *testing.T) {
	s := newTestStore(t)
	s.Upsert(sampleVideo("abc123"))

	if err := s.Route("abc123", triage.TabNotRelevant); err != nil {
		t.Fatalf("route: %v", err)
	}
	got, _ := s.Get("abc123")
	if got.Tab != triage.TabNotRelevant {
		t.Errorf("tab = %q", got.Tab)
	}
	if got.RoutedAt == nil {
		t.Error("routed_at not set")
	}
}

func TestRouteInvalidTab(t *testing.T) {
	s := newTestStore(t)
	s.Upsert(sampleVideo("abc123"))
	if err := s.Route("abc123", "spam"); err == nil {
		t.Error("expected error for unknown tab")
	}
}

func TestRouteMissing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Route("nope", triage.TabDownloaded); err == nil {
		t.Error("expected error for missing record")
	}
}

func TestMarkTicketed(t *testing.T) {
	s := newTestStore(t)
	s.Upsert(sampleVideo("abc123"))

	if err := s.MarkTicketed("abc123", 98765); err != nil {
		t.Fatalf("mark ticketed: %v", err)
	}
	got, _ := s.Get("abc123")
	if got.Tab != triage.TabTicketed {
		t.Errorf("tab = %q", got.Tab)
	}
	if got.TicketID != 98765 {
		t.Errorf("ticket_id = %d", got.TicketID)
	}
}

func TestListAndCount(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		v := sampleVideo(fmt.Sprintf("vid%03d", i))
		if i >= 3 {
			v.Channel = "other"
			v.Source = "third_party"
		}
		if err := s.Upsert(v); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	s.Route("vid000", triage.TabDownloaded)

	queue, err := s.List(Filter{Tab: triage.TabQueue})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(queue) != 4 {
		t.Errorf("queue = %d records", len(queue))
	}

	n, err := s.Count(Filter{Channel: "other"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("count(channel=other) = %d", n)
	}

	n, _ = s.Count(Filter{Source: "third_party"})
	if n != 2 {
		t.Errorf("count(source=third_party) = %d", n)
	}

	hits, err := s.List(Filter{Query: "vid002"})
	if err != nil {
		t.Fatalf("list query: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "vid002" {
		t.Errorf("query hits = %+v", hits)
	}
}

func TestListDateRange(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		v := sampleVideo(fmt.Sprintf("vid%03d", i))
		v.AddedAt = base.AddDate(0, 0, i)
		s.Upsert(v)
	}

	n, err := s.Count(Filter{Since: base.AddDate(0, 0, 2)})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 4 {
		t.Errorf("count(since day 2) = %d", n)
	}

	hits, err := s.List(Filter{Since: base.AddDate(0, 0, 1), Until: base.AddDate(0, 0, 3)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("range hits = %d", len(hits))
	}
	for _, v := range hits {
		if v.AddedAt.Before(base.AddDate(0, 0, 1)) || !v.AddedAt.Before(base.AddDate(0, 0, 3)) {
			t.Errorf("out of range: %s added %v", v.ID, v.AddedAt)
		}
	}
}

func TestListPagination(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		v := sampleVideo(fmt.Sprintf("vid%03d", i))
		v.AddedAt = base.Add(time.Duration(i) * time.Hour)
		s.Upsert(v)
	}

	page1, err := s.List(Filter{Limit: 4})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	page2, err := s.List(Filter{Limit: 4, Offset: 4})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page1) != 4 || len(page2) != 4 {
		t.Fatalf("pages = %d, %d", len(page1), len(page2))
	}
	// Newest first.
	if page1[0].ID != "vid009" {
		t.Errorf("page1[0] = %s", page1[0].ID)
	}
	if page2[0].ID != "vid005" {
		t.Errorf("page2[0] = %s", page2[0].ID)
	}
}
