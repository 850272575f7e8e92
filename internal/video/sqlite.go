package video

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/videodesk-io/videodesk/pkg/triage"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("video store: open: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("video store: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS videos (
			id        TEXT PRIMARY KEY,
			title     TEXT NOT NULL DEFAULT '',
			channel   TEXT NOT NULL DEFAULT '',
			link      TEXT NOT NULL DEFAULT '',
			published TEXT NOT NULL DEFAULT '',
			source    TEXT NOT NULL DEFAULT '',
			tab       TEXT NOT NULL DEFAULT 'queue',
			ticket_id INTEGER NOT NULL DEFAULT 0,
			added_at  TEXT NOT NULL,
			routed_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_videos_tab ON videos(tab);
		CREATE INDEX IF NOT EXISTS idx_videos_channel ON videos(channel);
	`)
	if err != nil {
		return fmt.Errorf("video store: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Upsert(v *triage.Video) error {
	tab := v.Tab
	if tab == "" {
		tab = triage.TabQueue
	}
	addedAt := v.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}

	// Re-imports refresh archive fields only; tab, ticket_id, and
	// routed_at belong to the operator.
	_, err := s.db.Exec(`
		INSERT INTO videos (id, title, channel, link, published, source, tab, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, channel=excluded.channel, link=excluded.link,
			published=excluded.published, source=excluded.source
	`, v.ID, v.Title, v.Channel, v.Link, v.Published, v.Source, string(tab),
		addedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("video store: upsert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(id string) (*triage.Video, error) {
	row := s.db.QueryRow(`SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	v, err := scanVideo(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("video %q not found", id)
		}
		return nil, fmt.Errorf("video store: get: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) List(filter Filter) ([]*triage.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE 1=1`
	query, args := applyFilter(query, filter)
	query += " ORDER BY added_at DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("video store: list: %w", err)
	}
	defer rows.Close()

	var videos []*triage.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("video store: list scan: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (s *SQLiteStore) Count(filter Filter) (int, error) {
	query, args := applyFilter(`SELECT COUNT(*) FROM videos WHERE 1=1`, filter)

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("video store: count: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Route(id string, tab triage.Tab) error {
	if !tab.Valid() {
		return fmt.Errorf("video store: unknown tab %q", tab)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.Exec(`UPDATE videos SET tab = ?, routed_at = ? WHERE id = ?`,
		string(tab), now, id)
	if err != nil {
		return fmt.Errorf("video store: route: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("video %q not found", id)
	}
	return nil
}

func (s *SQLiteStore) MarkTicketed(id string, ticketID int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.Exec(`UPDATE videos SET tab = 'ticketed', ticket_id = ?, routed_at = ? WHERE id = ?`,
		ticketID, now, id)
	if err != nil {
		return fmt.Errorf("video store: mark ticketed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("video %q not found", id)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection (for testing).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// --- helpers ---

const videoColumns = `id, title, channel, link, published, source, tab, ticket_id, added_at, routed_at`

func applyFilter(query string, filter Filter) (string, []any) {
	var args []any
	if filter.Tab != "" {
		query += " AND tab = ?"
		args = append(args, string(filter.Tab))
	}
	if filter.Channel != "" {
		query += " AND channel = ?"
		args = append(args, filter.Channel)
	}
	if filter.Source != "" {
		query += " AND source = ?"
		args = append(args, filter.Source)
	}
	if filter.Query != "" {
		query += " AND (title LIKE ? OR channel LIKE ?)"
		pattern := fmt.Sprintf("%%%s%%", filter.Query)
		args = append(args, pattern, pattern)
	}
	if !filter.Since.IsZero() {
		query += " AND added_at >= ?"
		args = append(args, filter.Since.UTC().Format(time.RFC3339))
	}
	if !filter.Until.IsZero() {
		query += " AND added_at < ?"
		args = append(args, filter.Until.UTC().Format(time.RFC3339))
	}
	return query, args
}

type scannable interface {
	Scan(dest ...any) error
}

func scanVideo(row scannable) (*triage.Video, error) {
	var v triage.Video
	var tab, addedAt string
	var routedAt sql.NullString

	err := row.Scan(&v.ID, &v.Title, &v.Channel, &v.Link, &v.Published, &v.Source,
		&tab, &v.TicketID, &addedAt, &routedAt)
	if err != nil {
		return nil, err
	}

	v.Tab = triage.Tab(tab)
	if t, err := time.Parse(time.RFC3339, addedAt); err == nil {
		v.AddedAt = t
	}
	if routedAt.Valid {
		if t, err := time.Parse(time.RFC3339, routedAt.String); err == nil {
			v.RoutedAt = &t
		}
	}
	return &v, nil
}
