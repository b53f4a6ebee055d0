// Package journal persists finished diary entries and the per-event route
// log to SQLite.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pawdiary/pawdiary/internal/format"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id TEXT UNIQUE NOT NULL,
	subject_id INTEGER NOT NULL,
	timestamp DATETIME NOT NULL,
	category TEXT NOT NULL,
	name TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	emotion_tags TEXT DEFAULT '[]',
	handler_id TEXT DEFAULT '',
	provider_name TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_entries_subject ON entries(subject_id);
CREATE INDEX IF NOT EXISTS idx_entries_category ON entries(category);
CREATE INDEX IF NOT EXISTS idx_entries_timestamp ON entries(timestamp);

CREATE TABLE IF NOT EXISTS route_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT NOT NULL,
	category TEXT DEFAULT '',
	status TEXT NOT NULL,
	reason TEXT DEFAULT '',
	detail TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_route_log_status ON route_log(status);
CREATE INDEX IF NOT EXISTS idx_route_log_created ON route_log(created_at);
`

// Store is the SQLite-backed diary journal.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at the given path.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB returns the underlying *sql.DB for shared access.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveEntry persists a finished entry. The entry id is unique; saving the
// same entry twice is an error.
func (s *Store) SaveEntry(e *format.Entry) error {
	tags, err := json.Marshal(e.EmotionTags)
	if err != nil {
		tags = []byte("[]")
	}
	_, err = s.db.Exec(`
		INSERT INTO entries (entry_id, subject_id, timestamp, category, name, title, content, emotion_tags, handler_id, provider_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EntryID, e.SubjectID, e.Timestamp, e.Category, e.Name,
		e.Title, e.Content, string(tags), e.HandlerID, e.ProviderName,
	)
	if err != nil {
		return fmt.Errorf("save entry %s: %w", e.EntryID, err)
	}
	return nil
}

// FilterArgs narrows entry queries.
type FilterArgs struct {
	SubjectID int64
	Category  string
	Since     *time.Time
	Until     *time.Time
	Limit     int
	Offset    int
}

// ListEntries returns entries matching the filter, newest first.
func (s *Store) ListEntries(filter FilterArgs) ([]format.Entry, error) {
	query := `SELECT entry_id, subject_id, timestamp, category, name, title, content,
		COALESCE(emotion_tags,'[]'), COALESCE(handler_id,''), COALESCE(provider_name,'')
		FROM entries WHERE 1=1`
	args := []any{}

	if filter.SubjectID != 0 {
		query += " AND subject_id = ?"
		args = append(args, filter.SubjectID)
	}
	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	if filter.Since != nil {
		query += " AND timestamp >= ?"
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		query += " AND timestamp <= ?"
		args = append(args, *filter.Until)
	}

	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []format.Entry
	for rows.Next() {
		var e format.Entry
		var tags string
		if err := rows.Scan(&e.EntryID, &e.SubjectID, &e.Timestamp, &e.Category, &e.Name,
			&e.Title, &e.Content, &tags, &e.HandlerID, &e.ProviderName); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tags), &e.EmotionTags)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountForDay returns the number of entries stored for one calendar day.
func (s *Store) CountForDay(day string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM entries WHERE date(timestamp) = ?`, day).Scan(&n)
	return n, err
}

// RouteRecord is one row of the route log.
type RouteRecord struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"eventId"`
	Category  string    `json:"category"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// LogRoute records the outcome of one routed event, generated or not.
func (s *Store) LogRoute(eventID, category, status, reason, detail string) error {
	_, err := s.db.Exec(`
		INSERT INTO route_log (event_id, category, status, reason, detail)
		VALUES (?, ?, ?, ?, ?)`,
		eventID, category, status, reason, detail)
	return err
}

// RecentRoutes returns the latest route log rows, newest first.
func (s *Store) RecentRoutes(limit int) ([]RouteRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT id, event_id, COALESCE(category,''), status,
		COALESCE(reason,''), COALESCE(detail,''), created_at
		FROM route_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RouteRecord
	for rows.Next() {
		var r RouteRecord
		if err := rows.Scan(&r.ID, &r.EventID, &r.Category, &r.Status, &r.Reason, &r.Detail, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
