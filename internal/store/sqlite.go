package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailsync/internal/model"
)

// SQLiteStore is a Backend keeping records in a local SQLite database.
// Record order is kept in the position column.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// messageRow is the database shape of a model.Message.
type messageRow struct {
	ID         string         `db:"id"`
	Position   int            `db:"position"`
	ThreadID   string         `db:"thread_id"`
	Sender     string         `db:"sender"`
	Subject    string         `db:"subject"`
	Preview    string         `db:"preview"`
	ReceivedAt string         `db:"received_at"`
	Unread     bool           `db:"unread"`
	Starred    bool           `db:"starred"`
	Labels     string         `db:"labels"`
	Body       string         `db:"body"`
	Snippet    string         `db:"snippet"`
	Replies    string         `db:"replies"`
	IsNew      bool           `db:"is_new"`
	AISummary  sql.NullString `db:"ai_summary"`
	SmartReply string         `db:"smart_reply"`
}

// Load reads every record in stored order and the last sync time.
func (s *SQLiteStore) Load(ctx context.Context) (Snapshot, error) {
	var rows []messageRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, position, thread_id, sender, subject, preview, received_at,
			unread, starred, labels, body, snippet, replies, is_new, ai_summary,
			smart_reply
		FROM messages ORDER BY position`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("querying messages: %w", err)
	}

	snap := Snapshot{Emails: make([]model.Message, 0, len(rows))}
	for _, r := range rows {
		m, err := r.toMessage()
		if err != nil {
			return Snapshot{}, err
		}
		snap.Emails = append(snap.Emails, m)
	}

	var lastSync sql.NullString
	err = s.db.GetContext(ctx, &lastSync, "SELECT last_sync FROM sync_state WHERE id = 1")
	if err != nil && err != sql.ErrNoRows {
		return Snapshot{}, fmt.Errorf("reading sync state: %w", err)
	}
	if lastSync.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastSync.String)
		if err != nil {
			return Snapshot{}, fmt.Errorf("parsing last sync %q: %w", lastSync.String, err)
		}
		snap.LastSync = &t
	}
	return snap, nil
}

// Save replaces every record and the last sync time in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages"); err != nil {
		return fmt.Errorf("clearing messages: %w", err)
	}

	const query = `
		INSERT INTO messages (
			id, position, thread_id, sender, subject, preview, received_at,
			unread, starred, labels, body, snippet, replies, is_new, ai_summary,
			smart_reply
		) VALUES (
			:id, :position, :thread_id, :sender, :subject, :preview, :received_at,
			:unread, :starred, :labels, :body, :snippet, :replies, :is_new, :ai_summary,
			:smart_reply
		)`

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for i, m := range snap.Emails {
		row, err := toRow(i, m)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("inserting message %s: %w", m.ID, err)
		}
	}

	var lastSync sql.NullString
	if snap.LastSync != nil {
		lastSync = sql.NullString{String: snap.LastSync.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_state (id, last_sync) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET last_sync = excluded.last_sync`, lastSync)
	if err != nil {
		return fmt.Errorf("saving sync state: %w", err)
	}

	return tx.Commit()
}

func toRow(position int, m model.Message) (messageRow, error) {
	labels := m.Labels
	if labels == nil {
		labels = []string{}
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return messageRow{}, fmt.Errorf("marshaling labels for %s: %w", m.ID, err)
	}

	replies := m.Replies
	if replies == nil {
		replies = []model.Reply{}
	}
	repliesJSON, err := json.Marshal(replies)
	if err != nil {
		return messageRow{}, fmt.Errorf("marshaling replies for %s: %w", m.ID, err)
	}

	var summary sql.NullString
	if m.AISummary != nil {
		b, err := json.Marshal(m.AISummary)
		if err != nil {
			return messageRow{}, fmt.Errorf("marshaling ai summary for %s: %w", m.ID, err)
		}
		summary = sql.NullString{String: string(b), Valid: true}
	}

	return messageRow{
		ID:         m.ID,
		Position:   position,
		ThreadID:   m.ThreadID,
		Sender:     m.Sender,
		Subject:    m.Subject,
		Preview:    m.Preview,
		ReceivedAt: m.ReceivedAt,
		Unread:     m.Unread,
		Starred:    m.Starred,
		Labels:     string(labelsJSON),
		Body:       m.Body,
		Snippet:    m.Snippet,
		Replies:    string(repliesJSON),
		IsNew:      m.IsNew,
		AISummary:  summary,
		SmartReply: m.SmartReply,
	}, nil
}

func (r messageRow) toMessage() (model.Message, error) {
	m := model.Message{
		ID:         r.ID,
		ThreadID:   r.ThreadID,
		Sender:     r.Sender,
		Subject:    r.Subject,
		Preview:    r.Preview,
		ReceivedAt: r.ReceivedAt,
		Unread:     r.Unread,
		Starred:    r.Starred,
		Body:       r.Body,
		Snippet:    r.Snippet,
		IsNew:      r.IsNew,
		SmartReply: r.SmartReply,
	}
	if err := json.Unmarshal([]byte(r.Labels), &m.Labels); err != nil {
		return model.Message{}, fmt.Errorf("unmarshaling labels for %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Replies), &m.Replies); err != nil {
		return model.Message{}, fmt.Errorf("unmarshaling replies for %s: %w", r.ID, err)
	}
	if r.AISummary.Valid {
		m.AISummary = &model.AISummary{}
		if err := json.Unmarshal([]byte(r.AISummary.String), m.AISummary); err != nil {
			return model.Message{}, fmt.Errorf("unmarshaling ai summary for %s: %w", r.ID, err)
		}
	}
	return m, nil
}
