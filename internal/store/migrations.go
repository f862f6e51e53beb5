package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	position    INTEGER NOT NULL,
	thread_id   TEXT NOT NULL DEFAULT '',
	sender      TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	preview     TEXT NOT NULL DEFAULT '',
	received_at TEXT NOT NULL DEFAULT '',
	unread      INTEGER NOT NULL DEFAULT 0,
	starred     INTEGER NOT NULL DEFAULT 0,
	labels      TEXT NOT NULL DEFAULT '[]',
	body        TEXT NOT NULL DEFAULT '',
	snippet     TEXT NOT NULL DEFAULT '',
	replies     TEXT NOT NULL DEFAULT '[]',
	is_new      INTEGER NOT NULL DEFAULT 0,
	ai_summary  TEXT
);

CREATE INDEX IF NOT EXISTS idx_messages_position ON messages(position);

CREATE TABLE IF NOT EXISTS sync_state (
	id        INTEGER PRIMARY KEY CHECK (id = 1),
	last_sync TEXT
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
	{
		version: 3,
		sql: `
ALTER TABLE messages ADD COLUMN smart_reply TEXT NOT NULL DEFAULT '';

INSERT INTO schema_version (version) VALUES (3);
`,
	},
}
