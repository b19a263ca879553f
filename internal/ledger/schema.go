package ledger

// SchemaSQL returns the DDL statements for the ledger database.
// Statements are idempotent so opening an existing ledger is safe.
func SchemaSQL() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS files (
			id             TEXT PRIMARY KEY,
			filename       TEXT NOT NULL,
			extension      TEXT NOT NULL,
			size_bytes     INTEGER NOT NULL,
			cloud_type     TEXT,
			status         TEXT NOT NULL DEFAULT 'pending',
			sampled        INTEGER NOT NULL DEFAULT 0,
			original_count INTEGER NOT NULL DEFAULT 0,
			event_count    INTEGER NOT NULL DEFAULT 0,
			error_msg      TEXT,
			uploaded_at    INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS events (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			submission_id TEXT NOT NULL,
			ts            INTEGER NOT NULL,
			ts_inferred   INTEGER NOT NULL DEFAULT 0,
			level         TEXT NOT NULL,
			service       TEXT,
			user_identity TEXT,
			ip_address    TEXT,
			message       TEXT NOT NULL,
			raw_json      TEXT,
			cloud_type    TEXT,
			FOREIGN KEY(submission_id) REFERENCES files(id)
		)`,

		`CREATE TABLE IF NOT EXISTS index_meta (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			built_at   INTEGER NOT NULL,
			doc_count  INTEGER NOT NULL,
			vocab_size INTEGER NOT NULL,
			index_type TEXT NOT NULL DEFAULT 'tfidf'
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_events_level ON events(level)`,
		`CREATE INDEX IF NOT EXISTS idx_events_service ON events(service)`,
		`CREATE INDEX IF NOT EXISTS idx_events_submission ON events(submission_id)`,
		`CREATE INDEX IF NOT EXISTS idx_files_uploaded ON files(uploaded_at)`,
	}
}
