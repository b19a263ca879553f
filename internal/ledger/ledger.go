// Package ledger provides the durable store for file submissions and events.
// The ledger is the source of truth; the search index is derived from it and
// can be rebuilt at any time.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	lserrors "github.com/logsphere/logsphere/internal/errors"
	"github.com/logsphere/logsphere/pkg/types"
)

// StatusUpdate carries the mutable fields of a submission.
type StatusUpdate struct {
	Status        types.SubmissionStatus
	CloudType     types.CloudProvider
	Sampled       bool
	OriginalCount int64
	EventCount    int64
	ErrorMsg      string
}

// Stats summarizes ledger contents.
type Stats struct {
	TotalFiles  int64
	TotalEvents int64
	ErrorEvents int64
	TotalBytes  int64
}

// CloudUsage aggregates submission volume per provider.
type CloudUsage struct {
	Files int64
	Bytes int64
}

// IndexMeta records one index build.
type IndexMeta struct {
	BuiltAt   time.Time
	DocCount  int64
	VocabSize int64
	IndexType string
}

// Store is the persistence contract the core depends on. Failures surface as
// STORE_UNAVAILABLE errors; the core does not retry internally.
type Store interface {
	// InsertSubmission persists a new submission and returns its id.
	// A missing id is assigned.
	InsertSubmission(ctx context.Context, sub *types.FileSubmission) (string, error)

	// InsertEvents persists a batch of events for a submission and returns
	// the assigned event ids in input order.
	InsertEvents(ctx context.Context, submissionID string, events []*types.Event) ([]int64, error)

	// UpdateSubmissionStatus applies the mutable submission fields.
	UpdateSubmissionStatus(ctx context.Context, id string, upd StatusUpdate) error

	// GetSubmission retrieves one submission by id, or nil if absent.
	GetSubmission(ctx context.Context, id string) (*types.FileSubmission, error)

	// ListSubmissions returns all submissions, most recent first.
	ListSubmissions(ctx context.Context) ([]*types.FileSubmission, error)

	// QueryEvents returns events matching the filter, most recent first.
	QueryEvents(ctx context.Context, filter types.EventFilter) ([]*types.Event, error)

	// ForEachEvent streams every event (oldest first) through fn, stopping
	// on the first error. Used by index rebuilds to avoid buffering the
	// full event set.
	ForEachEvent(ctx context.Context, fn func(*types.Event) error) error

	// Stats returns aggregate counters.
	Stats(ctx context.Context) (*Stats, error)

	// CloudVolume returns per-provider file counts and byte volume.
	CloudVolume(ctx context.Context) (map[types.CloudProvider]CloudUsage, error)

	// RecordIndexBuild appends index build metadata.
	RecordIndexBuild(ctx context.Context, docCount, vocabSize int64) error

	// LatestIndexMeta returns the most recent index build, or nil.
	LatestIndexMeta(ctx context.Context) (*IndexMeta, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool (concurrent readers)
	dbPath string
	mu     sync.Mutex // Write-only lock (reads don't need this)

	insertEventStmt *sql.Stmt
}

// Open creates or opens a SQLite-backed ledger at dbPath.
func Open(dbPath string) (*SQLiteStore, error) {
	// Write connection: single writer with WAL mode
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Read connection pool for concurrent readers
	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLiteStore{
		db:     db,
		readDB: readDB,
		dbPath: dbPath,
	}

	if err := s.initSchema(); err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("ledger: failed to initialize schema: %w", err)
	}

	stmt, err := db.Prepare(`
		INSERT INTO events (
			submission_id, ts, ts_inferred, level, service,
			user_identity, ip_address, message, raw_json, cloud_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("ledger: failed to prepare insert statement: %w", err)
	}
	s.insertEventStmt = stmt

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range SchemaSQL() {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// InsertSubmission persists a new submission record.
func (s *SQLiteStore) InsertSubmission(ctx context.Context, sub *types.FileSubmission) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.UploadedAt.IsZero() {
		sub.UploadedAt = time.Now().UTC()
	}
	if sub.Status == "" {
		sub.Status = types.StatusPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (
			id, filename, extension, size_bytes, cloud_type, status,
			sampled, original_count, event_count, error_msg, uploaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Filename, sub.Extension, sub.SizeBytes,
		nullString(string(sub.CloudType)), string(sub.Status),
		boolInt(sub.Sampled), sub.OriginalCount, sub.EventCount,
		nullString(sub.ErrorMsg), sub.UploadedAt.UnixNano())
	if err != nil {
		return "", lserrors.NewStoreError("insert submission", err)
	}
	return sub.ID, nil
}

// InsertEvents persists a batch of events in a single transaction.
func (s *SQLiteStore) InsertEvents(ctx context.Context, submissionID string, events []*types.Event) ([]int64, error) {
	if len(events) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, lserrors.NewStoreError("begin event batch", err)
	}
	defer tx.Rollback()

	stmt := tx.StmtContext(ctx, s.insertEventStmt)
	ids := make([]int64, 0, len(events))
	for _, e := range events {
		var rawJSON interface{}
		if e.Raw != nil {
			b, err := json.Marshal(e.Raw)
			if err != nil {
				return nil, lserrors.NewStoreError("marshal raw fields", err)
			}
			rawJSON = string(b)
		}

		res, err := stmt.ExecContext(ctx,
			submissionID, e.Timestamp.UnixNano(), boolInt(e.TimestampInferred),
			string(e.Level), nullString(e.Service), nullString(e.User),
			nullString(e.IP), e.Message, rawJSON, nullString(string(e.CloudType)))
		if err != nil {
			return nil, lserrors.NewStoreError("insert event", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, lserrors.NewStoreError("event id", err)
		}
		e.ID = id
		e.SubmissionID = submissionID
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, lserrors.NewStoreError("commit event batch", err)
	}
	return ids, nil
}

// UpdateSubmissionStatus applies the mutable fields of a submission.
func (s *SQLiteStore) UpdateSubmissionStatus(ctx context.Context, id string, upd StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE files SET status = ?, cloud_type = ?, sampled = ?,
			original_count = ?, event_count = ?, error_msg = ?
		WHERE id = ?`,
		string(upd.Status), nullString(string(upd.CloudType)), boolInt(upd.Sampled),
		upd.OriginalCount, upd.EventCount, nullString(upd.ErrorMsg), id)
	if err != nil {
		return lserrors.NewStoreError("update submission", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return lserrors.NewStoreError("update submission", err)
	}
	if n == 0 {
		return lserrors.NewStoreError("update submission", fmt.Errorf("submission %s not found", id))
	}
	return nil
}

// GetSubmission retrieves one submission by id.
func (s *SQLiteStore) GetSubmission(ctx context.Context, id string) (*types.FileSubmission, error) {
	row := s.readDB.QueryRowContext(ctx, `
		SELECT id, filename, extension, size_bytes, cloud_type, status,
			sampled, original_count, event_count, error_msg, uploaded_at
		FROM files WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, lserrors.NewStoreError("get submission", err)
	}
	return sub, nil
}

// ListSubmissions returns all submissions, most recent first.
func (s *SQLiteStore) ListSubmissions(ctx context.Context) ([]*types.FileSubmission, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, filename, extension, size_bytes, cloud_type, status,
			sampled, original_count, event_count, error_msg, uploaded_at
		FROM files ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, lserrors.NewStoreError("list submissions", err)
	}
	defer rows.Close()

	var subs []*types.FileSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, lserrors.NewStoreError("scan submission", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, lserrors.NewStoreError("list submissions", err)
	}
	return subs, nil
}

// QueryEvents returns events matching the filter, most recent first.
func (s *SQLiteStore) QueryEvents(ctx context.Context, filter types.EventFilter) ([]*types.Event, error) {
	query := `SELECT id, submission_id, ts, ts_inferred, level, service,
		user_identity, ip_address, message, raw_json, cloud_type FROM events WHERE 1=1`
	var args []interface{}

	if filter.Level != "" {
		query += " AND level = ?"
		args = append(args, string(filter.Level))
	}
	if filter.Service != "" {
		query += " AND service LIKE ? COLLATE NOCASE"
		args = append(args, "%"+filter.Service+"%")
	}
	if filter.SubmissionID != "" {
		query += " AND submission_id = ?"
		args = append(args, filter.SubmissionID)
	}
	if !filter.From.IsZero() {
		query += " AND ts >= ?"
		args = append(args, filter.From.UnixNano())
	}
	if !filter.To.IsZero() {
		query += " AND ts <= ?"
		args = append(args, filter.To.UnixNano())
	}

	query += " ORDER BY ts DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, lserrors.NewStoreError("query events", err)
	}
	defer rows.Close()

	var events []*types.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, lserrors.NewStoreError("scan event", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, lserrors.NewStoreError("query events", err)
	}
	return events, nil
}

// ForEachEvent streams all events oldest-first through fn.
func (s *SQLiteStore) ForEachEvent(ctx context.Context, fn func(*types.Event) error) error {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, submission_id, ts, ts_inferred, level, service,
			user_identity, ip_address, message, raw_json, cloud_type
		FROM events ORDER BY id ASC`)
	if err != nil {
		return lserrors.NewStoreError("scan events", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return lserrors.NewStoreError("scan event", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return lserrors.NewStoreError("scan events", err)
	}
	return nil
}

// Stats returns aggregate counters over files and events.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	row := s.readDB.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM files),
			(SELECT COUNT(*) FROM events),
			(SELECT COUNT(*) FROM events WHERE level = ?),
			(SELECT COALESCE(SUM(size_bytes), 0) FROM files)`,
		string(types.LevelError))
	if err := row.Scan(&stats.TotalFiles, &stats.TotalEvents, &stats.ErrorEvents, &stats.TotalBytes); err != nil {
		return nil, lserrors.NewStoreError("stats", err)
	}
	return stats, nil
}

// CloudVolume returns per-provider file counts and byte volume. Submissions
// with no detected provider count as "other".
func (s *SQLiteStore) CloudVolume(ctx context.Context) (map[types.CloudProvider]CloudUsage, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT COALESCE(cloud_type, 'other'), COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM files GROUP BY COALESCE(cloud_type, 'other')`)
	if err != nil {
		return nil, lserrors.NewStoreError("cloud volume", err)
	}
	defer rows.Close()

	usage := make(map[types.CloudProvider]CloudUsage)
	for rows.Next() {
		var provider string
		var u CloudUsage
		if err := rows.Scan(&provider, &u.Files, &u.Bytes); err != nil {
			return nil, lserrors.NewStoreError("cloud volume", err)
		}
		p := types.CloudProvider(provider)
		switch p {
		case types.CloudAWS, types.CloudAzure, types.CloudGCP:
		default:
			p = types.CloudOther
		}
		prev := usage[p]
		prev.Files += u.Files
		prev.Bytes += u.Bytes
		usage[p] = prev
	}
	if err := rows.Err(); err != nil {
		return nil, lserrors.NewStoreError("cloud volume", err)
	}
	return usage, nil
}

// RecordIndexBuild appends index build metadata.
func (s *SQLiteStore) RecordIndexBuild(ctx context.Context, docCount, vocabSize int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_meta (built_at, doc_count, vocab_size, index_type)
		VALUES (?, ?, ?, 'tfidf')`,
		time.Now().UTC().UnixNano(), docCount, vocabSize)
	if err != nil {
		return lserrors.NewStoreError("record index build", err)
	}
	return nil
}

// LatestIndexMeta returns the most recent index build record, or nil when the
// index has never been built.
func (s *SQLiteStore) LatestIndexMeta(ctx context.Context) (*IndexMeta, error) {
	row := s.readDB.QueryRowContext(ctx, `
		SELECT built_at, doc_count, vocab_size, index_type
		FROM index_meta ORDER BY built_at DESC LIMIT 1`)

	var builtAt int64
	meta := &IndexMeta{}
	err := row.Scan(&builtAt, &meta.DocCount, &meta.VocabSize, &meta.IndexType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, lserrors.NewStoreError("latest index meta", err)
	}
	meta.BuiltAt = time.Unix(0, builtAt)
	return meta, nil
}

// Close closes both database connections.
func (s *SQLiteStore) Close() error {
	if s.insertEventStmt != nil {
		s.insertEventStmt.Close()
	}
	s.readDB.Close()
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (*types.FileSubmission, error) {
	var sub types.FileSubmission
	var cloudType, errorMsg sql.NullString
	var sampled int
	var uploadedAt int64

	err := row.Scan(&sub.ID, &sub.Filename, &sub.Extension, &sub.SizeBytes,
		&cloudType, (*string)(&sub.Status), &sampled, &sub.OriginalCount,
		&sub.EventCount, &errorMsg, &uploadedAt)
	if err != nil {
		return nil, err
	}

	sub.CloudType = types.CloudProvider(cloudType.String)
	sub.ErrorMsg = errorMsg.String
	sub.Sampled = sampled != 0
	sub.UploadedAt = time.Unix(0, uploadedAt)
	return &sub, nil
}

func scanEvent(row rowScanner) (*types.Event, error) {
	var e types.Event
	var ts int64
	var tsInferred int
	var service, user, ip, rawJSON, cloudType sql.NullString

	err := row.Scan(&e.ID, &e.SubmissionID, &ts, &tsInferred, (*string)(&e.Level),
		&service, &user, &ip, &e.Message, &rawJSON, &cloudType)
	if err != nil {
		return nil, err
	}

	e.Timestamp = time.Unix(0, ts)
	e.TimestampInferred = tsInferred != 0
	e.Service = service.String
	e.User = user.String
	e.IP = ip.String
	e.CloudType = types.CloudProvider(cloudType.String)
	if rawJSON.Valid && rawJSON.String != "" {
		if err := json.Unmarshal([]byte(rawJSON.String), &e.Raw); err != nil {
			return nil, fmt.Errorf("decode raw fields for event %d: %w", e.ID, err)
		}
	}
	return &e, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
