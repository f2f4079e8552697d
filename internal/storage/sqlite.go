package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"headlines/internal/model"
	"headlines/migrations"
)

var _ Storage = (*SQLite)(nil)

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: the store has a single writer, and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// LoadRecords returns the stored records in their stored order.
func (s *SQLite) LoadRecords(ctx context.Context) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, headline, source, timestamp_ms, url, summary, sentiment_score, tickers,
		        kind, origin_adapter, category
		 FROM records ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// LoadMetadata returns the stored metadata keyed by source type.
func (s *SQLite) LoadMetadata(ctx context.Context) (map[model.SourceType]model.SourceMetadata, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_type, last_refresh_at, refresh_interval_minutes, recent_errors, total_fetch_count
		 FROM source_metadata`,
	)
	if err != nil {
		return nil, fmt.Errorf("query source metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	meta := make(map[model.SourceType]model.SourceMetadata)
	for rows.Next() {
		var (
			sourceType string
			errorsJSON string
			m          model.SourceMetadata
		)
		if err := rows.Scan(&sourceType, &m.LastRefreshAt, &m.RefreshIntervalMinutes, &errorsJSON, &m.TotalFetchCount); err != nil {
			return nil, fmt.Errorf("scan source metadata: %w", err)
		}
		if err := json.Unmarshal([]byte(errorsJSON), &m.RecentErrors); err != nil {
			return nil, fmt.Errorf("decode recent errors of %s: %w", sourceType, err)
		}
		if len(m.RecentErrors) == 0 {
			m.RecentErrors = nil
		}
		meta[model.SourceType(sourceType)] = m
	}
	return meta, rows.Err()
}

// SaveState replaces all records and upserts the metadata of every source
// type in state.
func (s *SQLite) SaveState(ctx context.Context, state model.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (id, position, headline, source, timestamp_ms, url, summary,
		                      sentiment_score, tickers, kind, origin_adapter, category)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert record: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range state.Records {
		tickers, err := marshalList(r.Tickers)
		if err != nil {
			return fmt.Errorf("encode tickers of %s: %w", r.ID, err)
		}
		var score sql.NullFloat64
		if r.SentimentScore != nil {
			score = sql.NullFloat64{Float64: *r.SentimentScore, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, i, r.Headline, r.Source, r.Timestamp, r.URL, r.Summary,
			score, tickers, string(r.Kind), string(r.OriginAdapter), string(r.Category),
		); err != nil {
			return fmt.Errorf("insert record %s: %w", r.ID, err)
		}
	}

	for t, m := range state.Metadata {
		errs, err := marshalList(m.RecentErrors)
		if err != nil {
			return fmt.Errorf("encode recent errors of %s: %w", t, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO source_metadata (source_type, last_refresh_at, refresh_interval_minutes, recent_errors, total_fetch_count)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(source_type) DO UPDATE SET
			     last_refresh_at = excluded.last_refresh_at,
			     refresh_interval_minutes = excluded.refresh_interval_minutes,
			     recent_errors = excluded.recent_errors,
			     total_fetch_count = excluded.total_fetch_count`,
			string(t), m.LastRefreshAt, m.RefreshIntervalMinutes, errs, m.TotalFetchCount,
		); err != nil {
			return fmt.Errorf("upsert source metadata %s: %w", t, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (model.Record, error) {
	var (
		r        model.Record
		score    sql.NullFloat64
		tickers  string
		kind     string
		origin   string
		category string
	)
	err := row.Scan(&r.ID, &r.Headline, &r.Source, &r.Timestamp, &r.URL, &r.Summary,
		&score, &tickers, &kind, &origin, &category)
	if err != nil {
		return model.Record{}, fmt.Errorf("scan record: %w", err)
	}
	if score.Valid {
		v := score.Float64
		r.SentimentScore = &v
	}
	if err := json.Unmarshal([]byte(tickers), &r.Tickers); err != nil {
		return model.Record{}, fmt.Errorf("decode tickers of %s: %w", r.ID, err)
	}
	if len(r.Tickers) == 0 {
		r.Tickers = nil
	}
	r.Kind = model.Kind(kind)
	r.OriginAdapter = model.SourceType(origin)
	r.Category = model.Category(category)
	return r, nil
}

func marshalList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
