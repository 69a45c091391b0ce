// Package db stores sync sessions and their pose samples in SQLite.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/headsync/internal/telemetry"
)

type DB struct {
	*sql.DB
}

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(path string) (*DB, error) {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	sqlDB, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Session is one row of sync_sessions.
type Session struct {
	ID             uuid.UUID
	ServerAddress  string
	StartedAt      time.Time
	OffsetMs       int64
	OffsetComputed bool
}

// CreateSession records a new session and returns its ID.
func (db *DB) CreateSession(serverAddress string, startedAt time.Time) (uuid.UUID, error) {
	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO sync_sessions (session_id, server_address, started_unix_ms) VALUES (?, ?, ?)`,
		id.String(), serverAddress, startedAt.UnixMilli(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// SetSessionOffset records the offset the session's samples were corrected
// by. computed is false when clock sync never completed and the samples
// carry uncorrected local time.
func (db *DB) SetSessionOffset(id uuid.UUID, offsetMs int64, computed bool) error {
	flag := 0
	if computed {
		flag = 1
	}
	res, err := db.Exec(
		`UPDATE sync_sessions SET offset_ms = ?, offset_computed = ? WHERE session_id = ?`,
		offsetMs, flag, id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to record session offset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

// GetSession loads one session.
func (db *DB) GetSession(id uuid.UUID) (*Session, error) {
	var (
		s         Session
		rawID     string
		startedMs int64
		offset    sql.NullInt64
		computed  int
	)
	err := db.QueryRow(
		`SELECT session_id, server_address, started_unix_ms, offset_ms, offset_computed
		 FROM sync_sessions WHERE session_id = ?`, id.String(),
	).Scan(&rawID, &s.ServerAddress, &startedMs, &offset, &computed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	if s.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", rawID, err)
	}
	s.StartedAt = time.UnixMilli(startedMs)
	s.OffsetMs = offset.Int64
	s.OffsetComputed = computed != 0
	return &s, nil
}

// AppendSamples inserts samples for a session in one transaction.
func (db *DB) AppendSamples(sessionID uuid.UUID, samples []telemetry.Sample) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO pose_samples (
			session_id, timestamp_ms, pos_x, pos_y, pos_z, qua_1, qua_2, qua_3, qua_4
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	id := sessionID.String()
	for _, s := range samples {
		if _, err := stmt.Exec(id, s.CaptureTimeMs,
			s.Position.X, s.Position.Y, s.Position.Z,
			s.Orientation.X, s.Orientation.Y, s.Orientation.Z, s.Orientation.W,
		); err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}
	return tx.Commit()
}

// Samples returns a session's samples in insertion order.
func (db *DB) Samples(sessionID uuid.UUID) ([]telemetry.Sample, error) {
	rows, err := db.Query(`SELECT timestamp_ms, pos_x, pos_y, pos_z, qua_1, qua_2, qua_3, qua_4
		FROM pose_samples WHERE session_id = ? ORDER BY sample_id`, sessionID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []telemetry.Sample
	for rows.Next() {
		var s telemetry.Sample
		if err := rows.Scan(&s.CaptureTimeMs,
			&s.Position.X, &s.Position.Y, &s.Position.Z,
			&s.Orientation.X, &s.Orientation.Y, &s.Orientation.Z, &s.Orientation.W,
		); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// SampleSink adapts a session's rows to the batch writer's sink interface.
// Closing it leaves the database open; the owner of DB closes that.
type SampleSink struct {
	db        *DB
	sessionID uuid.UUID
}

// Sink returns a SampleSink for sessionID.
func (db *DB) Sink(sessionID uuid.UUID) *SampleSink {
	return &SampleSink{db: db, sessionID: sessionID}
}

// AppendRows implements writer.Sink.
func (s *SampleSink) AppendRows(samples []telemetry.Sample) error {
	return s.db.AppendSamples(s.sessionID, samples)
}

// Close implements writer.Sink.
func (s *SampleSink) Close() error {
	return nil
}
