package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/0xmhha/hikelog/pkg/hike"
	"github.com/0xmhha/hikelog/pkg/logger"

	_ "modernc.org/sqlite"
)

// sqliteStore implements Store on SQLite. Entities are stored as JSON
// payloads next to the columns used for filtering and ordering.
type sqliteStore struct {
	db     *sql.DB
	logger logger.Logger
}

// NewSQLite creates a SQLite-backed store.
func NewSQLite(cfg Config, log logger.Logger) (Store, error) {
	dbPath := expandHome(cfg.DBPath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &sqliteStore{db: db, logger: log}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug("sqlite store opened", "db_path", dbPath)
	return s, nil
}

func (s *sqliteStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  status TEXT NOT NULL,
  started_at TEXT NOT NULL,
  payload TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS recordings (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  sort_order INTEGER NOT NULL,
  payload TEXT NOT NULL,
  audio BLOB
);
CREATE INDEX IF NOT EXISTS recordings_session ON recordings(session_id);
CREATE TABLE IF NOT EXISTS photos (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  sort_order INTEGER NOT NULL,
  payload TEXT NOT NULL,
  data BLOB
);
CREATE INDEX IF NOT EXISTS photos_session ON photos(session_id);
CREATE TABLE IF NOT EXISTS state (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *sqliteStore) exists(ctx context.Context, table, id string) (bool, error) {
	var n int
	// table is always one of the package constants above.
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+table+` WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", table, err)
	}
	return n > 0, nil
}

// InsertSession implements Store.InsertSession.
func (s *sqliteStore) InsertSession(ctx context.Context, sess *hike.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidEntity
	}
	found, err := s.exists(ctx, "sessions", sess.ID)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: session %s", ErrDuplicateID, sess.ID)
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	const stmt = `INSERT INTO sessions (id, status, started_at, payload) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, stmt,
		sess.ID, string(sess.Status), sess.StartedAt.UTC().Format(timeLayout), string(payload),
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// SaveSession implements Store.SaveSession.
func (s *sqliteStore) SaveSession(ctx context.Context, sess *hike.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidEntity
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	const stmt = `UPDATE sessions SET status = ?, started_at = ?, payload = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, stmt,
		string(sess.Status), sess.StartedAt.UTC().Format(timeLayout), string(payload), sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireRow(res, hike.ErrSessionNotFound)
}

// GetSession implements Store.GetSession.
func (s *sqliteStore) GetSession(ctx context.Context, id string) (*hike.Session, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM sessions WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, hike.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess hike.Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// ListSessions implements Store.ListSessions.
func (s *sqliteStore) ListSessions(ctx context.Context, q Query) ([]*hike.Session, error) {
	query := `SELECT id, payload FROM sessions`
	var args []any
	if q.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(q.Status))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*hike.Session
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		var sess hike.Session
		if err := json.Unmarshal([]byte(payload), &sess); err != nil {
			s.logger.Warn("failed to unmarshal session", "id", id, "error", err)
			continue
		}
		if q.Match(&sess) {
			sessions = append(sessions, &sess)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return q.apply(sessions), nil
}

// DeleteSession implements Store.DeleteSession.
func (s *sqliteStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// InsertRecording implements Store.InsertRecording.
func (s *sqliteStore) InsertRecording(ctx context.Context, r *hike.Recording, audio []byte) error {
	if r == nil || r.ID == "" {
		return ErrInvalidEntity
	}
	found, err := s.exists(ctx, "recordings", r.ID)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: recording %s", ErrDuplicateID, r.ID)
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal recording: %w", err)
	}
	const stmt = `INSERT INTO recordings (id, session_id, sort_order, payload, audio) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, stmt, r.ID, r.SessionID, r.SortOrder, string(payload), audio); err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

// SaveRecording implements Store.SaveRecording.
func (s *sqliteStore) SaveRecording(ctx context.Context, r *hike.Recording) error {
	if r == nil || r.ID == "" {
		return ErrInvalidEntity
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal recording: %w", err)
	}
	const stmt = `UPDATE recordings SET session_id = ?, sort_order = ?, payload = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, stmt, r.SessionID, r.SortOrder, string(payload), r.ID)
	if err != nil {
		return fmt.Errorf("update recording: %w", err)
	}
	return requireRow(res, hike.ErrRecordingNotFound)
}

// GetRecording implements Store.GetRecording.
func (s *sqliteStore) GetRecording(ctx context.Context, id string) (*hike.Recording, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM recordings WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, hike.ErrRecordingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}

	var rec hike.Recording
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal recording: %w", err)
	}
	return &rec, nil
}

// ListRecordings implements Store.ListRecordings.
func (s *sqliteStore) ListRecordings(ctx context.Context, sessionID string) ([]*hike.Recording, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload FROM recordings WHERE session_id = ? ORDER BY sort_order`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var recs []*hike.Recording
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		var rec hike.Recording
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			s.logger.Warn("failed to unmarshal recording", "id", id, "error", err)
			continue
		}
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}

	sortRecordings(recs)
	return recs, nil
}

// RecordingAudio implements Store.RecordingAudio.
func (s *sqliteStore) RecordingAudio(ctx context.Context, id string) ([]byte, error) {
	return s.blob(ctx, `SELECT audio FROM recordings WHERE id = ?`, id, hike.ErrRecordingNotFound)
}

// DeleteRecording implements Store.DeleteRecording.
func (s *sqliteStore) DeleteRecording(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	return nil
}

// InsertPhoto implements Store.InsertPhoto.
func (s *sqliteStore) InsertPhoto(ctx context.Context, p *hike.Photo, data []byte) error {
	if p == nil || p.ID == "" {
		return ErrInvalidEntity
	}
	found, err := s.exists(ctx, "photos", p.ID)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: photo %s", ErrDuplicateID, p.ID)
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal photo: %w", err)
	}
	const stmt = `INSERT INTO photos (id, session_id, sort_order, payload, data) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, stmt, p.ID, p.SessionID, p.SortOrder, string(payload), data); err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}
	return nil
}

// SavePhoto implements Store.SavePhoto.
func (s *sqliteStore) SavePhoto(ctx context.Context, p *hike.Photo) error {
	if p == nil || p.ID == "" {
		return ErrInvalidEntity
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal photo: %w", err)
	}
	const stmt = `UPDATE photos SET session_id = ?, sort_order = ?, payload = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, stmt, p.SessionID, p.SortOrder, string(payload), p.ID)
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}
	return requireRow(res, hike.ErrPhotoNotFound)
}

// GetPhoto implements Store.GetPhoto.
func (s *sqliteStore) GetPhoto(ctx context.Context, id string) (*hike.Photo, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM photos WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, hike.ErrPhotoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}

	var p hike.Photo
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("unmarshal photo: %w", err)
	}
	return &p, nil
}

// ListPhotos implements Store.ListPhotos.
func (s *sqliteStore) ListPhotos(ctx context.Context, sessionID string) ([]*hike.Photo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload FROM photos WHERE session_id = ? ORDER BY sort_order`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var photos []*hike.Photo
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		var p hike.Photo
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			s.logger.Warn("failed to unmarshal photo", "id", id, "error", err)
			continue
		}
		photos = append(photos, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}

	sortPhotos(photos)
	return photos, nil
}

// PhotoData implements Store.PhotoData.
func (s *sqliteStore) PhotoData(ctx context.Context, id string) ([]byte, error) {
	return s.blob(ctx, `SELECT data FROM photos WHERE id = ?`, id, hike.ErrPhotoNotFound)
}

// DeletePhoto implements Store.DeletePhoto.
func (s *sqliteStore) DeletePhoto(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}

// ActiveSessionID implements Store.ActiveSessionID.
func (s *sqliteStore) ActiveSessionID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, activeSessionKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get active session: %w", err)
	}
	return id, nil
}

// SetActiveSessionID implements Store.SetActiveSessionID.
func (s *sqliteStore) SetActiveSessionID(ctx context.Context, id string) error {
	if id == "" {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM state WHERE key = ?`, activeSessionKey); err != nil {
			return fmt.Errorf("clear active session: %w", err)
		}
		return nil
	}

	const stmt = `
INSERT INTO state (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value;
`
	if _, err := s.db.ExecContext(ctx, stmt, activeSessionKey, id); err != nil {
		return fmt.Errorf("set active session: %w", err)
	}
	return nil
}

// Close implements Store.Close.
func (s *sqliteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

func (s *sqliteStore) blob(ctx context.Context, query, id string, notFound error) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

const (
	activeSessionKey = "active_session_id"
	timeLayout       = "2006-01-02T15:04:05.000000000Z07:00"
)
