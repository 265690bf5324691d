package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/hikelog/pkg/clock"
	"github.com/0xmhha/hikelog/pkg/hike"
	"github.com/0xmhha/hikelog/pkg/logger"
	"github.com/0xmhha/hikelog/pkg/session"
	"github.com/0xmhha/hikelog/pkg/store"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func setupImporter(t *testing.T) (*Importer, session.Manager, store.Store) {
	t.Helper()

	st := store.NewMemory()
	mgr, err := session.New(st, session.Config{Clock: clock.NewFake(t0)}, logger.Noop())
	require.NoError(t, err)

	im, err := NewImporter(st, mgr, nil, logger.Noop())
	require.NoError(t, err)
	return im, mgr, st
}

func upsertLine(t *testing.T, s *hike.Session) string {
	t.Helper()
	data, err := json.Marshal(Record{Op: OpUpsert, Session: s})
	require.NoError(t, err)
	return string(data) + "\n"
}

func deleteLine(id string) string {
	return `{"op":"delete","id":"` + id + `"}` + "\n"
}

func completed(s *hike.Session) *hike.Session {
	c := s.Clone()
	ended := c.StartedAt.Add(2 * time.Hour)
	c.Status = hike.StatusCompleted
	c.EndedAt = &ended
	c.EndMood = 8
	return c
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestParseLine(t *testing.T) {
	valid := hike.NewSession(hike.StartFields{StartMood: 5}, t0)

	tests := []struct {
		name    string
		line    string
		wantErr bool
	}{
		{"upsert in progress", upsertLine(t, valid), false},
		{"upsert completed", upsertLine(t, completed(valid)), false},
		{"delete", deleteLine(valid.ID), false},
		{"uppercase op", `{"op":"DELETE","id":"` + valid.ID + `"}`, false},
		{"empty", "", true},
		{"not json", "{nope", true},
		{"unknown op", `{"op":"merge","id":"` + valid.ID + `"}`, true},
		{"delete bad id", `{"op":"delete","id":"abc"}`, true},
		{"upsert without session", `{"op":"upsert"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseLine(tt.line)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedRecord)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, valid.ID, rec.TargetID())
		})
	}
}

func TestRecordValidateSessionShape(t *testing.T) {
	base := hike.NewSession(hike.StartFields{StartMood: 5}, t0)

	tests := []struct {
		name   string
		mutate func(s *hike.Session)
	}{
		{"zero start", func(s *hike.Session) { s.StartedAt = time.Time{} }},
		{"mood out of range", func(s *hike.Session) { s.StartMood = 11 }},
		{"unknown status", func(s *hike.Session) { s.Status = "paused" }},
		{"in progress with end", func(s *hike.Session) { e := t0.Add(time.Hour); s.EndedAt = &e }},
		{"completed without end", func(s *hike.Session) { s.Status = hike.StatusCompleted }},
		{"end before start", func(s *hike.Session) {
			e := t0.Add(-time.Hour)
			s.Status = hike.StatusCompleted
			s.EndedAt = &e
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base.Clone()
			tt.mutate(s)
			rec := &Record{Op: OpUpsert, Session: s}
			assert.ErrorIs(t, rec.Validate(), ErrMalformedRecord)
		})
	}
}

func TestRemoteCompletionClearsActive(t *testing.T) {
	im, mgr, st := setupImporter(t)
	ctx := context.Background()

	id, err := mgr.Start(ctx, hike.StartFields{StartMood: 5})
	require.NoError(t, err)

	local, err := st.GetSession(ctx, id)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sync.jsonl")
	appendFile(t, path, upsertLine(t, completed(local)))

	res, err := im.ImportFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted)
	assert.True(t, res.ActiveCleared)

	_, active := mgr.ActiveSessionID()
	assert.False(t, active)

	got, err := st.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, hike.StatusCompleted, got.Status)

	key, err := st.ActiveSessionID(ctx)
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestRemoteDeleteCascades(t *testing.T) {
	im, mgr, st := setupImporter(t)
	ctx := context.Background()

	id, err := mgr.Start(ctx, hike.StartFields{StartMood: 5})
	require.NoError(t, err)
	_, err = mgr.AddRecording(ctx, id, "", []byte("RIFF"), 1.5)
	require.NoError(t, err)

	other := hike.NewID()
	res, err := im.Apply(ctx, []*Record{
		{Op: OpDelete, ID: id},
		{Op: OpDelete, ID: other},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, 1, res.Missing)

	_, err = st.GetSession(ctx, id)
	assert.ErrorIs(t, err, hike.ErrSessionNotFound)

	recs, err := st.ListRecordings(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, active := mgr.ActiveSessionID()
	assert.False(t, active)
}

func TestUpsertInsertsAndReplaces(t *testing.T) {
	im, _, st := setupImporter(t)
	ctx := context.Background()

	remote := hike.NewSession(hike.StartFields{Title: "Remote", StartMood: 4}, t0)
	_, err := im.Apply(ctx, []*Record{{Op: OpUpsert, Session: remote}})
	require.NoError(t, err)

	renamed := remote.Clone()
	renamed.Title = "Renamed"
	res, err := im.Apply(ctx, []*Record{{Op: OpUpsert, Session: renamed}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted)
	assert.False(t, res.ActiveCleared)

	got, err := st.GetSession(ctx, remote.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
}

func TestStaleInProgressCopyKeepsCompletion(t *testing.T) {
	im, mgr, st := setupImporter(t)
	ctx := context.Background()

	first, err := mgr.Start(ctx, hike.StartFields{Title: "Ridge", StartMood: 5})
	require.NoError(t, err)
	staleCopy, err := st.GetSession(ctx, first)
	require.NoError(t, err)

	require.NoError(t, mgr.End(ctx, first, hike.ClosingFields{EndMood: 9, DistanceKm: 6.2, Reflection: "windy"}))
	second, err := mgr.Start(ctx, hike.StartFields{StartMood: 6})
	require.NoError(t, err)

	staleCopy.Title = "Ridge loop"
	res, err := im.Apply(ctx, []*Record{{Op: OpUpsert, Session: staleCopy}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stale)
	assert.Zero(t, res.Upserted)
	assert.False(t, res.ActiveCleared)

	got, err := st.GetSession(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, hike.StatusCompleted, got.Status)
	require.NotNil(t, got.EndedAt)
	assert.Equal(t, 9, got.EndMood)
	assert.Equal(t, 6.2, got.DistanceKm)
	assert.Equal(t, "windy", got.Reflection)
	assert.Equal(t, "Ridge loop", got.Title, "narrative fields are merged")

	inProgress, err := st.ListSessions(ctx, store.Query{Status: hike.StatusInProgress})
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, second, inProgress[0].ID)

	active, ok := mgr.ActiveSessionID()
	assert.True(t, ok)
	assert.Equal(t, second, active)
}

func TestReaderIncremental(t *testing.T) {
	r := NewReader(nil, logger.Noop())
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "a.jsonl")

	first := hike.NewSession(hike.StartFields{StartMood: 5}, t0)
	second := hike.NewSession(hike.StartFields{StartMood: 6}, t0.Add(time.Hour))

	appendFile(t, path, upsertLine(t, first)+"garbage line\n\n")

	recs, err := r.Read(ctx, path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, first.ID, recs[0].TargetID())

	// A line without its newline is still being written.
	line := upsertLine(t, second)
	appendFile(t, path, line[:len(line)-1])

	recs, err = r.Read(ctx, path)
	require.NoError(t, err)
	assert.Empty(t, recs)

	appendFile(t, path, "\n")
	recs, err = r.Read(ctx, path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, second.ID, recs[0].TargetID())

	recs, err = r.Read(ctx, path)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestReaderShrunkFileRereads(t *testing.T) {
	r := NewReader(nil, logger.Noop())
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "a.jsonl")

	s := hike.NewSession(hike.StartFields{StartMood: 5}, t0)
	appendFile(t, path, upsertLine(t, s)+upsertLine(t, s))

	recs, err := r.Read(ctx, path)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	require.NoError(t, os.WriteFile(path, []byte(deleteLine(s.ID)), 0600))

	recs, err = r.Read(ctx, path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, OpDelete, recs[0].Op)
}

func TestReaderMissingFile(t *testing.T) {
	r := NewReader(nil, logger.Noop())
	recs, err := r.Read(context.Background(), filepath.Join(t.TempDir(), "gone.jsonl"))
	require.NoError(t, err)
	assert.Nil(t, recs)
}

func TestReaderCancelled(t *testing.T) {
	r := NewReader(nil, logger.Noop())
	path := filepath.Join(t.TempDir(), "a.jsonl")
	appendFile(t, path, deleteLine(hike.NewID()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Read(ctx, path)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBoltPositionsSurviveReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	path := filepath.Join(t.TempDir(), "a.jsonl")
	ctx := context.Background()

	appendFile(t, path, deleteLine(hike.NewID()))

	open := func() (store.BoltStore, *Reader) {
		bs, err := store.NewBolt(store.Config{DBPath: dbPath}, logger.Noop())
		require.NoError(t, err)
		pos, err := NewBoltPositionStore(bs.DB())
		require.NoError(t, err)
		return bs, NewReader(pos, logger.Noop())
	}

	bs, r := open()
	recs, err := r.Read(ctx, path)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	require.NoError(t, bs.Close())

	bs, r = open()
	defer func() { _ = bs.Close() }()
	recs, err = r.Read(ctx, path)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestImportDir(t *testing.T) {
	im, _, st := setupImporter(t)
	ctx := context.Background()
	dir := t.TempDir()

	a := hike.NewSession(hike.StartFields{StartMood: 5}, t0)
	b := hike.NewSession(hike.StartFields{StartMood: 5}, t0.Add(time.Hour))

	appendFile(t, filepath.Join(dir, "001.jsonl"), upsertLine(t, a)+upsertLine(t, b))
	appendFile(t, filepath.Join(dir, "002.jsonl"), deleteLine(a.ID))
	appendFile(t, filepath.Join(dir, "notes.txt"), deleteLine(b.ID))

	res, err := im.ImportDir(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 2, res.Upserted)
	assert.Equal(t, 1, res.Deleted)

	all, err := st.ListSessions(ctx, store.Query{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, b.ID, all[0].ID)

	// Second pass reads nothing new.
	res, err = im.ImportDir(ctx, dir)
	require.NoError(t, err)
	assert.Zero(t, res.Upserted+res.Deleted)
}

func TestNewImporterRequiresDependencies(t *testing.T) {
	_, err := NewImporter(nil, nil, nil, logger.Noop())
	assert.ErrorIs(t, err, ErrNilDependency)
}
