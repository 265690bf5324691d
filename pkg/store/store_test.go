package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/0xmhha/hikelog/pkg/hike"
	"github.com/0xmhha/hikelog/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drivers returns a fresh store per backend.
func drivers(t *testing.T) map[string]Store {
	t.Helper()

	dir := t.TempDir()
	log := logger.Noop()

	bs, err := NewBolt(Config{DBPath: filepath.Join(dir, "journal.db")}, log)
	require.NoError(t, err)

	ss, err := NewSQLite(Config{DBPath: filepath.Join(dir, "journal.sqlite")}, log)
	require.NoError(t, err)

	stores := map[string]Store{
		"bolt":   bs,
		"sqlite": ss,
		"memory": NewMemory(),
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func newSession(startedAt time.Time) *hike.Session {
	return hike.NewSession(hike.StartFields{StartMood: 5, Title: "ridge"}, startedAt)
}

func TestSessionCRUD(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	for name, st := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			sess := newSession(base)
			require.NoError(t, st.InsertSession(ctx, sess))

			err := st.InsertSession(ctx, sess)
			assert.ErrorIs(t, err, ErrDuplicateID)

			got, err := st.GetSession(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, sess.ID, got.ID)
			assert.Equal(t, hike.StatusInProgress, got.Status)
			assert.True(t, sess.StartedAt.Equal(got.StartedAt))
			assert.Equal(t, 5, got.StartMood)

			got.Complete(hike.ClosingFields{EndMood: 8, DistanceKm: 4.2}, base.Add(time.Hour))
			require.NoError(t, st.SaveSession(ctx, got))

			again, err := st.GetSession(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, hike.StatusCompleted, again.Status)
			require.NotNil(t, again.EndedAt)
			assert.Equal(t, time.Hour, again.Duration())
			assert.Equal(t, 4.2, again.DistanceKm)

			require.NoError(t, st.DeleteSession(ctx, sess.ID))
			_, err = st.GetSession(ctx, sess.ID)
			assert.ErrorIs(t, err, hike.ErrSessionNotFound)

			// Deleting twice is not an error.
			assert.NoError(t, st.DeleteSession(ctx, sess.ID))
		})
	}
}

func TestSaveMissingSession(t *testing.T) {
	ctx := context.Background()

	for name, st := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			err := st.SaveSession(ctx, newSession(time.Now()))
			assert.ErrorIs(t, err, hike.ErrSessionNotFound)

			assert.ErrorIs(t, st.InsertSession(ctx, nil), ErrInvalidEntity)
		})
	}
}

func TestListSessionsQuery(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	for name, st := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			var ids []string
			for i := 0; i < 4; i++ {
				sess := newSession(base.Add(time.Duration(i) * 24 * time.Hour))
				if i < 3 {
					sess.Complete(hike.ClosingFields{EndMood: 6}, sess.StartedAt.Add(time.Hour))
				}
				require.NoError(t, st.InsertSession(ctx, sess))
				ids = append(ids, sess.ID)
			}

			all, err := st.ListSessions(ctx, Query{})
			require.NoError(t, err)
			require.Len(t, all, 4)
			assert.Equal(t, ids[3], all[0].ID, "newest first")
			assert.Equal(t, ids[0], all[3].ID)

			completed, err := st.ListSessions(ctx, Query{Status: hike.StatusCompleted})
			require.NoError(t, err)
			assert.Len(t, completed, 3)

			active, err := st.ListSessions(ctx, Query{Status: hike.StatusInProgress})
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.Equal(t, ids[3], active[0].ID)

			window, err := st.ListSessions(ctx, Query{
				Since: base.Add(24 * time.Hour),
				Until: base.Add(48 * time.Hour),
			})
			require.NoError(t, err)
			assert.Len(t, window, 2)

			limited, err := st.ListSessions(ctx, Query{Limit: 2})
			require.NoError(t, err)
			assert.Len(t, limited, 2)
		})
	}
}

func TestRecordings(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	for name, st := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			sessionID := hike.NewID()
			audio := []byte("RIFF....WAVE")

			var recs []*hike.Recording
			for i := 2; i >= 0; i-- {
				rec := &hike.Recording{
					ID:        hike.NewID(),
					SessionID: sessionID,
					CreatedAt: now,
					Name:      "clip",
					Duration:  1.5,
					SortOrder: i,
					Size:      int64(len(audio)),
				}
				require.NoError(t, st.InsertRecording(ctx, rec, audio))
				recs = append(recs, rec)
			}

			// A recording owned by another session.
			other := &hike.Recording{ID: hike.NewID(), SessionID: hike.NewID(), CreatedAt: now}
			require.NoError(t, st.InsertRecording(ctx, other, audio))

			list, err := st.ListRecordings(ctx, sessionID)
			require.NoError(t, err)
			require.Len(t, list, 3)
			for i, rec := range list {
				assert.Equal(t, i, rec.SortOrder)
			}

			data, err := st.RecordingAudio(ctx, recs[0].ID)
			require.NoError(t, err)
			assert.Equal(t, audio, data)

			renamed := *recs[0]
			renamed.Name = "summit"
			require.NoError(t, st.SaveRecording(ctx, &renamed))
			got, err := st.GetRecording(ctx, renamed.ID)
			require.NoError(t, err)
			assert.Equal(t, "summit", got.Name)

			require.NoError(t, st.DeleteRecording(ctx, recs[0].ID))
			_, err = st.RecordingAudio(ctx, recs[0].ID)
			assert.ErrorIs(t, err, hike.ErrRecordingNotFound)
			_, err = st.GetRecording(ctx, recs[0].ID)
			assert.ErrorIs(t, err, hike.ErrRecordingNotFound)

			missing := &hike.Recording{ID: hike.NewID()}
			assert.ErrorIs(t, st.SaveRecording(ctx, missing), hike.ErrRecordingNotFound)
			assert.ErrorIs(t, st.InsertRecording(ctx, other, audio), ErrDuplicateID)
		})
	}
}

func TestPhotos(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	for name, st := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			sessionID := hike.NewID()
			photo := &hike.Photo{ID: hike.NewID(), SessionID: sessionID, CreatedAt: now, Caption: "lake"}
			img := []byte{0xFF, 0xD8, 0xFF}

			require.NoError(t, st.InsertPhoto(ctx, photo, img))

			list, err := st.ListPhotos(ctx, sessionID)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "lake", list[0].Caption)

			data, err := st.PhotoData(ctx, photo.ID)
			require.NoError(t, err)
			assert.Equal(t, img, data)

			got, err := st.GetPhoto(ctx, photo.ID)
			require.NoError(t, err)
			assert.Equal(t, sessionID, got.SessionID)

			photo.Caption = "tarn"
			require.NoError(t, st.SavePhoto(ctx, photo))
			list, err = st.ListPhotos(ctx, sessionID)
			require.NoError(t, err)
			assert.Equal(t, "tarn", list[0].Caption)

			require.NoError(t, st.DeletePhoto(ctx, photo.ID))
			_, err = st.PhotoData(ctx, photo.ID)
			assert.ErrorIs(t, err, hike.ErrPhotoNotFound)
			assert.ErrorIs(t, st.SavePhoto(ctx, photo), hike.ErrPhotoNotFound)
		})
	}
}

func TestActiveSessionKey(t *testing.T) {
	ctx := context.Background()

	for name, st := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			id, err := st.ActiveSessionID(ctx)
			require.NoError(t, err)
			assert.Empty(t, id)

			require.NoError(t, st.SetActiveSessionID(ctx, "abc"))
			require.NoError(t, st.SetActiveSessionID(ctx, "def"))
			id, err = st.ActiveSessionID(ctx)
			require.NoError(t, err)
			assert.Equal(t, "def", id)

			require.NoError(t, st.SetActiveSessionID(ctx, ""))
			id, err = st.ActiveSessionID(ctx)
			require.NoError(t, err)
			assert.Empty(t, id)

			// Clearing an absent key is fine.
			assert.NoError(t, st.SetActiveSessionID(ctx, ""))
		})
	}
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	st, err := NewBolt(Config{DBPath: path}, logger.Noop())
	require.NoError(t, err)
	assert.NotNil(t, st.DB())

	sess := newSession(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, st.InsertSession(ctx, sess))
	require.NoError(t, st.SetActiveSessionID(ctx, sess.ID))
	require.NoError(t, st.Close())

	reopened, err := Open(Config{Driver: "bolt", DBPath: path}, logger.Noop())
	require.NoError(t, err)
	defer reopened.Close()

	id, err := reopened.ActiveSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, id)

	got, err := reopened.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "ridge", got.Title)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "postgres"}, logger.Noop())
	assert.ErrorIs(t, err, ErrUnknownDriver)

	st, err := Open(Config{Driver: "MEMORY"}, logger.Noop())
	require.NoError(t, err)
	assert.NoError(t, st.Close())
}

func TestExpandHome(t *testing.T) {
	assert.Equal(t, "/abs/journal.db", expandHome("/abs/journal.db"))
	assert.NotEqual(t, "~/journal.db", expandHome("~/journal.db"))
}
