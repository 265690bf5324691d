package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/0xmhha/hikelog/pkg/hike"
	"github.com/0xmhha/hikelog/pkg/logger"
	bolt "go.etcd.io/bbolt"
)

// Bucket names.
var (
	bucketSessions       = []byte("sessions")        // ID -> Session
	bucketRecordings     = []byte("recordings")      // ID -> Recording
	bucketRecordingAudio = []byte("recording_audio") // ID -> WAV bytes
	bucketPhotos         = []byte("photos")          // ID -> Photo
	bucketPhotoData      = []byte("photo_data")      // ID -> image bytes
	bucketState          = []byte("state")           // key -> value
)

var keyActiveSession = []byte("active_session_id")

// boltStore implements Store using BoltDB.
type boltStore struct {
	db     *bolt.DB
	logger logger.Logger
}

// BoltStore is a Store that exposes its database handle so other
// components can keep their own buckets in the same file.
type BoltStore interface {
	Store
	DB() *bolt.DB
}

// NewBolt creates a BoltDB-backed store.
//
// Parameters:
//   - cfg: Store configuration (DBPath required)
//   - log: Logger instance
//
// Returns:
//   - Configured BoltStore
//   - Error if database cannot be opened
func NewBolt(cfg Config, log logger.Logger) (BoltStore, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	dbPath := expandHome(cfg.DBPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{
			bucketSessions, bucketRecordings, bucketRecordingAudio,
			bucketPhotos, bucketPhotoData, bucketState,
		} {
			if _, createErr := tx.CreateBucketIfNotExists(name); createErr != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, createErr)
			}
		}
		return nil
	}); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after initialization error",
				"error", closeErr)
		}
		return nil, err
	}

	log.Debug("bolt store opened", "db_path", dbPath)

	return &boltStore{
		db:     db,
		logger: log,
	}, nil
}

// DB returns the underlying database handle.
func (s *boltStore) DB() *bolt.DB {
	return s.db
}

// InsertSession implements Store.InsertSession.
func (s *boltStore) InsertSession(_ context.Context, sess *hike.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidEntity
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b.Get([]byte(sess.ID)) != nil {
			return fmt.Errorf("%w: session %s", ErrDuplicateID, sess.ID)
		}
		return putJSON(b, sess.ID, sess)
	})
}

// SaveSession implements Store.SaveSession.
func (s *boltStore) SaveSession(_ context.Context, sess *hike.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidEntity
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b.Get([]byte(sess.ID)) == nil {
			return hike.ErrSessionNotFound
		}
		return putJSON(b, sess.ID, sess)
	})
}

// GetSession implements Store.GetSession.
func (s *boltStore) GetSession(_ context.Context, id string) (*hike.Session, error) {
	var sess hike.Session

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(id))
		if data == nil {
			return hike.ErrSessionNotFound
		}
		if err := json.Unmarshal(data, &sess); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &sess, nil
}

// ListSessions implements Store.ListSessions.
func (s *boltStore) ListSessions(_ context.Context, q Query) ([]*hike.Session, error) {
	var sessions []*hike.Session

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(k, v []byte) error {
			var sess hike.Session
			if err := json.Unmarshal(v, &sess); err != nil {
				s.logger.Warn("failed to unmarshal session", "id", string(k), "error", err)
				return nil
			}
			if q.Match(&sess) {
				sessions = append(sessions, &sess)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return q.apply(sessions), nil
}

// DeleteSession implements Store.DeleteSession.
func (s *boltStore) DeleteSession(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(id))
	})
}

// InsertRecording implements Store.InsertRecording.
func (s *boltStore) InsertRecording(_ context.Context, r *hike.Recording, audio []byte) error {
	if r == nil || r.ID == "" {
		return ErrInvalidEntity
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecordings)
		if b.Get([]byte(r.ID)) != nil {
			return fmt.Errorf("%w: recording %s", ErrDuplicateID, r.ID)
		}
		if err := putJSON(b, r.ID, r); err != nil {
			return err
		}
		return tx.Bucket(bucketRecordingAudio).Put([]byte(r.ID), audio)
	})
}

// SaveRecording implements Store.SaveRecording.
func (s *boltStore) SaveRecording(_ context.Context, r *hike.Recording) error {
	if r == nil || r.ID == "" {
		return ErrInvalidEntity
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecordings)
		if b.Get([]byte(r.ID)) == nil {
			return hike.ErrRecordingNotFound
		}
		return putJSON(b, r.ID, r)
	})
}

// GetRecording implements Store.GetRecording.
func (s *boltStore) GetRecording(_ context.Context, id string) (*hike.Recording, error) {
	var rec hike.Recording

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRecordings).Get([]byte(id))
		if data == nil {
			return hike.ErrRecordingNotFound
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal recording: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// ListRecordings implements Store.ListRecordings.
func (s *boltStore) ListRecordings(_ context.Context, sessionID string) ([]*hike.Recording, error) {
	var recs []*hike.Recording

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecordings).ForEach(func(k, v []byte) error {
			var rec hike.Recording
			if err := json.Unmarshal(v, &rec); err != nil {
				s.logger.Warn("failed to unmarshal recording", "id", string(k), "error", err)
				return nil
			}
			if rec.SessionID == sessionID {
				recs = append(recs, &rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortRecordings(recs)
	return recs, nil
}

// RecordingAudio implements Store.RecordingAudio.
func (s *boltStore) RecordingAudio(_ context.Context, id string) ([]byte, error) {
	return s.getBytes(bucketRecordingAudio, id, hike.ErrRecordingNotFound)
}

// DeleteRecording implements Store.DeleteRecording.
func (s *boltStore) DeleteRecording(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketRecordings).Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketRecordingAudio).Delete([]byte(id))
	})
}

// InsertPhoto implements Store.InsertPhoto.
func (s *boltStore) InsertPhoto(_ context.Context, p *hike.Photo, data []byte) error {
	if p == nil || p.ID == "" {
		return ErrInvalidEntity
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPhotos)
		if b.Get([]byte(p.ID)) != nil {
			return fmt.Errorf("%w: photo %s", ErrDuplicateID, p.ID)
		}
		if err := putJSON(b, p.ID, p); err != nil {
			return err
		}
		return tx.Bucket(bucketPhotoData).Put([]byte(p.ID), data)
	})
}

// SavePhoto implements Store.SavePhoto.
func (s *boltStore) SavePhoto(_ context.Context, p *hike.Photo) error {
	if p == nil || p.ID == "" {
		return ErrInvalidEntity
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPhotos)
		if b.Get([]byte(p.ID)) == nil {
			return hike.ErrPhotoNotFound
		}
		return putJSON(b, p.ID, p)
	})
}

// GetPhoto implements Store.GetPhoto.
func (s *boltStore) GetPhoto(_ context.Context, id string) (*hike.Photo, error) {
	var p hike.Photo

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPhotos).Get([]byte(id))
		if data == nil {
			return hike.ErrPhotoNotFound
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("failed to unmarshal photo: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// ListPhotos implements Store.ListPhotos.
func (s *boltStore) ListPhotos(_ context.Context, sessionID string) ([]*hike.Photo, error) {
	var photos []*hike.Photo

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPhotos).ForEach(func(k, v []byte) error {
			var p hike.Photo
			if err := json.Unmarshal(v, &p); err != nil {
				s.logger.Warn("failed to unmarshal photo", "id", string(k), "error", err)
				return nil
			}
			if p.SessionID == sessionID {
				photos = append(photos, &p)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortPhotos(photos)
	return photos, nil
}

// PhotoData implements Store.PhotoData.
func (s *boltStore) PhotoData(_ context.Context, id string) ([]byte, error) {
	return s.getBytes(bucketPhotoData, id, hike.ErrPhotoNotFound)
}

// DeletePhoto implements Store.DeletePhoto.
func (s *boltStore) DeletePhoto(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketPhotos).Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketPhotoData).Delete([]byte(id))
	})
}

// ActiveSessionID implements Store.ActiveSessionID.
func (s *boltStore) ActiveSessionID(_ context.Context) (string, error) {
	var id string

	err := s.db.View(func(tx *bolt.Tx) error {
		id = string(tx.Bucket(bucketState).Get(keyActiveSession))
		return nil
	})

	return id, err
}

// SetActiveSessionID implements Store.SetActiveSessionID.
func (s *boltStore) SetActiveSessionID(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		if id == "" {
			return b.Delete(keyActiveSession)
		}
		return b.Put(keyActiveSession, []byte(id))
	})
}

// Close implements Store.Close.
func (s *boltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// getBytes copies a raw value out of a bucket.
func (s *boltStore) getBytes(bucket []byte, id string, notFound error) ([]byte, error) {
	var out []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(id))
		if data == nil {
			return notFound
		}
		// Values are only valid for the life of the transaction.
		out = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// putJSON marshals v and stores it under key.
func putJSON(b *bolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	if err := b.Put([]byte(key), data); err != nil {
		return fmt.Errorf("failed to store %T: %w", v, err)
	}
	return nil
}
