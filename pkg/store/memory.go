package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/0xmhha/hikelog/pkg/hike"
)

// memoryStore implements Store using in-memory maps.
// Useful for testing or when persistence is not needed.
type memoryStore struct {
	mu         sync.RWMutex
	sessions   map[string]*hike.Session
	recordings map[string]*hike.Recording
	audio      map[string][]byte
	photos     map[string]*hike.Photo
	photoData  map[string][]byte
	activeID   string
}

// NewMemory creates an in-memory store.
func NewMemory() Store {
	return &memoryStore{
		sessions:   make(map[string]*hike.Session),
		recordings: make(map[string]*hike.Recording),
		audio:      make(map[string][]byte),
		photos:     make(map[string]*hike.Photo),
		photoData:  make(map[string][]byte),
	}
}

// InsertSession implements Store.InsertSession.
func (s *memoryStore) InsertSession(_ context.Context, sess *hike.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidEntity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return fmt.Errorf("%w: session %s", ErrDuplicateID, sess.ID)
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// SaveSession implements Store.SaveSession.
func (s *memoryStore) SaveSession(_ context.Context, sess *hike.Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidEntity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; !ok {
		return hike.ErrSessionNotFound
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// GetSession implements Store.GetSession.
func (s *memoryStore) GetSession(_ context.Context, id string) (*hike.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, hike.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// ListSessions implements Store.ListSessions.
func (s *memoryStore) ListSessions(_ context.Context, q Query) ([]*hike.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []*hike.Session
	for _, sess := range s.sessions {
		if q.Match(sess) {
			sessions = append(sessions, sess.Clone())
		}
	}
	return q.apply(sessions), nil
}

// DeleteSession implements Store.DeleteSession.
func (s *memoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// InsertRecording implements Store.InsertRecording.
func (s *memoryStore) InsertRecording(_ context.Context, r *hike.Recording, audio []byte) error {
	if r == nil || r.ID == "" {
		return ErrInvalidEntity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recordings[r.ID]; ok {
		return fmt.Errorf("%w: recording %s", ErrDuplicateID, r.ID)
	}
	rec := *r
	s.recordings[r.ID] = &rec
	s.audio[r.ID] = append([]byte(nil), audio...)
	return nil
}

// SaveRecording implements Store.SaveRecording.
func (s *memoryStore) SaveRecording(_ context.Context, r *hike.Recording) error {
	if r == nil || r.ID == "" {
		return ErrInvalidEntity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recordings[r.ID]; !ok {
		return hike.ErrRecordingNotFound
	}
	rec := *r
	s.recordings[r.ID] = &rec
	return nil
}

// GetRecording implements Store.GetRecording.
func (s *memoryStore) GetRecording(_ context.Context, id string) (*hike.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recordings[id]
	if !ok {
		return nil, hike.ErrRecordingNotFound
	}
	out := *rec
	return &out, nil
}

// ListRecordings implements Store.ListRecordings.
func (s *memoryStore) ListRecordings(_ context.Context, sessionID string) ([]*hike.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []*hike.Recording
	for _, rec := range s.recordings {
		if rec.SessionID == sessionID {
			out := *rec
			recs = append(recs, &out)
		}
	}
	sortRecordings(recs)
	return recs, nil
}

// RecordingAudio implements Store.RecordingAudio.
func (s *memoryStore) RecordingAudio(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.audio[id]
	if !ok {
		return nil, hike.ErrRecordingNotFound
	}
	return append([]byte(nil), data...), nil
}

// DeleteRecording implements Store.DeleteRecording.
func (s *memoryStore) DeleteRecording(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.recordings, id)
	delete(s.audio, id)
	return nil
}

// InsertPhoto implements Store.InsertPhoto.
func (s *memoryStore) InsertPhoto(_ context.Context, p *hike.Photo, data []byte) error {
	if p == nil || p.ID == "" {
		return ErrInvalidEntity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.photos[p.ID]; ok {
		return fmt.Errorf("%w: photo %s", ErrDuplicateID, p.ID)
	}
	photo := *p
	s.photos[p.ID] = &photo
	s.photoData[p.ID] = append([]byte(nil), data...)
	return nil
}

// SavePhoto implements Store.SavePhoto.
func (s *memoryStore) SavePhoto(_ context.Context, p *hike.Photo) error {
	if p == nil || p.ID == "" {
		return ErrInvalidEntity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.photos[p.ID]; !ok {
		return hike.ErrPhotoNotFound
	}
	photo := *p
	s.photos[p.ID] = &photo
	return nil
}

// GetPhoto implements Store.GetPhoto.
func (s *memoryStore) GetPhoto(_ context.Context, id string) (*hike.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.photos[id]
	if !ok {
		return nil, hike.ErrPhotoNotFound
	}
	out := *p
	return &out, nil
}

// ListPhotos implements Store.ListPhotos.
func (s *memoryStore) ListPhotos(_ context.Context, sessionID string) ([]*hike.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var photos []*hike.Photo
	for _, p := range s.photos {
		if p.SessionID == sessionID {
			out := *p
			photos = append(photos, &out)
		}
	}
	sortPhotos(photos)
	return photos, nil
}

// PhotoData implements Store.PhotoData.
func (s *memoryStore) PhotoData(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.photoData[id]
	if !ok {
		return nil, hike.ErrPhotoNotFound
	}
	return append([]byte(nil), data...), nil
}

// DeletePhoto implements Store.DeletePhoto.
func (s *memoryStore) DeletePhoto(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.photos, id)
	delete(s.photoData, id)
	return nil
}

// ActiveSessionID implements Store.ActiveSessionID.
func (s *memoryStore) ActiveSessionID(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.activeID, nil
}

// SetActiveSessionID implements Store.SetActiveSessionID.
func (s *memoryStore) SetActiveSessionID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeID = id
	return nil
}

// Close implements Store.Close.
func (s *memoryStore) Close() error {
	return nil
}
