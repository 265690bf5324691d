package inbox

import (
	"encoding/json"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"
)

var bucketPositions = []byte("inbox_positions") // path -> offset

// PositionStore persists how far each inbox file has been read.
type PositionStore interface {
	// GetPosition returns the stored offset for path, or 0.
	GetPosition(path string) (int64, error)

	// SetPosition stores the offset for path.
	SetPosition(path string, offset int64) error
}

// boltPositionStore keeps offsets in a bucket of the journal database.
type boltPositionStore struct {
	db *bolt.DB
}

// NewBoltPositionStore creates a position store in db.
//
// Parameters:
//   - db: Open BoltDB handle, typically the journal's own file
//
// Returns:
//   - Configured PositionStore
//   - Error if the bucket cannot be created
func NewBoltPositionStore(db *bolt.DB) (PositionStore, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPositions)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to create positions bucket: %w", err)
	}
	return &boltPositionStore{db: db}, nil
}

// GetPosition implements PositionStore.GetPosition.
func (s *boltPositionStore) GetPosition(path string) (int64, error) {
	var offset int64
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPositions).Get([]byte(path))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &offset); err != nil {
			return fmt.Errorf("failed to unmarshal offset: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return offset, nil
}

// SetPosition implements PositionStore.SetPosition.
func (s *boltPositionStore) SetPosition(path string, offset int64) error {
	data, err := json.Marshal(offset)
	if err != nil {
		return fmt.Errorf("failed to marshal offset: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPositions).Put([]byte(path), data)
	})
}

// memoryPositionStore keeps offsets for the life of the process.
type memoryPositionStore struct {
	mu        sync.RWMutex
	positions map[string]int64
}

// NewMemoryPositionStore creates an in-memory position store. Without
// persisted offsets every process re-reads the inbox from the start, which
// is safe because upserts and deletes are idempotent.
func NewMemoryPositionStore() PositionStore {
	return &memoryPositionStore{positions: make(map[string]int64)}
}

// GetPosition implements PositionStore.GetPosition.
func (s *memoryPositionStore) GetPosition(path string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positions[path], nil
}

// SetPosition implements PositionStore.SetPosition.
func (s *memoryPositionStore) SetPosition(path string, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[path] = offset
	return nil
}
