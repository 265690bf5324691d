package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/0xmhha/hikelog/pkg/clock"
	"github.com/0xmhha/hikelog/pkg/hike"
	"github.com/0xmhha/hikelog/pkg/logger"
	"github.com/0xmhha/hikelog/pkg/store"
)

// manager implements the Manager interface on top of a store.Store.
type manager struct {
	store     store.Store
	clock     clock.Clock
	lifecycle Lifecycle
	logger    logger.Logger

	// mu serializes every mutation. activeID is only written under mu.
	mu       sync.Mutex
	activeID string
}

// New creates a session manager.
//
// The persisted active-session key is read and reconciled against the store
// before New returns.
//
// Parameters:
//   - st: Store holding sessions and the active-session key
//   - cfg: Manager configuration
//   - log: Logger instance
//
// Returns:
//   - Configured Manager
//   - Error if the persisted state cannot be read
func New(st store.Store, cfg Config, log logger.Logger) (Manager, error) {
	if st == nil {
		return nil, ErrNilStore
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}

	ctx := context.Background()

	activeID, err := st.ActiveSessionID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active session: %w", err)
	}

	m := &manager{
		store:     st,
		clock:     cfg.Clock,
		lifecycle: cfg.Lifecycle,
		logger:    log.Component("session"),
		activeID:  activeID,
	}

	if _, err := m.ReconcileFromStore(ctx); err != nil {
		return nil, err
	}

	return m, nil
}

// Start implements Manager.Start.
func (m *manager) Start(ctx context.Context, fields hike.StartFields) (string, error) {
	m.mu.Lock()

	if m.activeID != "" {
		existing := m.activeID
		m.mu.Unlock()
		return "", &hike.AlreadyActiveError{ExistingID: existing}
	}

	if err := fields.Validate(); err != nil {
		m.mu.Unlock()
		return "", err
	}

	sess := hike.NewSession(fields, m.clock.Now())

	if err := m.store.InsertSession(ctx, sess); err != nil {
		m.mu.Unlock()
		return "", fmt.Errorf("failed to insert session: %w", err)
	}

	if err := m.store.SetActiveSessionID(ctx, sess.ID); err != nil {
		// Roll back so no unreferenced in-progress session is left behind.
		if delErr := m.store.DeleteSession(ctx, sess.ID); delErr != nil {
			m.logger.Error("failed to roll back session insert",
				"session", sess.ID, "error", delErr)
		}
		m.mu.Unlock()
		return "", fmt.Errorf("failed to persist active session: %w", err)
	}

	m.activeID = sess.ID

	// Signalled under mu so a racing End cannot overtake it.
	if m.lifecycle != nil {
		m.lifecycle.OnSessionStarted(sess.StartedAt)
	}
	m.mu.Unlock()

	m.logger.Info("hike started", "session", sess.ID, "start_mood", sess.StartMood)

	return sess.ID, nil
}

// End implements Manager.End.
func (m *manager) End(ctx context.Context, id string, fields hike.ClosingFields) error {
	m.mu.Lock()

	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	if sess.Status != hike.StatusInProgress || id != m.activeID {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", hike.ErrSessionNotActive, id)
	}

	if err := fields.Validate(); err != nil {
		m.mu.Unlock()
		return err
	}

	endedAt := m.clock.Now()
	sess.Complete(fields, endedAt)

	// Status, EndedAt and closing fields go out in one write.
	if err := m.store.SaveSession(ctx, sess); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to save session: %w", err)
	}

	m.activeID = ""
	if err := m.store.SetActiveSessionID(ctx, ""); err != nil {
		m.logger.Error("failed to clear persisted active session",
			"session", id, "error", err)
	}

	if m.lifecycle != nil {
		m.lifecycle.OnSessionEnded(endedAt)
	}
	m.mu.Unlock()

	m.logger.Info("hike ended",
		"session", id,
		"duration", sess.Duration(),
		"end_mood", sess.EndMood)

	return nil
}

// Reconcile implements Manager.Reconcile.
func (m *manager) Reconcile(ctx context.Context, sessions []*hike.Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.reconcileLocked(ctx, sessions)
}

func (m *manager) reconcileLocked(ctx context.Context, sessions []*hike.Session) bool {
	if m.activeID == "" {
		return false
	}

	for _, s := range sessions {
		if s != nil && s.ID == m.activeID && s.Status == hike.StatusInProgress {
			return false
		}
	}

	m.logger.Warn("clearing stale active session", "session", m.activeID)
	m.activeID = ""

	if err := m.store.SetActiveSessionID(ctx, ""); err != nil {
		m.logger.Error("failed to clear persisted active session", "error", err)
	}

	return true
}

// ReconcileFromStore implements Manager.ReconcileFromStore.
func (m *manager) ReconcileFromStore(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeID == "" {
		return false, nil
	}

	sessions, err := m.store.ListSessions(ctx, store.Query{Status: hike.StatusInProgress})
	if err != nil {
		return false, fmt.Errorf("failed to list sessions: %w", err)
	}

	return m.reconcileLocked(ctx, sessions), nil
}

// ActiveSessionID implements Manager.ActiveSessionID.
func (m *manager) ActiveSessionID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.activeID, m.activeID != ""
}

// Resolve implements Manager.Resolve.
func (m *manager) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if hike.ValidID(ref) {
		return ref, nil
	}
	if ref == "" {
		return "", hike.ErrInvalidID
	}

	sessions, err := m.store.ListSessions(ctx, store.Query{})
	if err != nil {
		return "", fmt.Errorf("failed to list sessions: %w", err)
	}

	var match string
	for _, s := range sessions {
		if !strings.HasPrefix(s.ID, ref) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("%w: %s", ErrAmbiguousID, ref)
		}
		match = s.ID
	}

	if match == "" {
		return "", fmt.Errorf("%w: %s", hike.ErrSessionNotFound, ref)
	}
	return match, nil
}

// Get implements Manager.Get.
func (m *manager) Get(ctx context.Context, id string) (*hike.Session, error) {
	if !hike.ValidID(id) {
		return nil, hike.ErrInvalidID
	}
	return m.store.GetSession(ctx, id)
}

// List implements Manager.List.
func (m *manager) List(ctx context.Context, q store.Query) ([]*hike.Session, error) {
	return m.store.ListSessions(ctx, q)
}

// Edit implements Manager.Edit.
func (m *manager) Edit(ctx context.Context, id string, edit hike.Edit) (*hike.Session, error) {
	if err := edit.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	edit.Apply(sess, m.clock.Now())

	if err := m.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	m.logger.Debug("hike edited", "session", id)
	return sess, nil
}

// Delete implements Manager.Delete.
//
// The store does not cascade, so owned media is enumerated and removed
// before the session record.
func (m *manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.store.GetSession(ctx, id); err != nil {
		return err
	}

	recs, err := m.store.ListRecordings(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list recordings: %w", err)
	}
	for _, rec := range recs {
		if err := m.store.DeleteRecording(ctx, rec.ID); err != nil {
			return fmt.Errorf("failed to delete recording %s: %w", rec.ID, err)
		}
	}

	photos, err := m.store.ListPhotos(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list photos: %w", err)
	}
	for _, p := range photos {
		if err := m.store.DeletePhoto(ctx, p.ID); err != nil {
			return fmt.Errorf("failed to delete photo %s: %w", p.ID, err)
		}
	}

	if err := m.store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if m.activeID == id {
		m.activeID = ""
		if err := m.store.SetActiveSessionID(ctx, ""); err != nil {
			m.logger.Error("failed to clear persisted active session", "error", err)
		}
	}

	m.logger.Info("hike deleted",
		"session", id,
		"recordings", len(recs),
		"photos", len(photos))

	return nil
}

// AddRecording implements Manager.AddRecording.
func (m *manager) AddRecording(ctx context.Context, sessionID, name string, audio []byte, duration float64) (*hike.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	existing, err := m.store.ListRecordings(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}

	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("Recording %d", len(existing)+1)
	}

	rec := &hike.Recording{
		ID:        hike.NewID(),
		SessionID: sessionID,
		CreatedAt: m.clock.Now(),
		Name:      name,
		Duration:  duration,
		SortOrder: len(existing),
		Size:      int64(len(audio)),
	}

	if err := m.store.InsertRecording(ctx, rec, audio); err != nil {
		return nil, fmt.Errorf("failed to insert recording: %w", err)
	}

	m.logger.Info("recording saved",
		"session", sessionID,
		"recording", rec.ID,
		"duration", duration,
		"bytes", rec.Size)

	return rec, nil
}

// Recording implements Manager.Recording.
func (m *manager) Recording(ctx context.Context, id string) (*hike.Recording, error) {
	return m.store.GetRecording(ctx, id)
}

// Recordings implements Manager.Recordings.
func (m *manager) Recordings(ctx context.Context, sessionID string) ([]*hike.Recording, error) {
	return m.store.ListRecordings(ctx, sessionID)
}

// RecordingAudio implements Manager.RecordingAudio.
func (m *manager) RecordingAudio(ctx context.Context, id string) ([]byte, error) {
	return m.store.RecordingAudio(ctx, id)
}

// RenameRecording implements Manager.RenameRecording.
func (m *manager) RenameRecording(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &hike.ValidationError{Fields: []hike.FieldError{{Field: "name", Message: "name is required"}}}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.GetRecording(ctx, id)
	if err != nil {
		return err
	}

	rec.Name = name
	return m.store.SaveRecording(ctx, rec)
}

// DeleteRecording implements Manager.DeleteRecording.
func (m *manager) DeleteRecording(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.GetRecording(ctx, id)
	if err != nil {
		return err
	}

	if err := m.store.DeleteRecording(ctx, id); err != nil {
		return fmt.Errorf("failed to delete recording: %w", err)
	}

	remaining, err := m.store.ListRecordings(ctx, rec.SessionID)
	if err != nil {
		return fmt.Errorf("failed to list recordings: %w", err)
	}

	for i, r := range remaining {
		if r.SortOrder == i {
			continue
		}
		r.SortOrder = i
		if err := m.store.SaveRecording(ctx, r); err != nil {
			return fmt.Errorf("failed to renumber recording %s: %w", r.ID, err)
		}
	}

	m.logger.Info("recording deleted", "session", rec.SessionID, "recording", id)
	return nil
}

// AddPhoto implements Manager.AddPhoto.
func (m *manager) AddPhoto(ctx context.Context, sessionID, caption string, data []byte) (*hike.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	existing, err := m.store.ListPhotos(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}

	photo := &hike.Photo{
		ID:        hike.NewID(),
		SessionID: sessionID,
		CreatedAt: m.clock.Now(),
		Caption:   caption,
		SortOrder: len(existing),
		Size:      int64(len(data)),
	}

	if err := m.store.InsertPhoto(ctx, photo, data); err != nil {
		return nil, fmt.Errorf("failed to insert photo: %w", err)
	}

	return photo, nil
}

// Photos implements Manager.Photos.
func (m *manager) Photos(ctx context.Context, sessionID string) ([]*hike.Photo, error) {
	return m.store.ListPhotos(ctx, sessionID)
}

// DeletePhoto implements Manager.DeletePhoto.
func (m *manager) DeletePhoto(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	photo, err := m.store.GetPhoto(ctx, id)
	if err != nil {
		return err
	}

	if err := m.store.DeletePhoto(ctx, id); err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}

	remaining, err := m.store.ListPhotos(ctx, photo.SessionID)
	if err != nil {
		return fmt.Errorf("failed to list photos: %w", err)
	}

	for i, p := range remaining {
		if p.SortOrder == i {
			continue
		}
		p.SortOrder = i
		if err := m.store.SavePhoto(ctx, p); err != nil {
			return fmt.Errorf("failed to renumber photo %s: %w", p.ID, err)
		}
	}

	return nil
}
