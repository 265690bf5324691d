package inbox

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/0xmhha/hikelog/pkg/hike"
	"github.com/0xmhha/hikelog/pkg/logger"
	"github.com/0xmhha/hikelog/pkg/session"
	"github.com/0xmhha/hikelog/pkg/store"
)

// Result summarizes an import.
type Result struct {
	Files    int
	Upserted int
	Deleted  int

	// Missing counts deletes for sessions that were already gone.
	Missing int

	// Stale counts in-progress copies of hikes already completed here.
	// Their narrative fields are merged; the completion is kept.
	Stale int

	// ActiveCleared reports that reconcile dropped the local active hike.
	ActiveCleared bool
}

func (r *Result) add(o Result) {
	r.Files += o.Files
	r.Upserted += o.Upserted
	r.Deleted += o.Deleted
	r.Missing += o.Missing
	r.Stale += o.Stale
	r.ActiveCleared = r.ActiveCleared || o.ActiveCleared
}

// Importer applies inbox records to the journal.
type Importer struct {
	store   store.Store
	manager session.Manager
	reader  *Reader
	logger  logger.Logger
}

// NewImporter creates an importer.
//
// Parameters:
//   - st: Journal store receiving upserts
//   - mgr: Session manager handling deletes and reconcile
//   - reader: Inbox reader (nil for an in-memory positioned reader)
//   - log: Logger instance
func NewImporter(st store.Store, mgr session.Manager, reader *Reader, log logger.Logger) (*Importer, error) {
	if st == nil || mgr == nil {
		return nil, ErrNilDependency
	}
	if reader == nil {
		reader = NewReader(nil, log)
	}
	return &Importer{
		store:   st,
		manager: mgr,
		reader:  reader,
		logger:  log.Component("inbox"),
	}, nil
}

// Apply writes records in order, then reconciles the active session.
// Upserts replace whole session records; deletes cascade to media.
func (im *Importer) Apply(ctx context.Context, records []*Record) (Result, error) {
	var res Result

	for _, rec := range records {
		switch rec.Op {
		case OpUpsert:
			stale, err := im.upsert(ctx, rec.Session)
			if err != nil {
				return res, err
			}
			if stale {
				res.Stale++
			} else {
				res.Upserted++
			}

		case OpDelete:
			err := im.manager.Delete(ctx, rec.ID)
			switch {
			case err == nil:
				res.Deleted++
			case errors.Is(err, hike.ErrSessionNotFound):
				res.Missing++
			default:
				return res, fmt.Errorf("failed to delete %s: %w", rec.ID, err)
			}
		}
	}

	cleared, err := im.manager.ReconcileFromStore(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to reconcile: %w", err)
	}
	res.ActiveCleared = cleared

	if len(records) > 0 {
		im.logger.Info("inbox applied",
			"upserted", res.Upserted,
			"deleted", res.Deleted,
			"missing", res.Missing,
			"stale", res.Stale,
			"active_cleared", cleared)
	}

	return res, nil
}

// upsert stores s. A completed hike never goes back to in progress: an
// in-progress copy of it only updates the narrative fields and reports
// stale.
func (im *Importer) upsert(ctx context.Context, s *hike.Session) (bool, error) {
	s = s.Clone()

	stored, err := im.store.GetSession(ctx, s.ID)
	switch {
	case err == nil:
		stale := stored.Status == hike.StatusCompleted && s.Status == hike.StatusInProgress
		if stale {
			s = keepCompletion(stored, s)
			im.logger.Warn("kept completion over stale in-progress copy", "session", s.ID)
		}
		if err := im.store.SaveSession(ctx, s); err != nil {
			return false, fmt.Errorf("failed to replace %s: %w", s.ID, err)
		}
		return stale, nil
	case errors.Is(err, hike.ErrSessionNotFound):
		if err := im.store.InsertSession(ctx, s); err != nil {
			return false, fmt.Errorf("failed to insert %s: %w", s.ID, err)
		}
		return false, nil
	default:
		return false, fmt.Errorf("failed to look up %s: %w", s.ID, err)
	}
}

// keepCompletion returns stored with the narrative fields of incoming.
func keepCompletion(stored, incoming *hike.Session) *hike.Session {
	merged := stored.Clone()
	merged.Title = incoming.Title
	merged.Notes = incoming.Notes
	merged.Tags = incoming.Tags
	if incoming.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = incoming.UpdatedAt
	}
	return merged
}

// ImportFile reads new records from path and applies them.
func (im *Importer) ImportFile(ctx context.Context, path string) (Result, error) {
	records, err := im.reader.Read(ctx, path)
	if err != nil {
		return Result{}, err
	}

	res, err := im.Apply(ctx, records)
	res.Files = 1
	return res, err
}

// ImportDir imports every *.jsonl file in dir in name order.
func (im *Importer) ImportDir(ctx context.Context, dir string) (Result, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return Result{}, fmt.Errorf("failed to list inbox: %w", err)
	}
	sort.Strings(paths)

	var total Result
	for _, path := range paths {
		res, err := im.ImportFile(ctx, path)
		total.add(res)
		if err != nil {
			return total, fmt.Errorf("failed to import %s: %w", path, err)
		}
	}

	if len(paths) == 0 {
		// Still reconcile so a store edited out of band is picked up.
		cleared, err := im.manager.ReconcileFromStore(ctx)
		if err != nil {
			return total, fmt.Errorf("failed to reconcile: %w", err)
		}
		total.ActiveCleared = cleared
	}

	return total, nil
}
