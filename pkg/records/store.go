package records

import (
	"context"
	"fmt"
	"io"

	"github.com/recman/recman/pkg/telemetry"
)

// Backend is the external source a Store is loaded from.
type Backend interface {
	// Name identifies the backend kind (csv, sqlite, redis) in logs and metrics.
	Name() string

	// Load reads every available record in source order. A missing source
	// returns an empty slice and a not-found error; malformed rows may return
	// the well-formed records together with a format error.
	Load(ctx context.Context) ([]Record, error)

	// Close releases the backend connection.
	Close() error
}

// BulkSaver is a backend persisted by rewriting the whole destination.
type BulkSaver interface {
	Save(ctx context.Context, recs []Record) error
}

// RecordSyncer is a backend kept continuously in sync, one record at a time.
// Upsert inserts or replaces by id; Remove deletes every row with the id.
type RecordSyncer interface {
	Upsert(ctx context.Context, r Record) error
	Remove(ctx context.Context, id string) (int64, error)
}

// PathLoader is a backend that can load from an alternate location while
// keeping its configured destination.
type PathLoader interface {
	LoadFrom(ctx context.Context, path string) ([]Record, error)
}

// Store is the in-memory ordered record collection bound to one backend.
// A Store is owned by a single goroutine; it does no locking.
type Store struct {
	backend Backend
	records []Record
}

// NewStore creates an empty store bound to backend. Call Load to populate it.
func NewStore(backend Backend) *Store {
	return &Store{
		backend: backend,
		records: []Record{},
	}
}

// Backend returns the store's backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Synced reports whether mutations are written through to the backend
// immediately (upsert strategy) rather than on Save (bulk rewrite).
func (s *Store) Synced() bool {
	_, ok := s.backend.(RecordSyncer)
	return ok
}

// Len returns the number of records in the store.
func (s *Store) Len() int {
	return len(s.records)
}

// Records returns a copy of the records in order.
func (s *Store) Records() []Record {
	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Get returns the first record with the given id.
func (s *Store) Get(id string) (Record, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.records[i].Clone(), true
	}
	return Record{}, false
}

// Load replaces the store contents with the backend's records.
//
// Not-found and format errors are returned after the store has been replaced
// with whatever the backend could read (possibly nothing). Any other error
// leaves the store unchanged.
func (s *Store) Load(ctx context.Context) error {
	return s.load(ctx, "load", s.backend.Load)
}

// LoadFrom loads from an alternate path when the backend supports it, and
// from the configured source otherwise. An empty path means the configured
// source.
func (s *Store) LoadFrom(ctx context.Context, path string) error {
	pl, ok := s.backend.(PathLoader)
	if path == "" || !ok {
		return s.Load(ctx)
	}
	return s.load(ctx, "reload", func(ctx context.Context) ([]Record, error) {
		return pl.LoadFrom(ctx, path)
	})
}

func (s *Store) load(ctx context.Context, op string, fn func(context.Context) ([]Record, error)) error {
	err := telemetry.RecordStoreOperation(ctx, s.backend.Name(), op, func(ctx context.Context) error {
		recs, err := fn(ctx)
		if err != nil && !IsNotFound(err) && !IsFormat(err) {
			return err
		}
		if recs == nil {
			recs = []Record{}
		}
		s.records = recs
		return err
	})
	if err != nil && !IsNotFound(err) && !IsFormat(err) {
		return classify(err, op)
	}

	s.observe(ctx)
	telemetry.PublishStoreEvent(ctx, telemetry.EventTypeStoreLoaded, s.backend.Name(),
		fmt.Sprintf("%d records loaded", len(s.records)))
	return classify(err, op)
}

// Add appends a record. An id that is already present is rejected with a
// conflict error and the store is left unchanged.
func (s *Store) Add(ctx context.Context, r Record) error {
	r = r.Clone()
	err := telemetry.RecordStoreOperation(ctx, s.backend.Name(), "add", func(ctx context.Context) error {
		if s.indexOf(r.ID) >= 0 {
			return NewConflictError("record already exists", nil).WithRecord(r.ID)
		}
		if syncer, ok := s.backend.(RecordSyncer); ok {
			if err := syncer.Upsert(ctx, r); err != nil {
				return err
			}
		}
		s.records = append(s.records, r)
		return nil
	})
	if err != nil {
		return classify(err, "add")
	}

	s.observe(ctx)
	telemetry.PublishRecordEvent(ctx, telemetry.EventTypeRecordAdded, r.ID, "record added")
	return nil
}

// Update replaces the supplied fields of the first record with the given id.
// An unknown id returns a not-found error and changes nothing.
func (s *Store) Update(ctx context.Context, id string, p Patch) error {
	err := telemetry.RecordStoreOperation(ctx, s.backend.Name(), "update", func(ctx context.Context) error {
		i := s.indexOf(id)
		if i < 0 {
			return NewNotFoundError("record not found", nil).WithRecord(id)
		}

		updated := s.records[i].Clone()
		p.Apply(&updated)

		if syncer, ok := s.backend.(RecordSyncer); ok {
			if err := syncer.Upsert(ctx, updated); err != nil {
				return err
			}
		}
		s.records[i] = updated
		return nil
	})
	if err != nil {
		return classify(err, "update")
	}

	telemetry.PublishRecordEvent(ctx, telemetry.EventTypeRecordUpdated, id, "record updated")
	return nil
}

// Delete removes every record with the given id and returns how many were
// removed. Removing nothing is not an error.
func (s *Store) Delete(ctx context.Context, id string) (int, error) {
	removed := 0
	err := telemetry.RecordStoreOperation(ctx, s.backend.Name(), "delete", func(ctx context.Context) error {
		if syncer, ok := s.backend.(RecordSyncer); ok {
			if _, err := syncer.Remove(ctx, id); err != nil {
				return err
			}
		}
		kept := s.records[:0]
		for _, r := range s.records {
			if r.ID == id {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		s.records = kept
		return nil
	})
	if err != nil {
		return 0, classify(err, "delete")
	}

	s.observe(ctx)
	if removed > 0 {
		telemetry.PublishRecordEvent(ctx, telemetry.EventTypeRecordDeleted, id,
			fmt.Sprintf("%d records deleted", removed))
	}
	return removed, nil
}

// Save persists the store. Bulk backends rewrite their destination with the
// full sequence; synced backends are already up to date and Save is a no-op.
func (s *Store) Save(ctx context.Context) error {
	saver, ok := s.backend.(BulkSaver)
	if !ok || s.Synced() {
		return nil
	}

	err := telemetry.RecordStoreOperation(ctx, s.backend.Name(), "save", func(ctx context.Context) error {
		return saver.Save(ctx, s.Records())
	})
	if err != nil {
		return classify(err, "save")
	}

	telemetry.PublishStoreEvent(ctx, telemetry.EventTypeStoreSaved, s.backend.Name(),
		fmt.Sprintf("%d records saved", len(s.records)))
	return nil
}

// Display renders every record to w.
func (s *Store) Display(w io.Writer, mode DisplayMode) error {
	return Render(w, s.records, mode)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) indexOf(id string) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) observe(ctx context.Context) {
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		tel.Metrics.SetRecordCount(s.backend.Name(), float64(len(s.records)))
	}
}
