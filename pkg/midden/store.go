package midden

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get operations when no event exists under the
// requested id. Use IsNotFound to check for it.
var ErrNotFound = errors.New("event not found")

// IsNotFound returns true if the error means "no such event".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store persists events as discrete JSON files under a shared data
// directory. It is the only synchronization medium between agent processes:
// there is no database and no lock manager. Crash- and concurrency-safety
// rest on every write going through a temp-write-then-atomic-rename and on
// every mutation being safe to lose a race on.
//
// Layout:
//
//	{dataDir}/pending/{id}.json          awaiting full consumption
//	{dataDir}/archive/{id}.json          consumed by all expected consumers
//	{dataDir}/archive/corrupted-{name}   quarantined unparseable records
type Store struct {
	dataDir string
}

// NewStore creates a store rooted at dataDir. The directory layout is not
// touched until EnsureLayout is called.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}
	return &Store{dataDir: dataDir}, nil
}

// DataDir returns the store's root directory.
func (s *Store) DataDir() string {
	return s.dataDir
}

// PendingDir returns the directory holding events awaiting consumption.
func (s *Store) PendingDir() string {
	return filepath.Join(s.dataDir, "pending")
}

// ArchiveDir returns the directory holding fully consumed events.
func (s *Store) ArchiveDir() string {
	return filepath.Join(s.dataDir, "archive")
}

// EnsureLayout idempotently creates the pending and archive directories.
// Failure here is a startup precondition violation: callers must treat it as
// fatal rather than retry.
func (s *Store) EnsureLayout() error {
	for _, dir := range []string{s.PendingDir(), s.ArchiveDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create event directory %s: %w", dir, err)
		}
	}
	return nil
}

// Create writes a new event into the pending directory. Publishing the same
// id twice is a logged no-op, never an overwrite: the first publish wins.
// The event is validated before anything touches disk.
func (s *Store) Create(e *Event) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	target := filepath.Join(s.PendingDir(), eventFileName(e.ID))
	if _, err := os.Stat(target); err == nil {
		log.Printf("[Store] Event %s already exists, skipping duplicate publish", e.ID)
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check for existing event %s: %w", e.ID, err)
	}

	if err := s.writeAtomic(s.PendingDir(), e); err != nil {
		return fmt.Errorf("failed to create event %s: %w", e.ID, err)
	}

	return nil
}

// Update rewrites an existing pending event (in practice: its grown
// processedBy set). If the event has vanished because another consumer
// archived it first, the update is a benign no-op: this consumer's append
// either already made it to the archived copy or was superseded.
func (s *Store) Update(e *Event) error {
	target := filepath.Join(s.PendingDir(), eventFileName(e.ID))
	if _, err := os.Stat(target); os.IsNotExist(err) {
		log.Printf("[Store] Event %s no longer pending, skipping update", e.ID)
		return nil
	}

	if err := s.writeAtomic(s.PendingDir(), e); err != nil {
		return fmt.Errorf("failed to update event %s: %w", e.ID, err)
	}

	return nil
}

// Archive relocates an event from pending to archive: read full contents,
// write the archive copy, delete the pending file. Deliberately not a
// rename across directories, which is not guaranteed atomic on every
// backend. A source that is already gone means another consumer won the
// archival race; that is a no-op, not an error.
func (s *Store) Archive(id string) error {
	e, err := s.GetPending(id)
	if err != nil {
		if IsNotFound(err) {
			log.Printf("[Store] Event %s already archived by another consumer", id)
			return nil
		}
		return fmt.Errorf("failed to read event %s for archival: %w", id, err)
	}

	if err := s.writeAtomic(s.ArchiveDir(), e); err != nil {
		return fmt.Errorf("failed to write archive copy of %s: %w", id, err)
	}

	if err := os.Remove(filepath.Join(s.PendingDir(), eventFileName(id))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pending copy of %s: %w", id, err)
	}

	return nil
}

// ListPending enumerates all valid events in the pending directory, in no
// particular order. In-flight temp files are skipped. A file that fails to
// parse or validate is quarantined into the archive directory as
// corrupted-{name} and enumeration continues past it; one bad record never
// blocks the pipeline.
func (s *Store) ListPending() ([]*Event, error) {
	return s.list(s.PendingDir(), true)
}

// ListArchived enumerates all events in the archive directory, skipping
// quarantined corrupted-* files.
func (s *Store) ListArchived() ([]*Event, error) {
	return s.list(s.ArchiveDir(), false)
}

// GetPending reads one event from the pending directory.
// Returns ErrNotFound if no such event is pending.
func (s *Store) GetPending(id string) (*Event, error) {
	return readEvent(filepath.Join(s.PendingDir(), eventFileName(id)))
}

// GetArchived reads one event from the archive directory.
// Returns ErrNotFound if no such event has been archived.
func (s *Store) GetArchived(id string) (*Event, error) {
	return readEvent(filepath.Join(s.ArchiveDir(), eventFileName(id)))
}

// list enumerates a directory of event files. quarantine controls whether
// malformed files are moved aside (pending) or merely skipped (archive).
func (s *Store) list(dir string, quarantine bool) ([]*Event, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s: %w", dir, err)
	}

	var events []*Event
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || isTransientName(name) || !strings.HasSuffix(name, ".json") {
			continue
		}
		if strings.HasPrefix(name, "corrupted-") {
			continue
		}

		e, err := readEvent(filepath.Join(dir, name))
		if err != nil {
			if IsNotFound(err) {
				// Vanished between ReadDir and read: archival race, skip
				continue
			}
			if quarantine {
				s.quarantine(dir, name, err)
			} else {
				log.Printf("[Store] Skipping malformed archived event %s: %v", name, err)
			}
			continue
		}

		events = append(events, e)
	}

	return events, nil
}

// quarantine moves a malformed file into the archive directory under a
// corrupted- prefix so operators can inspect it without it re-entering the
// pipeline. Quarantine failures are logged, never fatal: the file is simply
// skipped again on the next cycle.
func (s *Store) quarantine(dir, name string, cause error) {
	src := filepath.Join(dir, name)
	dst := filepath.Join(s.ArchiveDir(), "corrupted-"+name)

	log.Printf("[Store] Quarantining malformed event file %s: %v", name, cause)

	if err := os.Rename(src, dst); err != nil && !os.IsNotExist(err) {
		log.Printf("[Store] Failed to quarantine %s: %v", name, err)
	}
}

// writeAtomic persists an event into dir without any reader ever observing a
// partial write: marshal, write to a uniquely named dot-prefixed temp file
// in the same directory, then rename into place. Rename within a directory
// is atomic at the filesystem layer.
func (s *Store) writeAtomic(dir string, e *Event) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	nonce := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", e.ID, nonce))

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmp, filepath.Join(dir, eventFileName(e.ID))); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move temp file into place: %w", err)
	}

	return nil
}

// readEvent reads and structurally validates one event file.
func readEvent(path string) (*Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("event file %s failed validation: %w", filepath.Base(path), err)
	}

	return &e, nil
}

// eventFileName maps an event id to its on-disk resource name.
func eventFileName(id string) string {
	return id + ".json"
}

// isTransientName reports whether a directory entry is an in-progress write
// artifact that must never be enumerated as a candidate record.
func isTransientName(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp")
}
