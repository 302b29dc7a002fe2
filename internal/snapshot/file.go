package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultPollInterval is how often a file watcher checks for changes when
// no interval is configured.
const DefaultPollInterval = 250 * time.Millisecond

// FileStore keeps one JSON file per owner under a directory and detects
// foreign writes by polling. Writes are atomic (temp file + rename) so a
// concurrent reader never sees a half-written snapshot.
type FileStore struct {
	dir      string
	interval time.Duration

	mu        sync.Mutex
	lastWrite map[string][32]byte // ownerID -> hash of our own last write
}

// NewFileStore returns a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot.NewFileStore: %w", err)
	}
	return &FileStore{
		dir:       dir,
		interval:  DefaultPollInterval,
		lastWrite: make(map[string][32]byte),
	}, nil
}

// SetPollInterval overrides the watch polling interval. Tests use a short
// interval to keep watch assertions fast.
func (s *FileStore) SetPollInterval(d time.Duration) {
	s.interval = d
}

func (s *FileStore) path(ownerID string) string {
	// Owner IDs come from the identity provider and may contain characters
	// unsafe in filenames; hash them into a fixed-width name.
	sum := sha256.Sum256([]byte(ownerID))
	return filepath.Join(s.dir, fmt.Sprintf("%x.json", sum[:12]))
}

// Save writes the snapshot atomically and remembers its content hash so the
// watcher can tell our own writes from foreign ones.
func (s *FileStore) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap.SavedAt = time.Now().UTC()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot.FileStore.Save: marshal: %w", err)
	}

	path := s.path(snap.OwnerID)
	tmp, err := os.CreateTemp(s.dir, ".snap-*")
	if err != nil {
		return fmt.Errorf("snapshot.FileStore.Save: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("snapshot.FileStore.Save: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("snapshot.FileStore.Save: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("snapshot.FileStore.Save: rename: %w", err)
	}

	s.mu.Lock()
	s.lastWrite[snap.OwnerID] = sha256.Sum256(data)
	s.mu.Unlock()
	return nil
}

// Load reads the owner's snapshot file. A missing or undecodable file is
// reported as ok=false without an error — the caller falls back to empty
// state and a fresh remote list.
func (s *FileStore) Load(ctx context.Context, ownerID string) (Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, false, err
	}
	data, err := os.ReadFile(s.path(ownerID))
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("snapshot.FileStore.Load: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.OwnerID != ownerID {
		// Corrupt or foreign payload: treat as absent.
		return Snapshot{}, false, nil
	}
	return snap, true, nil
}

// Watch polls the owner's snapshot file and signals on every change whose
// content hash differs from this store instance's own last write.
func (s *FileStore) Watch(ctx context.Context, ownerID string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	path := s.path(ownerID)

	go func() {
		defer close(ch)
		var lastSeen [32]byte
		if data, err := os.ReadFile(path); err == nil {
			lastSeen = sha256.Sum256(data)
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			sum := sha256.Sum256(data)
			if sum == lastSeen {
				continue
			}
			lastSeen = sum

			s.mu.Lock()
			own := s.lastWrite[ownerID] == sum
			s.mu.Unlock()
			if own {
				continue
			}

			select {
			case ch <- struct{}{}:
			default:
				// A signal is already pending; coalesce.
			}
		}
	}()

	return ch, nil
}

var _ Store = (*FileStore)(nil)
