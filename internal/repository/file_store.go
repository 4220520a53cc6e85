package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// FileStore keeps the reservation snapshot in a single JSON file.  Saves
// go to a temporary file in the same directory which is fsynced and then
// renamed over the target, so a crash mid-write leaves the previous
// snapshot intact.
type FileStore struct {
	path string
	log  *slog.Logger
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithLogger sets the logger that reports snapshots committed without a
// durable directory entry.
func WithLogger(log *slog.Logger) FileStoreOption {
	return func(s *FileStore) { s.log = log }
}

// NewFileStore returns a FileStore writing to path.  The parent directory
// is created on first save if missing.
func NewFileStore(path string, opts ...FileStoreOption) *FileStore {
	s := &FileStore{path: path, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the snapshot.  A missing file is an empty ledger.  An
// undecodable file yields an empty mapping and an error wrapping
// model.ErrMalformed.
func (s *FileStore) Load(ctx context.Context) (map[string]model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]model.Reservation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	reservations, err := decodeSnapshot(data)
	if err != nil {
		return map[string]model.Reservation{}, fmt.Errorf("%s: %w", s.path, err)
	}
	return reservations, nil
}

// Save replaces the snapshot.  The rename is the commit point: if ctx is
// done before it, the temporary file is discarded and the previous
// snapshot stays in place.
func (s *FileStore) Save(ctx context.Context, reservations map[string]model.Reservation) error {
	data, err := encodeSnapshot(reservations)
	if err != nil {
		return fmt.Errorf("encoding reservations: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temporary snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temporary snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temporary snapshot: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("snapshot not committed: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("renaming snapshot into place: %w", err)
	}
	committed = true

	// The rename already committed; a failed directory sync only means the
	// new entry may not survive a power loss.
	if err := syncDir(dir); err != nil {
		s.log.Warn("snapshot directory not synced", "path", s.path, "err", err)
	}
	return nil
}

var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
