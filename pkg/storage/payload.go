package storage

import (
	"os"
	"path/filepath"

	"github.com/cuemby/pebblevault/pkg/vaulterrors"
)

// defaultDataRoot is the canonical on-disk payload tree root, used when a
// backend's configuration does not override it.
const defaultDataRoot = "./data"

// payloadStore is the content-addressed file tree all four backends use to
// keep large payload documents out of their row/document storage, per the
// canonical scheme: <root>/<first-two-hex-chars-of-id>/<id>. Directories are
// created on demand, writes overwrite, and deletes are idempotent.
type payloadStore struct {
	root string
}

func newPayloadStore(root string) (*payloadStore, error) {
	if root == "" {
		root = defaultDataRoot
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "create payload root %s", root)
	}
	return &payloadStore{root: root}, nil
}

// path returns the shard-relative path for id, as stored alongside the
// point row (the "data_file" column of the points table).
func (s *payloadStore) path(id string) string {
	shard := "xx"
	if len(id) >= 2 {
		shard = id[:2]
	}
	return filepath.Join(shard, id)
}

func (s *payloadStore) abs(relPath string) string {
	return filepath.Join(s.root, relPath)
}

// Write stores data at id's shard path, creating parent directories and
// overwriting any existing content, and returns the relative path to
// persist in the row.
func (s *payloadStore) Write(id string, data []byte) (string, error) {
	rel := s.path(id)
	full := s.abs(rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "create payload shard for %s", id)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "write payload for %s", id)
	}
	return rel, nil
}

// Read loads the payload referenced by relPath. A missing file surfaces as
// PayloadMissing: a reader encountering a dangling path fails with that
// error rather than BackendUnavailable.
func (s *payloadStore) Read(relPath string) ([]byte, error) {
	data, err := os.ReadFile(s.abs(relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vaulterrors.New(vaulterrors.PayloadMissing, "%s", relPath)
		}
		return nil, vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "read payload %s", relPath)
	}
	return data, nil
}

// Delete removes the payload file for id. Already-absent is success.
func (s *payloadStore) Delete(id string) error {
	full := s.abs(s.path(id))
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "delete payload for %s", id)
	}
	return nil
}

// ClearAll removes every payload file under the store's root.
func (s *payloadStore) ClearAll() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "list payload root %s", s.root)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			return vaulterrors.Wrap(vaulterrors.BackendUnavailable, err, "clear payload shard %s", e.Name())
		}
	}
	return nil
}
