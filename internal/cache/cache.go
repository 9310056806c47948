package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Extension is the artifact suffix for every stored file. The provider
// returns MP3 and the store never transcodes.
const Extension = ".mp3"

// Key derives the content address for a (text, model) pair: the lowercase
// hex SHA-256 of "model:text". The separator keeps ("ab","c") and ("a","bc")
// from colliding; provider model names never contain a colon.
func Key(text, model string) string {
	sum := sha256.Sum256([]byte(model + ":" + text))
	return hex.EncodeToString(sum[:])
}

// Store is a flat directory of immutable audio artifacts named by digest.
// The filesystem is the entire index: a file existing means a cache hit.
type Store struct {
	dir          string
	publicPrefix string
}

func New(dir, publicPrefix string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{dir: dir, publicPrefix: strings.TrimSuffix(publicPrefix, "/")}, nil
}

// Dir returns the artifact directory, for static file serving.
func (s *Store) Dir() string { return s.dir }

// Path returns the on-disk location an artifact for digest would occupy.
func (s *Store) Path(digest string) string {
	return filepath.Join(s.dir, digest+Extension)
}

// Link returns the public URL path for an artifact.
func (s *Store) Link(digest string) string {
	return path.Join(s.publicPrefix, digest+Extension)
}

// Lookup reports whether an artifact for digest already exists. Stat errors
// other than not-exist are surfaced, not swallowed.
func (s *Store) Lookup(digest string) (string, bool, error) {
	p := s.Path(digest)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return p, false, nil
		}
		return p, false, fmt.Errorf("stat artifact: %w", err)
	}
	return p, true, nil
}

// Write persists audio bytes for digest via a temp file and rename, so a
// half-written artifact never appears under its final name. Concurrent
// writers for the same digest produce identical content and the last rename
// wins, which is harmless.
func (s *Store) Write(digest string, audio []byte) error {
	tmp, err := os.CreateTemp(s.dir, digest+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(digest)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}
