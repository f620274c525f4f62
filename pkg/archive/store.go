// Package archive keeps an append-only, content-addressed copy of every
// routing decision for audit.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Load for an unknown ref.
var ErrNotFound = errors.New("archive object not found")

// Ref identifies an archived object by kind and content hash.
type Ref struct {
	Kind   string `json:"kind"`
	SHA256 string `json:"sha256"`
}

func (r Ref) String() string {
	return r.Kind + ":" + r.SHA256
}

// Store manages the content-addressed archive.
type Store struct {
	BasePath string
}

// NewStore creates a new archive store.
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		basePath = filepath.Join(home, ".switchyard", "archive")
	}

	if err := os.MkdirAll(filepath.Join(basePath, "objects"), 0755); err != nil {
		return nil, err
	}

	return &Store{BasePath: basePath}, nil
}

// StoreObject stores a JSON object by its SHA256 content hash in a sharded
// directory structure. Storing the same object twice is a no-op.
func (s *Store) StoreObject(obj any, kind string) (Ref, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return Ref{}, fmt.Errorf("marshal %s: %w", kind, err)
	}

	hashBytes := sha256.Sum256(data)
	hash := hex.EncodeToString(hashBytes[:])

	// Shard by first 2 chars
	dir := filepath.Join(s.BasePath, "objects", hash[:2])
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Ref{}, err
	}

	path := filepath.Join(dir, hash+".json")
	if _, err := os.Stat(path); err == nil {
		return Ref{Kind: kind, SHA256: hash}, nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return Ref{}, err
	}

	return Ref{Kind: kind, SHA256: hash}, nil
}

// Load reads an archived object into out.
func (s *Store) Load(hash string, out any) error {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if len(hash) != sha256.Size*2 {
		return fmt.Errorf("invalid archive hash %q", hash)
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return fmt.Errorf("invalid archive hash %q: %w", hash, err)
	}

	data, err := os.ReadFile(filepath.Join(s.BasePath, "objects", hash[:2], hash+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return err
	}
	return json.Unmarshal(data, out)
}
