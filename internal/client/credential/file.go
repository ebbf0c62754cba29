package credential

import (
	"context"
	"crypto/cipher"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the token in a small JSON document, {"access_token": "..."}.
// When an AEAD is configured the value is sealed before it is written.
type FileStore struct {
	path string
	aead cipher.AEAD
	mu   sync.Mutex
}

var errCorruptFile = errors.New("parse credential file")

// NewFileStore returns a store backed by path. aead may be nil.
func NewFileStore(path string, aead cipher.AEAD) *FileStore {
	return &FileStore{path: path, aead: aead}
}

// Load implements Store.
func (fs *FileStore) Load(_ context.Context) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	slots, err := fs.read()
	if err != nil {
		return "", err
	}
	v, ok := slots[Key]
	if !ok || v == "" {
		return "", ErrNotFound
	}
	if fs.aead == nil {
		return v, nil
	}
	return open(fs.aead, v)
}

// Save implements Store.
func (fs *FileStore) Save(_ context.Context, token string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	slots, err := fs.read()
	if errors.Is(err, errCorruptFile) {
		slots = map[string]string{}
	} else if err != nil {
		return err
	}
	v := token
	if fs.aead != nil {
		if v, err = seal(fs.aead, token); err != nil {
			return err
		}
	}
	slots[Key] = v
	return fs.write(slots)
}

// Delete implements Store.
func (fs *FileStore) Delete(_ context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	slots, err := fs.read()
	if errors.Is(err, errCorruptFile) {
		slots = map[string]string{}
	} else if err != nil {
		return err
	} else if _, ok := slots[Key]; !ok {
		return nil
	}
	delete(slots, Key)
	if len(slots) == 0 {
		if err := os.Remove(fs.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove credential file: %w", err)
		}
		return nil
	}
	return fs.write(slots)
}

func (fs *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read credential file: %w", err)
	}
	slots := map[string]string{}
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptFile, err)
	}
	return slots, nil
}

// write replaces the file atomically.
func (fs *FileStore) write(slots map[string]string) error {
	data, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".credential-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fs.path)
}
