// Package filestore keeps credentials in a single sealed file readable only by the owner.
package filestore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/academy-portal/credentials"
	perrors "github.com/jrsteele09/academy-portal/internal/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	envelopeVersion = 1
	saltLength      = 16
	keyLength       = 32
	nonceLength     = 24

	fileMode fs.FileMode = 0o600
	dirMode  fs.FileMode = 0o700
)

// ErrDecrypt is returned when the file cannot be opened with the configured secret.
var ErrDecrypt = errors.New("credential file cannot be decrypted")

var _ credentials.Store = (*Store)(nil)

type envelope struct {
	Version int    `json:"v"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Box     []byte `json:"box"`
}

// Store is a credentials.Store sealed with NaCl secretbox under an Argon2id derived key.
type Store struct {
	mu     sync.Mutex
	path   string
	salt   []byte
	key    [keyLength]byte
	values map[credentials.Key]string
}

// Open loads the sealed file at path, creating nothing until the first write.
func Open(path, secret string) (*Store, error) {
	if secret == "" {
		return nil, fmt.Errorf("[filestore Open] a credential secret is required")
	}
	s := &Store{path: path, values: make(map[credentials.Key]string)}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.salt = make([]byte, saltLength)
		if _, err := io.ReadFull(rand.Reader, s.salt); err != nil {
			return nil, fmt.Errorf("[filestore Open] salt: %w", err)
		}
		s.key = deriveKey(secret, s.salt)
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("[filestore Open] read %s: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("[filestore Open] %w: %v", ErrDecrypt, err)
	}
	if env.Version != envelopeVersion || len(env.Salt) != saltLength || len(env.Nonce) != nonceLength {
		return nil, fmt.Errorf("[filestore Open] %w: unsupported envelope", ErrDecrypt)
	}
	s.salt = env.Salt
	s.key = deriveKey(secret, env.Salt)

	var nonce [nonceLength]byte
	copy(nonce[:], env.Nonce)
	plain, ok := secretbox.Open(nil, env.Box, &nonce, &s.key)
	if !ok {
		return nil, fmt.Errorf("[filestore Open] %w", ErrDecrypt)
	}
	if err := json.Unmarshal(plain, &s.values); err != nil {
		return nil, fmt.Errorf("[filestore Open] %w: %v", ErrDecrypt, err)
	}
	return s, nil
}

func deriveKey(secret string, salt []byte) [keyLength]byte {
	var key [keyLength]byte
	copy(key[:], argon2.IDKey([]byte(secret), salt, 1, 64*1024, 4, keyLength))
	return key
}

func (s *Store) Get(_ context.Context, key credentials.Key) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key credentials.Key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.values[key]
	s.values[key] = value
	if err := s.flush(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...credentials.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := make(map[credentials.Key]string, len(keys))
	for _, k := range keys {
		if v, ok := s.values[k]; ok {
			removed[k] = v
			delete(s.values, k)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	if err := s.flush(); err != nil {
		for k, v := range removed {
			s.values[k] = v
		}
		return err
	}
	return nil
}

// flush seals the current values and atomically replaces the file. Callers hold s.mu.
func (s *Store) flush() error {
	plain, err := json.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("[filestore flush] %w: %v", perrors.ErrStorage, err)
	}
	var nonce [nonceLength]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("[filestore flush] %w: nonce: %v", perrors.ErrStorage, err)
	}
	sealed, err := json.Marshal(envelope{
		Version: envelopeVersion,
		Salt:    s.salt,
		Nonce:   nonce[:],
		Box:     secretbox.Seal(nil, plain, &nonce, &s.key),
	})
	if err != nil {
		return fmt.Errorf("[filestore flush] %w: %v", perrors.ErrStorage, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("[filestore flush] %w: %v", perrors.ErrStorage, err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("[filestore flush] %w: %v", perrors.ErrStorage, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("[filestore flush] %w: %v", perrors.ErrStorage, err)
	}
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		return fmt.Errorf("[filestore flush] %w: %v", perrors.ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("[filestore flush] %w: %v", perrors.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[filestore flush] %w: %v", perrors.ErrStorage, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("[filestore flush] %w: %v", perrors.ErrStorage, err)
	}
	return nil
}
