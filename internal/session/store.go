package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/logger"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/types"
)

// Store keeps one encrypted cookie file per account under a directory.
// Cookie payloads are JSON sealed by the Cipher; file names carry no
// secrets beyond the account name itself.
type Store struct {
	dir    string
	cipher *Cipher
	log    zerolog.Logger
}

// NewStore builds the store, creating the directory. An empty passphrase
// disables persistence: the caller gets (nil, nil) and runs stateless.
func NewStore(conf types.SessionConf) (*Store, error) {
	if conf.Passphrase == "" {
		return nil, nil
	}
	c, err := NewCipher(conf.Passphrase)
	if err != nil {
		return nil, err
	}
	dir := conf.Dir
	if dir == "" {
		dir = ".sessions"
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session: create dir %s: %w", dir, err)
	}
	return &Store{dir: dir, cipher: c, log: logger.WithComponent("session")}, nil
}

// Save seals the cookies for an account, replacing any previous file.
func (s *Store) Save(accountID string, cookies []*http.Cookie) error {
	plain, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("session: marshal cookies for %s: %w", accountID, err)
	}
	sealed, err := s.cipher.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("session: encrypt cookies for %s: %w", accountID, err)
	}
	path := s.path(accountID)
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", path, err)
	}
	s.log.Debug().Str("account", accountID).Int("cookies", len(cookies)).Msg("Session saved")
	return nil
}

// Load returns the stored cookies, or (nil, nil) when the account has none.
// A file that fails to decrypt is an error: it means the passphrase changed
// or the file was tampered with, and the caller should not silently retry.
func (s *Store) Load(accountID string) ([]*http.Cookie, error) {
	sealed, err := os.ReadFile(s.path(accountID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read for %s: %w", accountID, err)
	}
	plain, err := s.cipher.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("session: open for %s: %w", accountID, err)
	}
	var cookies []*http.Cookie
	if err := json.Unmarshal(plain, &cookies); err != nil {
		return nil, fmt.Errorf("session: decode for %s: %w", accountID, err)
	}
	return cookies, nil
}

// Purge removes session files whose last write is older than the given age
// and reports how many were dropped.
func (s *Store) Purge(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("session: read dir %s: %w", s.dir, err)
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".session") {
			continue
		}
		info, err := ent.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, ent.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("Purged stale sessions")
	}
	return removed, nil
}

func (s *Store) path(accountID string) string {
	return filepath.Join(s.dir, sanitizeID(accountID)+".session")
}

// sanitizeID keeps the account-derived file name inside the store dir no
// matter what the account string contains.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '+'
		}
	}, id)
}
