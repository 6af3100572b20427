package csvstore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"splatchain-ledger/internal/core/domain"
	"splatchain-ledger/pkg/apperror"
)

// FileStore implements ports.WalletStore on a CSV file. Writes go to a
// temporary file in the same directory which then replaces the ledger, so a
// crash mid-write never leaves a truncated file behind.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store for the CSV file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Location returns the file path.
func (s *FileStore) Location() string {
	return s.path
}

// Load decodes the whole file.
func (s *FileStore) Load(ctx context.Context) ([]domain.WalletRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.ErrPersistence(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("opening ledger: %w", err))
	}
	defer f.Close()

	records, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("decoding %s: %w", s.path, err))
	}
	if len(records) == 0 {
		return nil, apperror.ErrEmptyStore(s.path)
	}
	return records, nil
}

// Save replaces the file with wallets.
func (s *FileStore) Save(ctx context.Context, wallets []domain.Wallet) error {
	if err := ctx.Err(); err != nil {
		return apperror.ErrPersistence(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeAtomic(wallets); err != nil {
		return apperror.ErrPersistence(err)
	}
	return nil
}

func (s *FileStore) writeAtomic(wallets []domain.Wallet) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	cleanup := func() {
		_ = os.Remove(tmp.Name())
	}

	w := bufio.NewWriter(tmp)
	if err := Encode(w, wallets); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("chmod ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
