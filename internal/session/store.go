package session

import (
	"fmt"
	"os"
	"path/filepath"

	"support-desk-backend/internal/platform"
)

// Store persists per-tenant platform credentials as a directory of files
// under a common root (`<root>/<tenantId>/`). The presence of a tenant's
// directory is also the "has ever paired" signal the status query relies on.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) EnsureRoot() error {
	return os.MkdirAll(s.root, 0o700)
}

func (s *Store) tenantDir(tenantID string) (string, error) {
	if tenantID == "" || tenantID == "." || tenantID == ".." || tenantID != filepath.Base(tenantID) {
		return "", fmt.Errorf("invalid tenant id %q", tenantID)
	}
	return filepath.Join(s.root, tenantID), nil
}

// Exists reports whether the tenant has a credential directory on disk.
func (s *Store) Exists(tenantID string) bool {
	dir, err := s.tenantDir(tenantID)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// Load reads the tenant's credential files, creating the directory when it
// does not exist yet. A fresh tenant gets an empty AuthState, which starts
// an unpaired session.
func (s *Store) Load(tenantID string) (platform.AuthState, error) {
	dir, err := s.tenantDir(tenantID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read session dir: %w", err)
	}

	auth := make(platform.AuthState)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read credential file %s: %w", entry.Name(), err)
		}
		auth[entry.Name()] = data
	}
	return auth, nil
}

// Save writes every credential file. Files are written via a temp name and
// renamed so a crash mid-save never leaves a truncated credential behind.
func (s *Store) Save(tenantID string, auth platform.AuthState) error {
	dir, err := s.tenantDir(tenantID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	for name, data := range auth {
		if name != filepath.Base(name) {
			return fmt.Errorf("invalid credential file name %q", name)
		}
		tmp := filepath.Join(dir, name+".tmp")
		if err := os.WriteFile(tmp, data, 0o600); err != nil {
			return fmt.Errorf("write credential file %s: %w", name, err)
		}
		if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("rename credential file %s: %w", name, err)
		}
	}
	return nil
}

// Wipe deletes the tenant's credential directory. Absence of the directory
// afterwards is the terminal "de-paired" state.
func (s *Store) Wipe(tenantID string) error {
	dir, err := s.tenantDir(tenantID)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// ListTenants returns every tenant id with a credential directory, used by
// startup recovery to restore previously-paired sessions.
func (s *Store) ListTenants() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan sessions root: %w", err)
	}

	tenants := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			tenants = append(tenants, entry.Name())
		}
	}
	return tenants, nil
}
