package clearance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"profitsniffer/internal/application/port"
	"profitsniffer/internal/domain/model"
)

// FilePersister keeps the credentials in a small JSON document:
// {"cf_clearance": "...", "user_agent": "..."}.
type FilePersister struct {
	path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (f *FilePersister) LoadCredentials(ctx context.Context) (model.Credentials, bool, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return model.Credentials{}, false, nil
	}
	if err != nil {
		return model.Credentials{}, false, fmt.Errorf("read %s: %w", f.path, err)
	}
	var c model.Credentials
	if err := json.Unmarshal(b, &c); err != nil {
		return model.Credentials{}, false, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return c, c.Valid(), nil
}

// SaveCredentials writes to a temp file and renames it over the target.
func (f *FilePersister) SaveCredentials(ctx context.Context, c model.Credentials) error {
	if dir := filepath.Dir(f.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

var _ port.CredentialPersister = (*FilePersister)(nil)
