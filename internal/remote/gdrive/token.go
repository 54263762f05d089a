package gdrive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// Token file permissions.
const (
	tokenFilePerms = 0o600
	tokenDirPerms  = 0o700
)

// tokenFile is the on-disk token format.
type tokenFile struct {
	Token *oauth2.Token `json:"token"`
}

// loadToken reads a saved token. Returns (nil, nil) if the file does not
// exist.
func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("gdrive: reading token %s: %w", path, err)
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("gdrive: decoding token %s: %w", path, err)
	}

	if tf.Token == nil {
		return nil, fmt.Errorf("gdrive: %s missing token field (re-login required)", path)
	}

	return tf.Token, nil
}

// saveToken writes tok atomically (temp file and rename) with owner-only
// permissions. Never logs token values.
func saveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tokenFile{Token: tok}, "", "  ")
	if err != nil {
		return fmt.Errorf("gdrive: encoding token: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, tokenDirPerms); err != nil {
		return fmt.Errorf("gdrive: creating token directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("gdrive: creating temp token file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, tokenFilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("gdrive: setting token permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("gdrive: writing token: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("gdrive: syncing token: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("gdrive: closing token: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("gdrive: renaming token: %w", err)
	}

	success = true

	return nil
}
