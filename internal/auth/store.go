package auth

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/takak2166/onenotecli/internal/fileutil"
	"github.com/takak2166/onenotecli/internal/logger"
	"github.com/takak2166/onenotecli/internal/models"
)

// CredentialStore loads and saves the credential set
type CredentialStore interface {
	Load() (*models.Credentials, error)
	Save(*models.Credentials) error
}

// FileStore keeps the credential set in a JSON file readable only by its owner
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the credential file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the credential file. A missing, unparsable or incomplete file
// yields ErrNoSession.
func (s *FileStore) Load() (*models.Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		logger.Warn("Session file is missing or unreadable", map[string]interface{}{
			"path": s.path,
		})
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	var creds models.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		logger.Warn("Session file is not a valid credential document", map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	return &creds, nil
}

// Save writes the credential file with mode 0600
func (s *FileStore) Save(creds *models.Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := fileutil.WritePrivate(s.path, data); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	logger.Debug("Session saved", map[string]interface{}{
		"path":              s.path,
		"has_access_token":  creds.AccessToken != "",
		"has_refresh_token": creds.RefreshToken != "",
	})
	return nil
}
