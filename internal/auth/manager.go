// Package auth stores per-profile remote-store secrets: the SharePoint
// client secret or a Drive service-account key. The system keyring is
// preferred, with encrypted-file and plain-file fallbacks.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zalando/go-keyring"
)

const serviceName = "labsync"

// Secrets is the per-profile secret material for a remote store.
type Secrets struct {
	Profile string `json:"profile"`

	// ClientSecret is the Azure AD application secret (SharePoint backend)
	ClientSecret string `json:"clientSecret,omitempty"`

	// DriveCredentialsJSON is a service-account key (Drive backend)
	DriveCredentialsJSON string `json:"driveCredentialsJson,omitempty"`

	UpdatedAt string `json:"updatedAt"`
}

// Manager handles secret storage operations
type Manager struct {
	configDir      string
	useKeyring     bool
	useEncryption  bool
	storage        StorageBackend
	storageWarning string
}

// ManagerOptions configures the auth manager
type ManagerOptions struct {
	ForceEncryptedFile bool // Force use of encrypted file storage
	ForcePlainFile     bool // Force use of plain file storage (insecure, dev only)
}

// NewManager creates a new auth manager with the default backend selection
func NewManager(configDir string) *Manager {
	return NewManagerWithOptions(configDir, ManagerOptions{})
}

// NewManagerWithOptions creates a new auth manager with specific options
func NewManagerWithOptions(configDir string, opts ManagerOptions) *Manager {
	mgr := &Manager{
		configDir: configDir,
	}

	if opts.ForcePlainFile {
		mgr.storage = NewPlainFileStorage(configDir)
		mgr.storageWarning = "WARNING: Using unencrypted file storage. Secrets are stored in plain text."
	} else if opts.ForceEncryptedFile || !checkKeyringAvailable() {
		storage, err := NewEncryptedFileStorage(configDir)
		if err != nil {
			// Fall back to plain file if encryption setup fails
			mgr.storage = NewPlainFileStorage(configDir)
			mgr.storageWarning = fmt.Sprintf("WARNING: Encryption setup failed (%v). Using plain file storage.", err)
		} else {
			mgr.storage = storage
			mgr.useEncryption = true
			if !opts.ForceEncryptedFile {
				mgr.storageWarning = "INFO: System keyring not available. Using encrypted file storage."
			}
		}
	} else {
		mgr.storage = NewKeyringStorage(serviceName)
		mgr.useKeyring = true
	}

	return mgr
}

// checkKeyringAvailable tests if the system keyring is available
func checkKeyringAvailable() bool {
	testKey := "labsync-test"
	if err := keyring.Set(serviceName, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(serviceName, testKey)
	return true
}

// SaveSecrets stores secrets for a profile
func (m *Manager) SaveSecrets(profile string, secrets *Secrets) error {
	secrets.Profile = profile
	secrets.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("failed to marshal secrets: %w", err)
	}

	if err := m.storage.Save(profile, data); err != nil {
		return err
	}

	if err := m.addProfileToList(profile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to update profile list: %v\n", err)
	}

	return nil
}

// LoadSecrets loads stored secrets for a profile
func (m *Manager) LoadSecrets(profile string) (*Secrets, error) {
	data, err := m.storage.Load(profile)
	if err != nil {
		return nil, err
	}

	var secrets Secrets
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secrets: %w", err)
	}

	return &secrets, nil
}

// DeleteSecrets removes secrets for a profile
func (m *Manager) DeleteSecrets(profile string) error {
	if err := m.storage.Delete(profile); err != nil {
		return err
	}

	if err := m.removeProfileFromList(profile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to update profile list: %v\n", err)
	}

	return nil
}

// ListProfiles lists all stored secret profiles
func (m *Manager) ListProfiles() ([]string, error) {
	var profiles []string

	if m.useKeyring {
		// Keyring entries cannot be enumerated; read the tracked list
		profilesFile := filepath.Join(m.configDir, "profiles.json")
		data, err := os.ReadFile(profilesFile)
		if err != nil {
			if os.IsNotExist(err) {
				return []string{}, nil
			}
			return nil, err
		}

		if err := json.Unmarshal(data, &profiles); err != nil {
			return nil, err
		}
	} else {
		secretsDir := filepath.Join(m.configDir, "secrets")
		entries, err := os.ReadDir(secretsDir)
		if err != nil {
			if os.IsNotExist(err) {
				return []string{}, nil
			}
			return nil, err
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				name := entry.Name()
				if ext := filepath.Ext(name); ext == ".json" || ext == ".enc" {
					profiles = append(profiles, name[:len(name)-len(ext)])
				}
			}
		}
	}

	return profiles, nil
}

// addProfileToList adds a profile to the tracked list (for keyring storage)
func (m *Manager) addProfileToList(profile string) error {
	if !m.useKeyring {
		return nil
	}

	profiles, err := m.ListProfiles()
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	for _, p := range profiles {
		if p == profile {
			return nil
		}
	}

	profiles = append(profiles, profile)
	data, err := json.Marshal(profiles)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(m.configDir, "profiles.json"), data, 0600)
}

// removeProfileFromList removes a profile from the tracked list
func (m *Manager) removeProfileFromList(profile string) error {
	if !m.useKeyring {
		return nil
	}

	profiles, err := m.ListProfiles()
	if err != nil {
		return err
	}

	var updated []string
	for _, p := range profiles {
		if p != profile {
			updated = append(updated, p)
		}
	}

	data, err := json.Marshal(updated)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(m.configDir, "profiles.json"), data, 0600)
}

// UseKeyring returns whether the manager is using the system keyring
func (m *Manager) UseKeyring() bool {
	return m.useKeyring
}

// ConfigDir returns the configuration directory
func (m *Manager) ConfigDir() string {
	return m.configDir
}

// GetStorageBackend returns the name of the storage backend being used
func (m *Manager) GetStorageBackend() string {
	return m.storage.Name()
}

// GetStorageWarning returns any warning message about the storage backend
func (m *Manager) GetStorageWarning() string {
	return m.storageWarning
}
