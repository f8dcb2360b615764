package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/halcyard/webwrap/internal/validate"
)

// Data represents the structure of the state file.
type Data struct {
	InstallID string `json:"install_id,omitempty" validate:"omitempty,uuid_rfc4122"`
	// AllowedHosts are extra hosts the viewer may navigate to beyond the
	// target host. Entries are normalized by the allowlist package.
	AllowedHosts []string `json:"allowed_hosts,omitempty"`
	LastVisited  string   `json:"last_visited,omitempty" validate:"omitempty,url"`
}

// Storage handles the loading and saving of the state file.
type Storage struct {
	Path string `validate:"required,filepath"`
	Data Data
}

// NewStorage creates a new Storage instance.
func NewStorage(path string) (*Storage, error) {
	expandedPath, err := expandTilde(path)
	if err != nil {
		return nil, err
	}

	s := &Storage{
		Path: expandedPath,
		Data: Data{},
	}

	if err := s.Load(); err != nil {
		// If the file doesn't exist, we can ignore the error.
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Ensure an install ID is present; generate one on first run.
	if s.Data.InstallID == "" {
		s.Data.InstallID = uuid.NewString()
	}

	return s, nil
}

// NewOrExistingStorage returns existing storage if the file exists, or creates a new one otherwise.
// When creating a new storage, it writes the initial structure to disk immediately
// so the generated install ID is stable across runs.
func NewOrExistingStorage(path string) (*Storage, error) {
	expandedPath, err := expandTilde(path)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(expandedPath); err == nil {
		// State already exists, load it.
		return NewStorage(path)
	} else if os.IsNotExist(err) {
		// State doesn't exist, create it.
		s, err := NewStorage(path)
		if err != nil {
			return nil, err
		}
		if err := s.Save(); err != nil {
			return nil, err
		}
		return s, nil
	} else {
		return nil, err
	}
}

// Load reads the state file and self-heals invalid contents where possible.
// A corrupt file is replaced with a fresh state rather than surfaced as an
// error; the shell should never fail to start over its own bookkeeping.
func (s *Storage) Load() error {
	logrus.Debug("Loading state file from: ", s.Path)
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, &s.Data); err != nil {
		logrus.Warn("State file is not valid JSON; resetting.")
		s.Data = Data{InstallID: uuid.NewString()}
		return s.Save()
	}

	// Validate loaded data and self-heal when possible.
	if err := validate.Struct(s.Data); err != nil {
		changed := false
		if s.Data.InstallID == "" || validate.Var(s.Data.InstallID, "uuid_rfc4122") != nil {
			s.Data.InstallID = uuid.NewString()
			changed = true
		}
		if s.Data.LastVisited != "" && validate.Var(s.Data.LastVisited, "url") != nil {
			logrus.Warn("Invalid last_visited found in state; clearing.")
			s.Data.LastVisited = ""
			changed = true
		}
		if changed {
			if err := s.Save(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Save writes the state data to the file.
func (s *Storage) Save() error {
	logrus.Debug("Saving state file to: ", s.Path)
	// Ensure parent directory exists.
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.Data, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.Path, data, 0o600)
}

// expandTilde expands the tilde in a path to the user's home directory.
func expandTilde(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, path[1:]), nil
}
