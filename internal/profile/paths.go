package profile

import (
	"os"
	"path/filepath"
)

// EnvHome overrides the base directory (default ~/.inboxsync).
const EnvHome = "INBOXSYNC_HOME"

// BaseDir returns $INBOXSYNC_HOME or ~/.inboxsync.
func BaseDir() string {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".inboxsync")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// SocketPath returns the daemon control socket for a profile.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "inboxd.sock")
}

// LockPath returns the lock file path for a profile.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// JournalPath returns the local send journal database.
func JournalPath(name string) string {
	return filepath.Join(Dir(name), "journal.db")
}

// SettingsPath returns the per-profile settings file.
func SettingsPath(name string) string {
	return filepath.Join(Dir(name), "profile.toml")
}

// EnvFilePath returns the optional per-profile .env file.
func EnvFilePath(name string) string {
	return filepath.Join(Dir(name), ".env")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "inboxd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with owner-only permissions.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}

// List returns the names of existing profiles.
func List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(BaseDir(), "profiles"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && ValidateName(e.Name()) == nil {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
