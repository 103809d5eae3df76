package config

import (
	"os"
	"path/filepath"
)

// BaseDir returns $RELAY_HOME, or ~/.relay when unset.
func BaseDir() string {
	if dir := os.Getenv("RELAY_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".relay")
}

// DefaultPath returns the global config file path.
func DefaultPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// DBPath returns the record store database path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "relay.db")
}

// LogDir returns the log directory.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// LogPath returns the daemon log file path.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogDir(), "relayd.log")
}

// SocketPath returns the control socket path.
func (c *Config) SocketPath() string {
	if c.Control.Socket != "" {
		return c.Control.Socket
	}
	return filepath.Join(c.DataDir, "relayd.sock")
}

// EnsureDirs creates the data directory tree with owner-only permissions.
func (c *Config) EnsureDirs() error {
	for _, d := range []string{c.DataDir, c.LogDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}

// Dir returns the data directory.
func (c *Config) Dir() string {
	return c.DataDir
}

// LockPath returns the daemon lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "relayd.lock")
}
