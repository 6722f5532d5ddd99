package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// StateDirEnv moves the state directory away from ~/.config/versiond.
const StateDirEnv = EnvPrefix + "HOME"

const (
	defaultDbFile      = "database.db"
	defaultInstanceKey = "instance.key"
	hostKeyFile        = "versiondhostkey"
)

// StateDir holds the config file, database and keys when they are not
// found in the working directory. It is created on first use.
func StateDir() (string, error) {
	dir := os.Getenv(StateDirEnv)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		dir = filepath.Join(home, ".config", Name)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	return dir, nil
}

// StatePath locates a state file. Absolute paths are kept, a relative
// path wins when it exists in the working directory, anything else lands
// in StateDir with its parent directory in place.
func StatePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}
	dir, err := StateDir()
	if err != nil {
		return name
	}
	p := filepath.Join(dir, name)
	_ = os.MkdirAll(filepath.Dir(p), 0700)
	return p
}

func (c *AppConfig) DatabasePath() string {
	return StatePath(orDefault(c.Conf.DbPath, defaultDbFile))
}

func (c *AppConfig) InstanceKeyFile() string {
	return StatePath(orDefault(c.Conf.InstanceKeyPath, defaultInstanceKey))
}

// HostKeyFile is the ssh host key of the admin console.
func (c *AppConfig) HostKeyFile() string {
	return StatePath(filepath.Join(".ssh", hostKeyFile))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
