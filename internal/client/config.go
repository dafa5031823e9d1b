package client

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the terminal client's persisted settings, stored at
// ~/.config/chatrelay/config.toml.
type Config struct {
	ServerURL string `toml:"server_url"`
	Email     string `toml:"email"`
	Token     string `toml:"token"`
}

func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "chatrelay"), nil
}

func configPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LoadConfig reads the config file. A missing file is not an error; defaults
// come back instead.
func LoadConfig() (Config, error) {
	cfg := Config{ServerURL: "http://localhost:8080"}

	path, err := configPath()
	if err != nil {
		return cfg, err
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes the config file, creating the directory on first use.
func SaveConfig(cfg Config) error {
	dir, err := configDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	path := filepath.Join(dir, "config.toml")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// DraftPath is where the unsent input draft is mirrored so it survives a
// restart.
func DraftPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "draft"), nil
}
