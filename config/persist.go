package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/tablegate/tablegate/errors"
	"github.com/tablegate/tablegate/logger"
)

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	// Rotate backups: .back3 -> delete, .back2 -> .back3, .back1 -> .back2, current -> .back1
	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		// Deletion failure should not block a config save
		logger.Warnw("Failed to delete old config backup", logger.FieldPath, back3, logger.FieldError, err)
	}

	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// Save writes settings to the given config path as TOML, backing up any
// existing file first. Settings are a nested map keyed by config section.
func Save(configPath string, settings map[string]interface{}) error {
	if configPath == "" {
		return errors.New("config path is empty")
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return errors.Wrapf(err, "failed to create config directory %s", dir)
	}

	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(configPath, data, DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write config to %s", configPath)
	}

	return nil
}

// WriteStarter writes a minimal starter config when none exists. Fails if the
// file is already present so it never clobbers a real configuration.
func WriteStarter(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return errors.Newf("config file already exists: %s", configPath)
	}

	settings := map[string]interface{}{
		"paths": map[string]interface{}{
			"output_dir": "tablegate-out",
		},
		"gate": map[string]interface{}{
			"value_column": "value",
			"row_limit":    1000,
		},
		"tool": map[string]interface{}{
			"command": "dc-import",
		},
	}
	return Save(configPath, settings)
}
