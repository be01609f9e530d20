package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPaths are searched in order when --config is not given.
var DefaultConfigPaths = []string{
	"/etc/mediabox/config.yaml",
	"mediabox.yaml",
}

// LoadFile merges persistent settings from a YAML file into cfg. Fields not
// present in the file keep whatever cfg already held (normally the
// [DefaultConfig] baseline), so a partial file is legal. A missing file at
// an explicit --config path is an error; a missing file among
// [DefaultConfigPaths] is silently skipped.
func LoadFile(cfg *Config, path string) error {
	explicit := path != ""
	if path == "" {
		for _, candidate := range DefaultConfigPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return nil
		}
		return &configError{fmt.Errorf("reading %s: %w", path, err)}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return &configError{fmt.Errorf("parsing %s: %w", path, err)}
	}
	return nil
}
