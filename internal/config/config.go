// Package config holds runtime configuration: defaults, CLI flag parsing,
// YAML file loading, and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MediaFilter selects which media kinds the orchestrator processes.
type MediaFilter string

const (
	MediaVideo MediaFilter = "video"
	MediaAudio MediaFilter = "audio"
	MediaBoth  MediaFilter = "both"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// PathMapping rewrites a host-visible path prefix to the prefix the
// downstream indexer expects.
type PathMapping struct {
	SourcePrefix  string `yaml:"source_prefix"`
	IndexerPrefix string `yaml:"indexer_prefix"`
}

// LibraryDirs maps a library kind to its absolute root directory.
type LibraryDirs struct {
	TV     string `yaml:"tv"`
	Movies string `yaml:"movies"`
	Music  string `yaml:"music"`
	Misc   string `yaml:"misc"`
}

// IndexerConfig holds the downstream library-indexer notification settings.
type IndexerConfig struct {
	URL                  string `yaml:"indexer_url"`
	Token                string `yaml:"indexer_token"`
	Enabled              bool   `yaml:"indexer_enabled"`
	SmartScan            bool   `yaml:"indexer_smart_scan"`
	ForceThoroughRefresh bool   `yaml:"indexer_force_thorough_refresh"`
}

// Config holds all runtime settings. Persistent fields (those loaded from
// the optional YAML file) are populated by [LoadFile]; per-invocation fields
// are populated by [ParseFlags]. Both layers start from [DefaultConfig].
type Config struct {
	// Per-invocation CLI surface.
	Dir                 string
	File                string
	Type                MediaFilter
	ForceStereo         bool
	DowngradeResolution bool

	// Utility / diagnostics.
	CheckOnly   bool
	AnalyzeOnly bool
	Verbose     bool
	LogFile     string
	ColorMode   ColorMode
	ConfigPath  string

	// Persistent configuration, normally sourced from a YAML file.
	VenvPath     string        `yaml:"venv_path"`
	DownloadDirs []string      `yaml:"download_dirs"`
	Libraries    LibraryDirs   `yaml:"library_dirs"`
	Indexer      IndexerConfig `yaml:",inline"`
	PathMappings []PathMapping `yaml:"path_mappings"`

	// ContainerLayout is detected, not configured: true when /scripts
	// exists, in which case empty library/download settings are filled in
	// with the fixed container paths (/tv, /movies, /music, /misc,
	// /downloads) rather than left for the operator to type out.
	ContainerLayout bool
}

// DefaultConfig returns a Config with defaults for all fields not sourced
// from a config file or CLI flag.
func DefaultConfig() Config {
	return Config{
		Type:      MediaBoth,
		ColorMode: ColorAuto,
		Indexer: IndexerConfig{
			Enabled:              true,
			SmartScan:            true,
			ForceThoroughRefresh: true,
		},
	}
}

// ApplyContainerLayout rewrites library and download roots to the fixed
// container paths when running under that layout (detected by the presence
// of /scripts). It is a no-op outside that layout and never overrides an
// explicit library_dirs/download_dirs value already set from the config
// file — detection only fills gaps left empty.
func (c *Config) ApplyContainerLayout() {
	if _, err := os.Stat("/scripts"); err != nil {
		return
	}
	c.ContainerLayout = true
	if c.Libraries.TV == "" {
		c.Libraries.TV = "/tv"
	}
	if c.Libraries.Movies == "" {
		c.Libraries.Movies = "/movies"
	}
	if c.Libraries.Music == "" {
		c.Libraries.Music = "/music"
	}
	if c.Libraries.Misc == "" {
		c.Libraries.Misc = "/misc"
	}
	if len(c.DownloadDirs) == 0 {
		c.DownloadDirs = []string{"/downloads/completed", "/downloads/incomplete"}
	}
}

// Validate checks enum fields and indexer preconditions. Errors here are
// configuration errors (exit code 2); usage errors like a missing path are
// the caller's responsibility (exit code 1) via [Config.ValidateEntryPoint].
func (c *Config) Validate() error {
	switch c.Type {
	case MediaVideo, MediaAudio, MediaBoth:
	default:
		return errors.New("invalid --type (use 'video', 'audio', or 'both')")
	}
	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return errors.New("invalid color mode")
	}
	if c.Indexer.Enabled && c.Indexer.URL != "" && c.Indexer.Token == "" {
		return errors.New("indexer_token is required when indexer notification is enabled with an indexer_url")
	}
	return nil
}

// ValidateEntryPoint ensures exactly one of --dir/--file was supplied,
// unless running in a diagnostics-only mode. --analyze accepts --dir only.
func (c *Config) ValidateEntryPoint() error {
	if c.CheckOnly {
		return nil
	}
	haveDir := c.Dir != ""
	haveFile := c.File != ""
	if c.AnalyzeOnly {
		if !haveDir {
			return errors.New("--analyze requires --dir")
		}
		return nil
	}
	if haveDir == haveFile {
		return errors.New("specify exactly one of --dir or --file")
	}
	return nil
}

// NormalizeDirArg strips trailing slashes so path comparisons and filename
// construction behave consistently. The filesystem root is returned as-is.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, string(filepath.Separator))
}

// LibraryKind classifies an absolute path by which configured library root
// it falls under, used by the Indexer Notifier to group the batch. Returns
// "" when the path matches none of the configured roots.
func (c *Config) LibraryKind(path string) string {
	roots := []struct{ root, kind string }{
		{c.Libraries.TV, "tv"},
		{c.Libraries.Movies, "movies"},
		{c.Libraries.Music, "music"},
		{c.Libraries.Misc, "misc"},
	}
	for _, r := range roots {
		if r.root == "" {
			continue
		}
		root := NormalizeDirArg(r.root)
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return r.kind
		}
	}
	return ""
}

// MapIndexerPath rewrites a host-visible path to the indexer's view of it
// using the configured prefix table. Returns the input unchanged if no
// mapping applies.
func (c *Config) MapIndexerPath(path string) string {
	for _, m := range c.PathMappings {
		if strings.HasPrefix(path, m.SourcePrefix) {
			return m.IndexerPrefix + strings.TrimPrefix(path, m.SourcePrefix)
		}
	}
	return path
}

// configError wraps a configuration-file problem so main can map it to exit
// code 2 instead of the generic usage exit code 1.
type configError struct{ err error }

func (e *configError) Error() string { return fmt.Sprintf("config: %v", e.err) }
func (e *configError) Unwrap() error { return e.err }

// IsConfigError reports whether err originated from config file loading
// ([LoadFile]); errors from [Config.Validate] are not wrapped.
func IsConfigError(err error) bool {
	var ce *configError
	return errors.As(err, &ce)
}
