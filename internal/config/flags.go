package config

// This file implements CLI flag parsing and help text for the per-invocation
// surface. Persistent settings (library paths, indexer credentials) live in
// the optional YAML file loaded by LoadFile, not here.

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// ParseFlags parses os.Args into cfg. On --help or --version it prints and
// exits. On error it returns non-nil (unknown flag, unexpected positional
// argument); entry-point conflicts are checked by [Config.ValidateEntryPoint].
// version is passed from main so help text reflects the build.
func ParseFlags(cfg *Config, version string) error {
	fs := flag.NewFlagSet("mediabox", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs, version) }

	var negated negatedFlags

	fs.StringVar(&cfg.Dir, "dir", "", "Process every file under this directory")
	fs.StringVar(&cfg.File, "file", "", "Process a single file")
	fs.Var(&mediaFilterValue{&cfg.Type}, "type", "Media kind to process: video | audio | both")
	fs.BoolVar(&cfg.ForceStereo, "force-stereo", false, "Derive the dialogue-boosted stereo from the selected surround track even when an enhanced stereo track already exists")
	fs.BoolVar(&cfg.DowngradeResolution, "downgrade-resolution", false, "Downscale video above 1080p even when the skip predicate would otherwise leave it alone")

	fs.StringVar(&cfg.ConfigPath, "config", "", "Path to the YAML config file (default: search /etc/mediabox/config.yaml, ./mediabox.yaml)")
	fs.BoolVar(&cfg.CheckOnly, "check", false, "Run system diagnostics (ffmpeg/ffprobe presence, encoder capability probes) and exit")
	fs.BoolVar(&cfg.AnalyzeOnly, "analyze", false, "Probe files under --dir and print a codec/resolution/HDR table without transcoding")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&cfg.Verbose, "v", false, "Same as --verbose")
	fs.StringVar(&cfg.LogFile, "log", "", "Append line-delimited JSON logs to this file")
	fs.StringVar(&cfg.LogFile, "l", "", "Same as --log")

	fs.BoolVar(&negated.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&negated.noColor, "no-color", false, "Disable colored logs")
	fs.BoolVar(&negated.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&negated.showHelp, "help", false, "Show this help and exit")
	fs.BoolVar(&negated.showHelp, "h", false, "Same as --help")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	if negated.noColor {
		cfg.ColorMode = ColorNever
	} else if negated.forceColor {
		cfg.ColorMode = ColorAlways
	}

	if negated.showHelp {
		printUsage(fs, version)
		os.Exit(0)
	}
	if negated.showVersion {
		fmt.Fprintln(os.Stdout, "mediabox v"+version)
		os.Exit(0)
	}

	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected positional argument %q (use --dir or --file)", fs.Arg(0))
	}
	return nil
}

// negatedFlags holds boolean flags applied after Parse so defaults hold
// unless the user passes the flag.
type negatedFlags struct {
	forceColor  bool
	noColor     bool
	showVersion bool
	showHelp    bool
}

// printUsage writes help text to stderr, column-aligned for readability.
func printUsage(_ *flag.FlagSet, version string) {
	const col1 = 28
	lines := []struct {
		flags string
		desc  string
	}{
		{"", "mediabox v" + version + " — library normalizer for arbitrary downloaded media"},
		{"", ""},
		{"  mediabox --dir <path> [OPTIONS]", ""},
		{"  mediabox --file <path> [OPTIONS]", ""},
		{"", ""},
		{"Entry point", ""},
		{"  --dir <path>", "Process every file under this directory"},
		{"  --file <path>", "Process a single file"},
		{"  --type <video|audio|both>", "Media kind to process (default: both)"},
		{"", ""},
		{"Behavior", ""},
		{"  --force-stereo", "Re-derive the dialogue stereo from surround"},
		{"  --downgrade-resolution", "Downscale above 1080p unconditionally"},
		{"", ""},
		{"Display", ""},
		{"  --color", "Force colored logs"},
		{"  --no-color", "Disable colored logs"},
		{"  -v, --verbose", "Verbose output"},
		{"  -l, --log <path>", "Append JSON logs to file"},
		{"", ""},
		{"Utility", ""},
		{"  --config <path>", "Path to YAML config file"},
		{"  --analyze", "Probe files, print a codec/resolution table, exit"},
		{"  --check", "Run system diagnostics and exit"},
		{"  --version", "Print version and exit"},
		{"  -h, --help", "Show this help and exit"},
	}

	for _, l := range lines {
		switch {
		case l.flags == "" && l.desc == "":
			fmt.Fprintln(os.Stderr)
		case l.desc == "":
			fmt.Fprintln(os.Stderr, l.flags)
		case l.flags == "":
			fmt.Fprintln(os.Stderr, l.desc)
		default:
			padding := col1 - len(l.flags)
			if padding < 1 {
				padding = 1
			}
			fmt.Fprintf(os.Stderr, "%s%*s%s\n", l.flags, padding, "", l.desc)
		}
	}
}

// mediaFilterValue adapts MediaFilter for flag.Var.
type mediaFilterValue struct{ p *MediaFilter }

func (m *mediaFilterValue) String() string {
	if m.p == nil {
		return ""
	}
	return string(*m.p)
}

func (m *mediaFilterValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "video":
		*m.p = MediaVideo
	case "audio":
		*m.p = MediaAudio
	case "both":
		*m.p = MediaBoth
	default:
		return fmt.Errorf("invalid type %q (use 'video', 'audio', or 'both')", s)
	}
	return nil
}
