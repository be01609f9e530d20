// Command mediabox is the entrypoint for the media library normalizer.
// It parses flags, loads the optional config file, validates both, and
// either runs diagnostics (--check, --analyze) or the full encode pipeline.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/kesler/mediabox/internal/check"
	"github.com/kesler/mediabox/internal/config"
	"github.com/kesler/mediabox/internal/display"
	"github.com/kesler/mediabox/internal/logging"
	"github.com/kesler/mediabox/internal/pipeline"
	"github.com/kesler/mediabox/internal/term"
)

// version and commit are set at build time via -ldflags (e.g. Makefile).
var (
	version = "1.0.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so main can keep deferred cleanup
// (log file close) out of an os.Exit call, which skips defers.
func run() int {
	cfg := config.DefaultConfig()

	if err := config.ParseFlags(&cfg, version); err != nil {
		fmt.Fprintf(os.Stderr, "mediabox: %v\n", err)
		return 1
	}

	if err := config.LoadFile(&cfg, cfg.ConfigPath); err != nil {
		fmt.Fprintf(os.Stderr, "mediabox: %v\n", err)
		return 2
	}
	cfg.ApplyContainerLayout()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "mediabox: %v\n", err)
		return 2
	}

	// Bundled encoder tooling (ffmpeg/ffprobe shipped under venv_path) takes
	// precedence over whatever the host has installed.
	if cfg.VenvPath != "" {
		os.Setenv("PATH", filepath.Join(cfg.VenvPath, "bin")+string(os.PathListSeparator)+os.Getenv("PATH"))
	}

	if !cfg.CheckOnly && cfg.Dir == "" && cfg.File == "" && !cfg.AnalyzeOnly {
		promptForEntryPoint(&cfg)
	}

	if err := cfg.ValidateEntryPoint(); err != nil {
		fmt.Fprintf(os.Stderr, "mediabox: %v\n", err)
		return 1
	}

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mediabox: %v\n", err)
		return 1
	}
	defer log.Close()

	display.PrintBanner()

	if cfg.CheckOnly {
		check.RunCheck(log)
		return 0
	}

	if cfg.Dir != "" {
		cfg.Dir = config.NormalizeDirArg(cfg.Dir)
	}

	log.Info("=== mediabox v%s (%s) ===", version, commit)
	if cfg.Dir != "" {
		log.Info("Target: %s", cfg.Dir)
	} else {
		log.Info("Target: %s", cfg.File)
	}
	log.Info("")

	if _, err := check.CheckDeps(); err != nil {
		log.Error("%v", err)
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("Interrupt received, stopping the current encode and exiting…")
		cancel()
	}()

	if cfg.AnalyzeOnly {
		pipeline.Analyze(ctx, &cfg, log)
		return 0
	}

	stats := pipeline.Run(ctx, &cfg, log)
	if ctx.Err() != nil {
		return 1
	}
	if stats.Failed > 0 {
		return 1
	}
	return 0
}

// promptForEntryPoint asks interactively for a directory or file to process
// when neither --dir nor --file was given on the command line. Skipped
// entirely for --check/--analyze and when stdin isn't a TTY, so automation
// (cron, systemd timers) never blocks on a prompt it can't answer.
func promptForEntryPoint(cfg *config.Config) {
	if !term.IsTerminal(os.Stdin) {
		return
	}
	fmt.Print("No --dir or --file given. Enter a path to process: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	path := strings.TrimSpace(line)
	if path == "" {
		return
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		cfg.Dir = path
	} else {
		cfg.File = path
	}
}
