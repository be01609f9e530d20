package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kesler/mediabox/internal/cache"
	"github.com/kesler/mediabox/internal/check"
	"github.com/kesler/mediabox/internal/config"
	"github.com/kesler/mediabox/internal/display"
	"github.com/kesler/mediabox/internal/ffmpeg"
	"github.com/kesler/mediabox/internal/fingerprint"
	"github.com/kesler/mediabox/internal/hdr"
	"github.com/kesler/mediabox/internal/indexer"
	"github.com/kesler/mediabox/internal/lock"
	"github.com/kesler/mediabox/internal/logging"
	"github.com/kesler/mediabox/internal/planner"
	"github.com/kesler/mediabox/internal/probe"
)

const minFileSize = 1000

// Run is the top-level batch entry point. It sweeps stale temp output,
// discovers files, processes each one in turn, and notifies the indexer at
// the end of the batch. A per-file failure never aborts the run.
func Run(ctx context.Context, cfg *config.Config, log *logging.Logger) RunStats {
	var stats RunStats

	sweepRoot := cfg.Dir
	if sweepRoot == "" {
		sweepRoot = filepath.Dir(cfg.File)
	}
	SweepStaleTemp(sweepRoot)
	for _, root := range []string{cfg.Libraries.TV, cfg.Libraries.Movies, cfg.Libraries.Music, cfg.Libraries.Misc} {
		if root != "" && root != sweepRoot {
			SweepStaleTemp(root)
		}
	}
	if err := cache.Migrate([]string{sweepRoot}); err != nil {
		log.Warn("cache migration sweep: %v", err)
	}

	target := cfg.Dir
	if target == "" {
		target = cfg.File
	}
	files, err := Discover(target, cfg.Type)
	if err != nil {
		log.Error("File discovery failed: %v", err)
		return stats
	}

	stats.Total = len(files)
	log.Info("Found %d file(s)", stats.Total)
	fmt.Println()

	enc := check.ProbeEncoders()
	if enc.HardwareAvailable {
		log.Info("Hardware encode available: %s", enc.HardwareDevice)
	} else {
		log.Info("Hardware encode unavailable, falling back to software")
	}

	var batch []string

	for i, path := range files {
		stats.Current = i + 1

		if ctx.Err() != nil {
			log.Warn("Interrupted")
			break
		}

		processFile(ctx, cfg, log, enc, path, &stats, &batch)
	}

	cleanupCaches(log, files)
	indexer.NotifyBatch(cfg, log, batch)
	logSummary(log, &stats)
	return stats
}

// cleanupCaches drops cache entries whose file no longer exists, once per
// directory touched this batch. Conversions remove their source files, so a
// batch with any encodes leaves dead entries behind otherwise.
func cleanupCaches(log *logging.Logger, files []string) {
	seen := map[string]bool{}
	for _, f := range files {
		dir := filepath.Dir(f)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		store, err := cache.Load(dir)
		if err != nil {
			continue
		}
		if err := store.Cleanup(); err != nil {
			log.Warn("cache cleanup failed for %s: %v", dir, err)
		}
	}
}

// processFile probes, plans, and executes one file. Any failure here is
// logged and counted; it never propagates to abort the batch.
func processFile(
	ctx context.Context,
	cfg *config.Config,
	log *logging.Logger,
	enc check.Encoder,
	path string,
	stats *RunStats,
	batch *[]string,
) {
	basename := filepath.Base(path)
	log.Info("[%d/%d] %s", stats.Current, stats.Total, basename)

	fi, err := os.Stat(path)
	if err != nil {
		log.Error("file not found: %s", path)
		stats.Failed++
		return
	}
	if fi.Size() < minFileSize {
		log.Warn("file too small (possibly corrupt), skipping: %s", basename)
		stats.Skipped++
		return
	}

	fp, err := fingerprint.Of(path)
	if err != nil {
		log.Error("fingerprint failed for %s: %v", basename, err)
		stats.Failed++
		return
	}

	dir := filepath.Dir(path)
	store, err := cache.Load(dir)
	if err != nil {
		log.Warn("cache load failed for %s, proceeding without it: %v", dir, err)
	}

	if cached, ok := store.Lookup(fp); ok && cached.Action == string(planner.ActionSkip) {
		log.Info("  already normalized (cached)")
		stats.Skipped++
		return
	}

	// The lock covers the whole probe+plan+encode+rename+cache-update
	// sequence, so two workers that both got past the cache check above
	// never probe or encode the same file together.
	l := lock.New(path)
	if err := l.Acquire(ctx, false); err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			if h, ok := lock.HolderOf(path); ok {
				log.Warn("  already being processed by %s (pid %d) since %s, skipping",
					h.Hostname, h.PID, h.LockedAt.Format(time.RFC3339))
			} else {
				log.Warn("  already being processed by another worker, skipping")
			}
			stats.Locked++
			return
		}
		log.Error("  lock acquisition failed for %s: %v", basename, err)
		stats.Failed++
		return
	}
	defer l.Release()

	pr, err := probe.Run(ctx, path)
	if err != nil {
		log.Error("probe failed for %s: %v", basename, err)
		stats.Failed++
		return
	}

	logBitrateOutlier(log, pr)

	plan := buildPlanFor(path, pr, enc, cfg)

	if err := store.Put(fp, cacheEntryFor(path, fp, pr, plan)); err != nil {
		log.Warn("cache write failed for %s: %v", basename, err)
	}

	if plan.Skip {
		log.Info("  skip: %s", plan.SkipReason)
		stats.Skipped++
		return
	}

	log.Info("  %s", string(plan.Action))

	start := time.Now()
	finalPath, err := ffmpeg.Run(ctx, log, cfg.Verbose, plan, enc, store, fp)
	if err != nil {
		log.Error("  encode failed: %v", err)
		stats.Failed++
		return
	}
	elapsed := time.Since(start)

	var outSize int64
	if info, err := os.Stat(finalPath); err == nil {
		outSize = info.Size()
	}

	stats.TotalInputBytes += fi.Size()
	stats.TotalOutputBytes += outSize
	stats.Encoded++
	*batch = append(*batch, finalPath)

	log.Success("  done in %s", display.FormatDuration(elapsed.Seconds()))
}

func buildPlanFor(path string, pr *probe.Probe, enc check.Encoder, cfg *config.Config) *planner.Plan {
	if pr.PrimaryVideo() == nil {
		codec := ""
		if audios := pr.Audios(); len(audios) > 0 {
			codec = audios[0].Codec
		}
		return planner.BuildAudioOnlyPlan(path, codec)
	}
	return planner.BuildPlan(path, pr, enc, cfg.ForceStereo, cfg.DowngradeResolution)
}

func cacheEntryFor(path string, fp fingerprint.Fingerprint, pr *probe.Probe, plan *planner.Plan) cache.Entry {
	e := cache.Entry{
		FileName:      filepath.Base(path),
		FileSize:      fp.Size,
		FileMtime:     fp.ModTime,
		Action:        string(plan.Action),
		LastProcessed: time.Now().UTC().Format(time.RFC3339),
	}

	if v := pr.PrimaryVideo(); v != nil {
		e.CodecVideo = v.Codec
		e.Width, e.Height = v.Width, v.Height
		e.Resolution = pr.Resolution()
		e.ColorTransfer = v.ColorTransfer
		e.ColorPrimaries = v.ColorPrimaries
		e.ColorSpace = v.ColorSpace

		info := hdr.Classify(v)
		e.IsHDR = info.IsHDR
		e.BitDepth = info.BitDepth
		if info.IsHDR {
			e.HDRType = string(info.Kind)
		}
	}

	audios := pr.Audios()
	if len(audios) > 0 {
		e.CodecAudio = audios[0].Codec
	}
	var channels, layouts []string
	for _, a := range audios {
		channels = append(channels, strconv.Itoa(a.Channels))
		layouts = append(layouts, a.ChannelLayout)
		switch {
		case a.Channels == 2:
			e.HasStereoTrack = true
		case a.Channels >= 6:
			e.HasSurroundTrack = true
		}
	}
	e.AudioChannels = strings.Join(channels, ",")
	e.AudioLayout = strings.Join(layouts, ",")

	e.Duration = pr.Format.Duration
	e.Bitrate = pr.Format.BitRate
	return e
}

// Bitrate outlier thresholds by resolution tier (pixels -> low/high kbps).
// Flags a source whose container bitrate looks unusually thin or bloated
// for its resolution; informational only, never affects the decision
// engine.
type bitrateTier struct {
	maxPixels int
	lowKbps   int64
	highKbps  int64
	label     string
}

var bitrateTiers = []bitrateTier{
	{640 * 360, 250, 1800, "<=360p"},
	{854 * 480, 500, 2500, "<=480p"},
	{1280 * 720, 1000, 5000, "<=720p"},
	{1920 * 1080, 2500, 10000, "<=1080p"},
	{2560 * 1440, 5000, 18000, "<=1440p"},
	{3840 * 2160, 10000, 45000, "<=2160p"},
}

func logBitrateOutlier(log *logging.Logger, pr *probe.Probe) {
	v := pr.PrimaryVideo()
	if v == nil || v.Width <= 0 || v.Height <= 0 {
		return
	}
	bitrateKbps := pr.Format.BitRate / 1000
	if bitrateKbps <= 0 {
		return
	}

	pixels := v.Width * v.Height
	var low, high int64
	var label string
	for _, t := range bitrateTiers {
		if pixels <= t.maxPixels {
			low, high, label = t.lowKbps, t.highKbps, t.label
			break
		}
	}
	if label == "" {
		low, high, label = 15000, 65000, ">2160p"
	}

	if bitrateKbps < low {
		log.Outlier("  bitrate outlier (low): %d kb/s for %s; expected %d-%d kb/s (%s)",
			bitrateKbps, pr.Resolution(), low, high, label)
	} else if bitrateKbps > high {
		log.Outlier("  bitrate outlier (high): %d kb/s for %s; expected %d-%d kb/s (%s)",
			bitrateKbps, pr.Resolution(), low, high, label)
	}
}

func logSummary(log *logging.Logger, stats *RunStats) {
	fmt.Println()
	log.Info("==============================")
	log.Info("Done: %d encoded, %d skipped, %d locked, %d failed",
		stats.Encoded, stats.Skipped, stats.Locked, stats.Failed)

	saved := stats.SpaceSaved()
	if saved >= 0 {
		log.Success("Space saved: %s (input %s -> output %s)",
			display.FormatBytes(saved),
			display.FormatBytes(stats.TotalInputBytes),
			display.FormatBytes(stats.TotalOutputBytes))
	} else {
		log.Warn("Space delta: %s (outputs grew)", display.FormatBytesWithSign(-saved))
	}
}
