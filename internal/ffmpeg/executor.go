package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kesler/mediabox/internal/cache"
	"github.com/kesler/mediabox/internal/check"
	"github.com/kesler/mediabox/internal/fingerprint"
	"github.com/kesler/mediabox/internal/logging"
	"github.com/kesler/mediabox/internal/naming"
	"github.com/kesler/mediabox/internal/planner"
)

// Run executes one file's plan to completion: encode to a temp path, extract
// any PGS sidecars while the source still exists, atomically rename the temp
// over the final target, rename matching sidecars, remove the source if the
// paths differ, and update the directory cache. The caller holds the file
// lock for the whole probe+plan+Run sequence. Returns the final output path.
func Run(ctx context.Context, log *logging.Logger, verbose bool, plan *planner.Plan, enc check.Encoder, store *cache.Store, fp fingerprint.Fingerprint) (string, error) {
	tmpPath := tempOutputPath(plan)
	defer os.Remove(tmpPath)

	start := time.Now()
	args := buildArgs(plan, enc, tmpPath)

	log.Debug(verbose, "running: %s", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	duration := time.Since(start)

	if runErr != nil {
		os.Remove(tmpPath)
		convErr := classifyFailure(runErr, stderr.String())
		if err := store.UpdateAfterConversion(fp, plan.InputPath, false, convErr, duration); err != nil {
			log.Error("cache update after failed conversion: %v", err)
		}
		return "", convErr
	}

	// PGS extraction reads from the source, so it has to happen before an
	// in-place rename replaces it.
	if err := extractPGSSidecars(ctx, plan); err != nil {
		log.Warn("PGS extraction incomplete for %s: %v", plan.InputPath, err)
	}

	finalPath, err := finalizeOutput(plan, tmpPath)
	if err != nil {
		return "", err
	}

	if finalPath != plan.InputPath {
		if err := os.Remove(plan.InputPath); err != nil && !os.IsNotExist(err) {
			log.Warn("could not remove original %s: %v", plan.InputPath, err)
		}
	}

	if err := store.UpdateAfterConversion(fp, finalPath, true, nil, duration); err != nil {
		log.Warn("cache update after conversion: %v", err)
	}
	return finalPath, nil
}

// buildArgs assembles the full ffmpeg command line for plan, writing to
// tmpPath.
func buildArgs(plan *planner.Plan, enc check.Encoder, tmpPath string) []string {
	args := []string{"ffmpeg", "-hide_banner", "-nostdin", "-loglevel", "error", "-i", plan.InputPath}

	if plan.OutputKind == planner.OutputAudio {
		args = append(args, "-map", "0:a:0", "-map_metadata", "0", "-c:a", "libmp3lame", "-b:a", "320k")
		args = append(args, "-y", tmpPath)
		return args
	}

	args = append(args, BuildVideoArgs(plan.VideoAction, check.VAAPIDevice)...)
	args = append(args, BuildAudioArgs(plan)...)
	args = append(args, BuildSubtitleArgs(plan.SubtitleMap)...)
	args = append(args, BuildContainerArgs()...)
	args = append(args, tmpPath)
	return args
}

// tempOutputPath derives the in-progress output name alongside the source
// file, so the atomic rename at the end lands on the same filesystem.
func tempOutputPath(plan *planner.Plan) string {
	ext := filepath.Ext(plan.InputPath)
	stem := strings.TrimSuffix(plan.InputPath, ext)
	outExt := ".mp4"
	if plan.OutputKind == planner.OutputAudio {
		outExt = ".mp3"
	}
	return stem + ".tmp" + outExt
}

// finalizeOutput renames the completed temp file over the final target,
// applying the resolution-token rewrite from plan.OutputPathTransform when
// set, and renaming any sidecar files to match.
func finalizeOutput(plan *planner.Plan, tmpPath string) (string, error) {
	dir := filepath.Dir(plan.InputPath)
	inExt := filepath.Ext(plan.InputPath)
	inStem := strings.TrimSuffix(filepath.Base(plan.InputPath), inExt)

	outStem := inStem
	if plan.OutputPathTransform != "" {
		outExt := filepath.Ext(plan.OutputPathTransform)
		outStem = strings.TrimSuffix(plan.OutputPathTransform, outExt)
	}

	outExt := ".mp4"
	if plan.OutputKind == planner.OutputAudio {
		outExt = ".mp3"
	}

	finalPath := filepath.Join(dir, outStem+outExt)

	if finalPath != plan.InputPath {
		if _, err := os.Stat(finalPath); err == nil {
			if err := os.Remove(finalPath); err != nil {
				return "", fmt.Errorf("remove existing target %s: %w", finalPath, err)
			}
		}
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("rename temp output: %w", err)
	}

	if outStem != inStem {
		if err := naming.RenameSidecars(dir, inStem, outStem); err != nil {
			return finalPath, fmt.Errorf("rename sidecars: %w", err)
		}
	}

	return finalPath, nil
}

// extractPGSSidecars runs one ffmpeg invocation per PGS subtitle stream
// scheduled for extraction, writing each as a standalone .sup sidecar next
// to the source rather than muxing it into the MP4 output.
func extractPGSSidecars(ctx context.Context, plan *planner.Plan) error {
	if len(plan.ExtractedPGS) == 0 {
		return nil
	}
	ext := filepath.Ext(plan.InputPath)
	stem := strings.TrimSuffix(plan.InputPath, ext)

	var firstErr error
	for _, pgs := range plan.ExtractedPGS {
		args, _ := BuildPGSExtractionArgs(plan.InputPath, pgs, stem)
		cmd := exec.CommandContext(ctx, args[0], args[1:]...)
		if err := cmd.Run(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("extract pgs stream %d: %w", pgs.InputIndex, err)
		}
	}
	return firstErr
}

