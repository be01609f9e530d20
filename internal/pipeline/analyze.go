package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kesler/mediabox/internal/check"
	"github.com/kesler/mediabox/internal/config"
	"github.com/kesler/mediabox/internal/display"
	"github.com/kesler/mediabox/internal/hdr"
	"github.com/kesler/mediabox/internal/logging"
	"github.com/kesler/mediabox/internal/probe"
	"github.com/kesler/mediabox/internal/term"
)

// analyzeRow holds the probed per-file data for the analysis table.
type analyzeRow struct {
	Name       string
	Resolution string
	VideoCodec string
	VideoKbps  int64 // container-level bitrate; per-stream video bitrate isn't exposed by the inspector
	AudioDesc  string // e.g. "aac 2ch" or "truehd 8ch"
	HDRDesc    string // e.g. "HDR10 10-bit", "-" for SDR
	Verdict    string // what the decision engine would do with this file
	WouldSkip  bool
}

// Analyze probes every discovered file and prints a codec/resolution/HDR
// table with the decision engine's verdict per file, without transcoding
// anything. Bitrate outliers are highlighted using IQR fences over the
// probed set, so an operator can spot the one bloated remux in a season
// before kicking off a batch.
func Analyze(ctx context.Context, cfg *config.Config, log *logging.Logger) {
	files, err := Discover(cfg.Dir, cfg.Type)
	if err != nil {
		log.Error("File discovery failed: %v", err)
		return
	}
	if len(files) == 0 {
		log.Warn("No media files found in %s", cfg.Dir)
		return
	}

	total := len(files)
	log.Info("Analyzing %d files in %s …", total, cfg.Dir)
	fmt.Println()

	// The verdict column assumes the software encoder: analysis must not
	// depend on which box it runs on, and the encoder choice never changes
	// whether a file needs work, only how it's done.
	enc := check.Encoder{SoftwareAvailable: true}

	isTTY := term.IsTerminal(os.Stdout)
	var rows []analyzeRow
	var skipped int
	var kbpsVals []float64

	for i, path := range files {
		if ctx.Err() != nil {
			if isTTY {
				clearProgress()
			}
			log.Warn("Interrupted")
			return
		}

		printProgress(isTTY, i+1, total, skipped, filepath.Base(path))

		pr, err := probe.Run(ctx, path)
		if err != nil {
			skipped++
			if isTTY {
				clearProgress()
			}
			log.Warn("Skip (probe failed): %s", filepath.Base(path))
			continue
		}

		rows = append(rows, buildAnalyzeRow(path, pr, enc, cfg))
		if kbps := pr.Format.BitRate / 1000; kbps > 0 {
			kbpsVals = append(kbpsVals, float64(kbps))
		}
	}

	if isTTY {
		clearProgress()
	}

	if len(rows) == 0 {
		log.Warn("No files could be probed")
		return
	}

	stats := computeStats(kbpsVals)
	outliers, extremes := printAnalysisTable(rows, stats)
	printAnalysisSummary(log, rows, skipped, outliers, extremes, stats)
}

func buildAnalyzeRow(path string, pr *probe.Probe, enc check.Encoder, cfg *config.Config) analyzeRow {
	row := analyzeRow{Name: filepath.Base(path), HDRDesc: "-"}

	v := pr.PrimaryVideo()
	if v != nil {
		row.VideoCodec = v.Codec
		row.VideoKbps = pr.Format.BitRate / 1000
		row.Resolution = pr.Resolution()
		if info := hdr.Classify(v); info.IsHDR {
			row.HDRDesc = fmt.Sprintf("%s %d-bit", info.Kind, info.BitDepth)
		}
	}
	if audios := pr.Audios(); len(audios) > 0 {
		a := audios[0]
		row.AudioDesc = fmt.Sprintf("%s %dch", a.Codec, a.Channels)
		if a.BitRate > 0 {
			row.AudioDesc += fmt.Sprintf(" %dk", a.BitRate/1000)
		}
	}

	plan := buildPlanFor(path, pr, enc, cfg)
	row.WouldSkip = plan.Skip
	if plan.Skip {
		row.Verdict = "ok: " + plan.SkipReason
	} else {
		row.Verdict = string(plan.Action)
	}
	return row
}

// iqrBounds holds the IQR-based thresholds for outlier classification.
type iqrBounds struct {
	q1, q3    float64
	outlierLo float64 // Q1 - 1.5*IQR
	outlierHi float64 // Q3 + 1.5*IQR
	extremeLo float64 // Q1 - 3.0*IQR
	extremeHi float64 // Q3 + 3.0*IQR
	valid     bool
}

func computeStats(vals []float64) iqrBounds {
	if len(vals) < 4 {
		return iqrBounds{}
	}

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	q1 := percentile(sorted, 25)
	q3 := percentile(sorted, 75)
	iqr := q3 - q1

	return iqrBounds{
		q1:        q1,
		q3:        q3,
		outlierLo: q1 - 1.5*iqr,
		outlierHi: q3 + 1.5*iqr,
		extremeLo: q1 - 3.0*iqr,
		extremeHi: q3 + 3.0*iqr,
		valid:     iqr > 0,
	}
}

// classify returns "" (normal), "outlier", or "extreme" for a value.
func (b *iqrBounds) classify(v float64) string {
	if !b.valid || v <= 0 {
		return ""
	}
	if v < b.extremeLo || v > b.extremeHi {
		return "extreme"
	}
	if v < b.outlierLo || v > b.outlierHi {
		return "outlier"
	}
	return ""
}

type analyzeColumn struct {
	header string
	width  int
	value  func(*analyzeRow) string
}

func printAnalysisTable(rows []analyzeRow, stats iqrBounds) (outliers, extremes int) {
	cols := []analyzeColumn{
		{header: "File", value: func(r *analyzeRow) string { return r.Name }},
		{header: "Resolution", value: func(r *analyzeRow) string { return r.Resolution }},
		{header: "Video", value: func(r *analyzeRow) string { return r.VideoCodec }},
		{header: "Bitrate", value: func(r *analyzeRow) string { return display.FormatBitrateLabel(r.VideoKbps) }},
		{header: "Audio", value: func(r *analyzeRow) string { return r.AudioDesc }},
		{header: "HDR", value: func(r *analyzeRow) string { return r.HDRDesc }},
		{header: "Verdict", value: func(r *analyzeRow) string { return r.Verdict }},
	}

	const maxNameWidth = 45
	for c := range cols {
		cols[c].width = len(cols[c].header)
		for r := range rows {
			if w := len(cols[c].value(&rows[r])); w > cols[c].width {
				cols[c].width = w
			}
		}
	}
	if cols[0].width > maxNameWidth {
		cols[0].width = maxNameWidth
	}

	var header strings.Builder
	header.WriteString(" ")
	for _, c := range cols {
		fmt.Fprintf(&header, " %-*s ", c.width, c.header)
	}
	separator := "  " + strings.Repeat("─", header.Len()-2)

	fmt.Println(header.String())
	fmt.Println(separator)

	for r := range rows {
		row := &rows[r]
		class := stats.classify(float64(row.VideoKbps))
		switch class {
		case "extreme":
			extremes++
		case "outlier":
			outliers++
		}

		var line strings.Builder
		line.WriteString(" ")
		for c := range cols {
			cell := cols[c].value(row)
			if c == 0 && len(cell) > cols[c].width {
				cell = cell[:cols[c].width-1] + "…"
			}
			padded := fmt.Sprintf(" %-*s ", cols[c].width, cell)
			// Color after padding: %-*s counts escape bytes as visible width.
			if cols[c].header == "Bitrate" {
				padded = colorize(padded, class)
			}
			if cols[c].header == "Verdict" && !row.WouldSkip {
				padded = term.Orange + padded + term.NC
			}
			line.WriteString(padded)
		}
		fmt.Println(line.String())
	}

	fmt.Println(separator)
	fmt.Printf("  %d file(s)\n", len(rows))
	fmt.Println()
	return outliers, extremes
}

func printAnalysisSummary(log *logging.Logger, rows []analyzeRow, skipped, outliers, extremes int, stats iqrBounds) {
	needsWork := 0
	for i := range rows {
		if !rows[i].WouldSkip {
			needsWork++
		}
	}

	log.Info("Results: %d probed, %d skipped, %d would convert, %d already normalized",
		len(rows), skipped, needsWork, len(rows)-needsWork)

	if stats.valid {
		log.Info("  Bitrate kbps — Q1: %.0f  Q3: %.0f  (outlier < %.0f or > %.0f)",
			stats.q1, stats.q3, stats.outlierLo, stats.outlierHi)
	} else {
		log.Info("  Not enough data for outlier detection (need >= 4 files)")
	}

	if outliers > 0 {
		log.Outlier("  %d bitrate outlier(s) highlighted", outliers)
	}
	if extremes > 0 {
		log.Error("  %d extreme bitrate outlier(s) highlighted", extremes)
	}
	if outliers == 0 && extremes == 0 && stats.valid {
		log.Success("  No bitrate outliers detected")
	}
}

func colorize(s, class string) string {
	switch class {
	case "extreme":
		return term.Red + s + term.NC
	case "outlier":
		return term.Orange + s + term.NC
	default:
		return s
	}
}

// printProgress shows a live probe counter. On a TTY it writes an
// inline \r-overwritten line; otherwise it is a no-op (the skip warnings
// already provide enough breadcrumbs in piped/logged output).
func printProgress(isTTY bool, current, total, skipped int, name string) {
	if !isTTY {
		return
	}
	pct := current * 100 / total
	status := fmt.Sprintf("  Probing [%d/%d] %d%% ", current, total, pct)
	if skipped > 0 {
		status += fmt.Sprintf("(%d skipped) ", skipped)
	}

	maxName := 40
	if len(name) > maxName {
		name = name[:maxName-1] + "…"
	}
	status += name

	if len(status) < 80 {
		status += strings.Repeat(" ", 80-len(status))
	}
	fmt.Fprintf(os.Stdout, "\r%s", status)
}

// clearProgress erases the inline progress line on a TTY.
func clearProgress() {
	fmt.Fprintf(os.Stdout, "\r%s\r", strings.Repeat(" ", 80))
}

// percentile computes the p-th percentile using linear interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi || hi >= len(sorted) {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
