// Package indexer notifies the downstream library-indexing service after a
// batch finishes, grouped by library section.
package indexer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/kesler/mediabox/internal/config"
	"github.com/kesler/mediabox/internal/logging"
)

// client is the shared HTTP client for all scan requests. A short timeout
// keeps one unreachable indexer from stalling the end of a batch.
var client = &http.Client{Timeout: 15 * time.Second}

type scanRequest struct {
	Path          string `json:"path"`
	SmartScan     bool   `json:"smart_scan"`
	ForceThorough bool   `json:"force_thorough_refresh"`
}

// NotifyBatch groups paths by library kind (tv/movies/music/misc) and fires
// one "scan this directory" call per non-empty group, using one
// representative path from that group. Errors are logged and otherwise
// ignored: indexer notification is best-effort.
func NotifyBatch(cfg *config.Config, log *logging.Logger, paths []string) {
	if !cfg.Indexer.Enabled || cfg.Indexer.URL == "" {
		return
	}

	groups := groupByLibraryKind(cfg, paths)
	kinds := make([]string, 0, len(groups))
	for kind := range groups {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		rep := groups[kind][0]
		if err := notifyOne(cfg, rep); err != nil {
			log.Warn("indexer notify failed for %s section (%s): %v", kind, rep, err)
			continue
		}
		log.Info("notified indexer: %s section (%s)", kind, rep)
	}
}

// groupByLibraryKind buckets paths by the configured library root they fall
// under, skipping any path that matches none of them.
func groupByLibraryKind(cfg *config.Config, paths []string) map[string][]string {
	groups := map[string][]string{}
	for _, p := range paths {
		kind := cfg.LibraryKind(p)
		if kind == "" {
			continue
		}
		groups[kind] = append(groups[kind], p)
	}
	return groups
}

func notifyOne(cfg *config.Config, path string) error {
	body, err := json.Marshal(scanRequest{
		Path:          cfg.MapIndexerPath(path),
		SmartScan:     cfg.Indexer.SmartScan,
		ForceThorough: cfg.Indexer.ForceThoroughRefresh,
	})
	if err != nil {
		return fmt.Errorf("marshal scan request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, cfg.Indexer.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build scan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Indexer.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Indexer.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("scan request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("indexer returned status %d", resp.StatusCode)
	}
	return nil
}
