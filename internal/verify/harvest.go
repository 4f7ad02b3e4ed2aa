package verify

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// harvestCacheName is the filelist cache written next to the harvest files.
// Scanning a full OAI-PMH dump takes minutes; the subset of pages that
// mention a catalog link is stable between harvests, so reruns reuse it.
const harvestCacheName = "bibbi_list.json"

// localLinkMarker is the cheap pre-filter for harvest pages: any record
// carrying a catalog link has a 024 subfield $2 with this vocabulary code.
const localLinkMarker = ">bibbi<"

// FindHarvestFiles walks dir for XML harvest pages that mention at least one
// catalog link. With useCache, a previously written filelist is reused and
// refreshed after a fresh scan.
func FindHarvestFiles(dir string, useCache bool, logger *slog.Logger) ([]string, error) {
	cachePath := filepath.Join(dir, harvestCacheName)
	if useCache {
		if files, err := loadHarvestCache(cachePath); err == nil {
			logger.Info("reusing harvest filelist cache",
				slog.String("path", cachePath),
				slog.Int("files", len(files)))
			return files, nil
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(path), ".xml") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if strings.Contains(string(data), localLinkMarker) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan harvest dir %s: %w", dir, err)
	}
	logger.Info("scanned harvest dir",
		slog.String("dir", dir),
		slog.Int("files", len(files)))

	if useCache {
		if err := saveHarvestCache(cachePath, files); err != nil {
			logger.Warn("failed to write harvest filelist cache",
				slog.String("path", cachePath),
				slog.String("error", err.Error()))
		}
	}
	return files, nil
}

func loadHarvestCache(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var files []string
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("parse harvest cache %s: %w", path, err)
	}
	return files, nil
}

func saveHarvestCache(path string, files []string) error {
	data, err := json.MarshalIndent(files, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
