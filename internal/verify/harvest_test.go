package verify

import (
	"os"
	"path/filepath"
	"testing"

	"seiso/internal/logging"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestFindHarvestFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "page-001.xml"), `<subfield code="2">bibbi</subfield>`)
	writeFile(t, filepath.Join(dir, "page-002.xml"), `<subfield code="2">viaf</subfield>`)
	writeFile(t, filepath.Join(dir, "notes.txt"), ">bibbi<")

	files, err := FindHarvestFiles(dir, false, logging.NewNop())
	if err != nil {
		t.Fatalf("FindHarvestFiles: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "page-001.xml" {
		t.Fatalf("unexpected files: %v", files)
	}
}

func TestFindHarvestFilesCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "page-001.xml"), `<subfield code="2">bibbi</subfield>`)

	files, err := FindHarvestFiles(dir, true, logging.NewNop())
	if err != nil {
		t.Fatalf("FindHarvestFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("unexpected files: %v", files)
	}
	if _, err := os.Stat(filepath.Join(dir, harvestCacheName)); err != nil {
		t.Fatalf("expected the filelist cache written: %v", err)
	}

	// A page added after the cache was written is not seen until a rescan.
	writeFile(t, filepath.Join(dir, "page-002.xml"), `<subfield code="2">bibbi</subfield>`)
	cached, err := FindHarvestFiles(dir, true, logging.NewNop())
	if err != nil {
		t.Fatalf("FindHarvestFiles: %v", err)
	}
	if len(cached) != 1 {
		t.Fatalf("expected the cached filelist reused, got %v", cached)
	}

	rescanned, err := FindHarvestFiles(dir, false, logging.NewNop())
	if err != nil {
		t.Fatalf("FindHarvestFiles: %v", err)
	}
	if len(rescanned) != 2 {
		t.Fatalf("expected both pages on rescan, got %v", rescanned)
	}
}
