package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"seiso/internal/authority"
	"seiso/internal/bibbi"
)

func TestParseKinds(t *testing.T) {
	kinds, err := parseKinds([]string{"person", "corporation"})
	if err != nil {
		t.Fatalf("parseKinds: %v", err)
	}
	if len(kinds) != 2 || kinds[0] != authority.KindPerson || kinds[1] != authority.KindCorporation {
		t.Fatalf("unexpected kinds: %v", kinds)
	}
	if _, err := parseKinds([]string{"starship"}); err == nil {
		t.Fatal("expected an error for an unknown kind")
	}
}

func TestFilterByYearWindow(t *testing.T) {
	approved := func(year int) []bibbi.Item {
		return []bibbi.Item{{ApprovedAt: time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC)}}
	}
	records := []*bibbi.Record{
		{LocalID: 1, Items: approved(2015)},
		{LocalID: 2, Items: approved(2020)},
		{LocalID: 3, Items: approved(2024)},
		{LocalID: 4},
	}

	if got := filterByYearWindow(records, 0, 0); len(got) != 4 {
		t.Fatalf("an open window must keep everything, got %d", len(got))
	}
	got := filterByYearWindow(records, 2018, 2022)
	if len(got) != 1 || got[0].LocalID != 2 {
		t.Fatalf("unexpected window result: %v", got)
	}
	// Records with no approved items have no year to test against.
	if got := filterByYearWindow(records, 2000, 0); len(got) != 3 {
		t.Fatalf("expected the itemless record dropped, got %d", len(got))
	}
}

func TestPrintLinkStats(t *testing.T) {
	var buf bytes.Buffer
	printLinkStats(&buf, map[int]int{2: 3, 1: 120})
	out := buf.String()
	if !strings.Contains(out, "1 links: 120 records") || !strings.Contains(out, "2 links: 3 records") {
		t.Fatalf("unexpected stats line: %q", out)
	}
	if strings.Index(out, "1 links") > strings.Index(out, "2 links") {
		t.Fatalf("stats not sorted: %q", out)
	}
}

func TestConfigInitCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"config", "init", "--path", target})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample config: %v", err)
	}
	if !strings.Contains(string(data), "[noraf]") {
		t.Fatalf("sample config missing noraf section:\n%s", data)
	}

	// A second run without --overwrite refuses to clobber the file.
	again := newRootCommand()
	again.SetArgs([]string{"config", "init", "--path", target})
	again.SetOut(&out)
	again.SetErr(&out)
	if err := again.Execute(); err == nil {
		t.Fatal("expected an error when the config file already exists")
	}
}
