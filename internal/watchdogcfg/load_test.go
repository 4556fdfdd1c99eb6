package watchdogcfg

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f, err := Parse(fs, nil)
	if err != nil {
		t.Fatal(err)
	}
	if f.WatchdogLevel != 0 || f.DisableWatchdog {
		t.Fatalf("unexpected defaults: %+v", f)
	}
}

func TestLoadManifestParsesExtensions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extensions.yaml")
	content := "extensions:\n  - path: /opt/ext/a\n    socket: /var/run/osquery.sock\n    timeout: 3\n    interval: 3\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := LoadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Path != "/opt/ext/a" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestLoadManifestEmptyPath(t *testing.T) {
	entries, err := LoadManifest("")
	if err != nil || entries != nil {
		t.Fatalf("expected nil, nil for empty path, got %v, %v", entries, err)
	}
}

func TestLoadManifestRejectsMissingPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extensions.yaml")
	if err := os.WriteFile(path, []byte("extensions:\n  - socket: /x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(path); err == nil {
		t.Fatal("expected an error for an entry missing path")
	}
}
