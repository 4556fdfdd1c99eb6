// Package watchdogcfg parses CLI flags and the optional extensions
// manifest into a watchdog.Config (spec §4.8), replacing the core
// spec's "command-line flag storage" external-collaborator
// placeholder with a concrete implementation.
package watchdogcfg

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pathcl/osquery/internal/watchdog"
)

// manifestExtension is one YAML entry under `extensions:` in the
// extensions manifest file.
type manifestExtension struct {
	Path     string `yaml:"path"`
	Socket   string `yaml:"socket"`
	Timeout  int    `yaml:"timeout"`
	Interval int    `yaml:"interval"`
	Identity string `yaml:"identity"`
}

type manifest struct {
	Extensions []manifestExtension `yaml:"extensions"`
}

// LoadManifest parses an extensions manifest file at path into
// watchdog.ExtensionManifestEntry values. An empty path is valid and
// returns no entries — a watchdog may manage zero extensions.
func LoadManifest(path string) ([]watchdog.ExtensionManifestEntry, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read extensions manifest %s: %w", path, err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse extensions manifest %s: %w", path, err)
	}

	entries := make([]watchdog.ExtensionManifestEntry, 0, len(m.Extensions))
	for _, e := range m.Extensions {
		if e.Path == "" {
			return nil, fmt.Errorf("extensions manifest %s: entry missing path", path)
		}
		entries = append(entries, watchdog.ExtensionManifestEntry{
			Path:     e.Path,
			Identity: e.Identity,
			Socket:   e.Socket,
			Timeout:  time.Duration(e.Timeout) * time.Second,
			Interval: time.Duration(e.Interval) * time.Second,
		})
	}
	return entries, nil
}
