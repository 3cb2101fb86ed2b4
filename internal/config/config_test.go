package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paulette.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr: got %s want %s", cfg.Addr, ":8080")
	}
	if cfg.DataDir != "./data" {
		t.Fatalf("data dir: got %s want %s", cfg.DataDir, "./data")
	}
}

func TestLoadFile(t *testing.T) {
	ref := strings.Repeat("AB", 32)
	path := writeConfig(t, `
addr: ":9090"
data_dir: /var/lib/paulette
registry_ref: "`+ref+`"
disable_journal: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("addr: got %s want %s", cfg.Addr, ":9090")
	}
	if cfg.DataDir != "/var/lib/paulette" {
		t.Fatalf("data dir: got %s", cfg.DataDir)
	}
	// Refs normalize to lowercase hex.
	if want := strings.ToLower(ref); cfg.RegistryRef != want {
		t.Fatalf("registry ref: got %s want %s", cfg.RegistryRef, want)
	}
	if !cfg.DisableJournal {
		t.Fatalf("disable_journal not honored")
	}
}

func TestLoadRejectsBadRef(t *testing.T) {
	for _, ref := range []string{"abcd", strings.Repeat("zz", 32)} {
		path := writeConfig(t, "registry_ref: \""+ref+"\"\n")
		if _, err := Load(path); err == nil {
			t.Fatalf("ref %q accepted", ref)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("missing file accepted")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeConfig(t, "addr: [:::\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("malformed yaml accepted")
	}
}
