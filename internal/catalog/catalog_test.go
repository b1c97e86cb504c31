package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

func writeAsset(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "mickey-captain.png")
	writeAsset(t, dir, "Minnie-Captain.PNG")
	writeAsset(t, dir, "dog-pluto.jpg")
	writeAsset(t, dir, "notes.txt")
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}

	c, err := Scan(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if c.Len() != 3 {
		t.Fatalf("expected 3 assets, got %d: %v", c.Len(), c.Keys())
	}

	want := []string{"Minnie-Captain", "dog-pluto", "mickey-captain"}
	if diff := cmp.Diff(want, c.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestLookup_CaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "Mickey-Captain.png")

	c, err := Scan(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"mickey-captain", "MICKEY-CAPTAIN", " Mickey-Captain "} {
		path, ok := c.Lookup(key)
		if !ok {
			t.Errorf("Lookup(%q) missed", key)
			continue
		}
		if filepath.Base(path) != "Mickey-Captain.png" {
			t.Errorf("Lookup(%q) = %s", key, path)
		}
	}

	if _, ok := c.Lookup("hulk-xyz"); ok {
		t.Error("Lookup of unknown key should miss")
	}
}

func TestScan_MissingDirectory(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Error("expected error for missing asset directory")
	}
}
