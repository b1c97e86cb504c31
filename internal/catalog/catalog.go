// Package catalog enumerates the character image assets available for
// rendering. Keys derive from filenames, compared case-insensitively.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Catalog is a read-only index of asset keys to file paths, built once
// per run by scanning the asset directory. It is never mutated after
// construction; the directory is rescanned on the next run instead of
// cached.
type Catalog struct {
	dir    string
	assets map[string]string // lowercase key -> absolute path
	keys   []string          // display keys (original casing), sorted
}

// Scan builds a catalog from the files directly inside dir.
func Scan(dir string, log *zap.Logger) (*Catalog, error) {
	if log == nil {
		log = zap.NewNop()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan asset directory %s: %w", dir, err)
	}

	c := &Catalog{dir: dir, assets: make(map[string]string)}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !imageExtensions[ext] {
			continue
		}
		key := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		c.assets[strings.ToLower(key)] = filepath.Join(dir, e.Name())
		c.keys = append(c.keys, key)
	}
	sort.Strings(c.keys)

	log.Info("asset catalog built", zap.String("dir", dir), zap.Int("assets", len(c.keys)))
	return c, nil
}

// Lookup resolves a character key to an asset path. Matching ignores
// case and surrounding whitespace; the key's stored casing wins.
func (c *Catalog) Lookup(characterKey string) (string, bool) {
	path, ok := c.assets[strings.ToLower(strings.TrimSpace(characterKey))]
	return path, ok
}

// Keys returns every catalog key in sorted order. The matcher sends
// this list to the external service so it can only answer with keys
// that actually exist.
func (c *Catalog) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of assets in the catalog.
func (c *Catalog) Len() int { return len(c.keys) }

// Dir returns the scanned asset directory.
func (c *Catalog) Dir() string { return c.dir }
