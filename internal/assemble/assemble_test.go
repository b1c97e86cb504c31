package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPairFaces(t *testing.T) {
	tests := []struct {
		name  string
		faces []string
		want  Pairing
	}{
		{
			name: "empty",
		},
		{
			name:  "single face is leftover, no sheets",
			faces: []string{"1.png"},
			want:  Pairing{Leftover: "1.png"},
		},
		{
			name:  "even batch pairs in order",
			faces: []string{"1.png", "2.png", "3.png", "4.png"},
			want: Pairing{Pairs: []Pair{
				{Top: "1.png", Bottom: "2.png"},
				{Top: "3.png", Bottom: "4.png"},
			}},
		},
		{
			name:  "odd batch reports trailing face",
			faces: []string{"1.png", "2.png", "3.png"},
			want: Pairing{
				Pairs:    []Pair{{Top: "1.png", Bottom: "2.png"}},
				Leftover: "3.png",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PairFaces(tt.faces)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("PairFaces() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildNoFaces(t *testing.T) {
	a := New("format.pdf", t.TempDir(), DefaultSlots(), zap.NewNop())
	_, err := a.Build(nil)
	assert.Error(t, err)
}

func TestBuildMissingTemplate(t *testing.T) {
	dir := t.TempDir()
	a := New(filepath.Join(dir, "nope.pdf"), dir, DefaultSlots(), zap.NewNop())
	_, err := a.Build([]string{"1.png", "2.png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template")
}

func TestSlotDesc(t *testing.T) {
	a := New("format.pdf", t.TempDir(), DefaultSlots(), nil)
	assert.Equal(t, "pos:bl, off:121 396, scale:0.3423 abs, rot:0", a.slotDesc(a.slots.TopY))
	assert.Equal(t, "pos:bl, off:121 36, scale:0.3423 abs, rot:0", a.slotDesc(a.slots.BottomY))
}

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestArchiveOldMovesRunOutputs(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, filepath.Join(dir, "order_output_20260101_120000_1.pdf"), now)
	touch(t, filepath.Join(dir, "MASTER_ORDER_20260101_120000.pdf"), now)
	touch(t, filepath.Join(dir, "keep.pdf"), now)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	a := New("format.pdf", dir, DefaultSlots(), zap.NewNop())
	require.NoError(t, a.ArchiveOld())

	assert.NoFileExists(t, filepath.Join(dir, "order_output_20260101_120000_1.pdf"))
	assert.NoFileExists(t, filepath.Join(dir, "MASTER_ORDER_20260101_120000.pdf"))
	assert.FileExists(t, filepath.Join(dir, "keep.pdf"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
	assert.FileExists(t, filepath.Join(dir, archiveDir, "order_output_20260101_120000_1.pdf"))
	assert.FileExists(t, filepath.Join(dir, archiveDir, "MASTER_ORDER_20260101_120000.pdf"))
}

func TestArchiveOldPrunesOldMasters(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, archiveDir)
	require.NoError(t, os.MkdirAll(archive, 0o755))

	base := time.Now().Add(-24 * time.Hour)
	for i := 0; i < 13; i++ {
		name := fmt.Sprintf("MASTER_ORDER_2026010%d_%02d0000.pdf", i%9+1, i)
		touch(t, filepath.Join(archive, name), base.Add(time.Duration(i)*time.Hour))
	}
	// Sheet PDFs in the archive are never pruned.
	touch(t, filepath.Join(archive, "order_output_old_1.pdf"), base)

	a := New("format.pdf", dir, DefaultSlots(), zap.NewNop())
	require.NoError(t, a.ArchiveOld())

	entries, err := os.ReadDir(archive)
	require.NoError(t, err)
	masters := 0
	for _, e := range entries {
		if len(e.Name()) > len("MASTER_ORDER_") && e.Name()[:len("MASTER_ORDER_")] == "MASTER_ORDER_" {
			masters++
		}
	}
	assert.Equal(t, archiveKeep, masters)
	assert.FileExists(t, filepath.Join(archive, "order_output_old_1.pdf"))

	// The three oldest are the ones that went.
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("MASTER_ORDER_2026010%d_%02d0000.pdf", i%9+1, i)
		assert.NoFileExists(t, filepath.Join(archive, name))
	}
}

func TestArchiveOldNoOutputDir(t *testing.T) {
	a := New("format.pdf", filepath.Join(t.TempDir(), "missing"), DefaultSlots(), zap.NewNop())
	assert.NoError(t, a.ArchiveOld())
}

func TestDefaultSlots(t *testing.T) {
	s := DefaultSlots()
	assert.Equal(t, 121.0, s.X)
	assert.Greater(t, s.TopY, s.BottomY)
	assert.InDelta(t, 0.342, s.Scale, 0.001)
}
