package render

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 8, 8))))
}

func TestPersonalizeEmptyNameCopiesThrough(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "stitch.png")
	dst := filepath.Join(dir, "1.png")
	writePNG(t, src)

	r := New(Config{}, zap.NewNop())
	require.NoError(t, r.Personalize("", src, dst))

	want, err := os.ReadFile(src)
	require.NoError(t, err)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, want, got, "copy-through must be byte identical")
}

func TestPersonalizeWhitespaceNameCopiesThrough(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "moana.png")
	dst := filepath.Join(dir, "out.png")
	writePNG(t, src)

	r := New(Config{}, zap.NewNop())
	require.NoError(t, r.Personalize("   ", src, dst))
	assert.FileExists(t, dst)
}

func TestPersonalizeNameTooLong(t *testing.T) {
	r := New(Config{}, zap.NewNop())
	err := r.Personalize(strings.Repeat("a", MaxNameRunes+1), "x.png", "out.png")

	var re *RenderError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Error(), "exceeds")
}

func TestPersonalizeMissingImage(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{}, zap.NewNop())

	err := r.Personalize("Emma", filepath.Join(dir, "gone.png"), filepath.Join(dir, "out.png"))
	var re *RenderError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "Emma", re.Name)
}

func TestFontSelection(t *testing.T) {
	r := New(Config{PrimaryFont: "display.ttf", ScriptFont: "script.ttf"}, nil)

	tests := []struct {
		image    string
		wantFont string
		wantSize float64
	}{
		{"/assets/stitch.png", "display.ttf", primaryFontSize},
		{"/assets/dog-beagle.png", "script.ttf", scriptFontSize},
		{"/assets/rubberduck-pirate.png", "script.ttf", scriptFontSize},
		{"/assets/Dog-Corgi.PNG", "script.ttf", scriptFontSize},
		{"/assets/hotdog.png", "display.ttf", primaryFontSize},
	}
	for _, tt := range tests {
		font, size := r.fontFor(tt.image)
		assert.Equal(t, tt.wantFont, font, tt.image)
		assert.Equal(t, tt.wantSize, size, tt.image)
	}
}

func TestFontSelectionNoScriptFontConfigured(t *testing.T) {
	r := New(Config{PrimaryFont: "display.ttf"}, nil)
	font, size := r.fontFor("/assets/dog-beagle.png")
	assert.Equal(t, "display.ttf", font)
	assert.Equal(t, float64(primaryFontSize), size)
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "1.png", OutputName(1))
	assert.Equal(t, "12.png", OutputName(12))
}
