// Package render produces the personalized magnet faces: the matched
// character art with the customer's name drawn along a circular arc
// near the bottom edge.
package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fogleman/gg"
	"go.uber.org/zap"
	"golang.org/x/image/font"
)

// MaxNameRunes is the longest personalization the arc can hold
// legibly. Anything longer is an operator error upstream.
const MaxNameRunes = 32

// DefaultArc is the baseline arc for the round magnet template.
var DefaultArc = ArcSpec{
	CenterX:  780,
	CenterY:  690,
	Radius:   600,
	AngleDeg: 270,
	Kerning:  1.2,
	Outward:  false,
}

// Script-styled assets get the rounder script face at a slightly
// smaller size so ascenders clear the artwork.
const (
	primaryFontSize = 100
	scriptFontSize  = 90
)

var scriptAssetPrefixes = []string{"dog-", "rubberduck-"}

// RenderError wraps a failure to produce one personalized face.
type RenderError struct {
	Name      string
	ImagePath string
	Err       error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %q onto %s: %v", e.Name, e.ImagePath, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Config holds the font files the renderer draws with.
type Config struct {
	// PrimaryFont is the display face used for most assets.
	PrimaryFont string
	// ScriptFont is used for script-styled asset variants.
	ScriptFont string
	// Arc overrides DefaultArc when non-zero.
	Arc ArcSpec
}

// Renderer draws personalization text onto character art. Safe for
// use from a single goroutine; font faces are cached per size.
type Renderer struct {
	cfg Config
	arc ArcSpec
	log *zap.Logger

	mu    sync.Mutex
	faces map[string]font.Face
}

func New(cfg Config, log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	arc := cfg.Arc
	if arc.Radius == 0 {
		arc = DefaultArc
	}
	return &Renderer{cfg: cfg, arc: arc, log: log, faces: make(map[string]font.Face)}
}

// Personalize writes the character image with name drawn on the arc
// to outputPath. An empty name copies the art through untouched; the
// source file is never modified.
func (r *Renderer) Personalize(name, imagePath, outputPath string) error {
	if utf8.RuneCountInString(name) > MaxNameRunes {
		return &RenderError{Name: name, ImagePath: imagePath,
			Err: fmt.Errorf("name exceeds %d characters", MaxNameRunes)}
	}

	if strings.TrimSpace(name) == "" {
		r.log.Debug("no personalization, copying art through",
			zap.String("image", filepath.Base(imagePath)))
		if err := copyFile(imagePath, outputPath); err != nil {
			return &RenderError{Name: name, ImagePath: imagePath, Err: err}
		}
		return nil
	}

	img, err := gg.LoadImage(imagePath)
	if err != nil {
		return &RenderError{Name: name, ImagePath: imagePath, Err: err}
	}

	fontPath, fontSize := r.fontFor(imagePath)
	face, err := r.face(fontPath, fontSize)
	if err != nil {
		return &RenderError{Name: name, ImagePath: imagePath, Err: err}
	}

	dc := gg.NewContextForImage(img)
	dc.SetFontFace(face)
	dc.SetRGB(0, 0, 0)

	runes := []rune(name)
	advances := make([]float64, len(runes))
	for i, ch := range runes {
		w, _ := dc.MeasureString(string(ch))
		advances[i] = w
	}

	for i, pl := range r.arc.Layout(advances) {
		dc.Push()
		dc.RotateAbout(pl.Rotation, pl.X, pl.Y)
		dc.DrawStringAnchored(string(runes[i]), pl.X, pl.Y, 0.5, 0.5)
		dc.Pop()
	}

	if err := dc.SavePNG(outputPath); err != nil {
		return &RenderError{Name: name, ImagePath: imagePath, Err: err}
	}
	r.log.Debug("rendered face",
		zap.String("name", name),
		zap.String("image", filepath.Base(imagePath)),
		zap.String("output", filepath.Base(outputPath)))
	return nil
}

// OutputName returns the filename for the nth rendered face. Faces
// are numbered in batch order starting at 1 so the print stack comes
// out of the printer in order sequence.
func OutputName(seq int) string { return fmt.Sprintf("%d.png", seq) }

func (r *Renderer) fontFor(imagePath string) (string, float64) {
	base := strings.ToLower(filepath.Base(imagePath))
	for _, prefix := range scriptAssetPrefixes {
		if strings.Contains(base, prefix) && r.cfg.ScriptFont != "" {
			return r.cfg.ScriptFont, scriptFontSize
		}
	}
	return r.cfg.PrimaryFont, primaryFontSize
}

func (r *Renderer) face(path string, size float64) (font.Face, error) {
	key := fmt.Sprintf("%s@%g", path, size)
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.faces[key]; ok {
		return f, nil
	}
	f, err := gg.LoadFontFace(path, size)
	if err != nil {
		return nil, fmt.Errorf("load font %s: %w", path, err)
	}
	r.faces[key] = f
	return f, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
