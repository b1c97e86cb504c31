// Package assemble lays rendered magnet faces onto the print template
// two per sheet and merges the sheets into a single master PDF for
// the print run.
package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"
)

const (
	sheetPrefix  = "order_output_"
	masterPrefix = "MASTER_ORDER_"
	archiveDir   = "pdf_archive"

	// Number of master PDFs the archive keeps before pruning.
	archiveKeep = 10

	timestampLayout = "20060102_150405"
)

// Slots describes where the two faces land on the template sheet, in
// PDF points from the bottom-left corner. The defaults were measured
// against the physical magnet sheet.
type Slots struct {
	X       float64
	TopY    float64
	BottomY float64
	// Scale is the absolute scale factor applied to the source
	// artwork so it fills one die-cut circle.
	Scale float64
}

func DefaultSlots() Slots {
	return Slots{X: 121, TopY: 396, BottomY: 36, Scale: 500.0 / 1500.0 * 1.027}
}

// Assembler turns rendered faces into print-ready sheets.
type Assembler struct {
	template string
	outDir   string
	slots    Slots
	log      *zap.Logger
	now      func() time.Time
}

func New(template, outDir string, slots Slots, log *zap.Logger) *Assembler {
	if log == nil {
		log = zap.NewNop()
	}
	if slots == (Slots{}) {
		slots = DefaultSlots()
	}
	return &Assembler{template: template, outDir: outDir, slots: slots, log: log, now: time.Now}
}

// Report summarizes one assembly run.
type Report struct {
	Sheets   []string
	Master   string
	Leftover string
}

// Build pairs the faces, stamps each pair onto the template, and
// merges the sheets into one master PDF. Faces must already exist on
// disk; the batch order is preserved top-to-bottom, sheet-to-sheet.
func (a *Assembler) Build(faces []string) (*Report, error) {
	if len(faces) == 0 {
		return nil, fmt.Errorf("no rendered faces to assemble")
	}
	if _, err := os.Stat(a.template); err != nil {
		return nil, fmt.Errorf("template %s: %w", a.template, err)
	}
	if err := os.MkdirAll(a.outDir, 0o755); err != nil {
		return nil, err
	}

	targetPage, err := a.targetPage()
	if err != nil {
		return nil, err
	}

	pairing := PairFaces(faces)
	timestamp := a.now().Format(timestampLayout)

	report := &Report{Leftover: pairing.Leftover}
	for i, pair := range pairing.Pairs {
		sheet := filepath.Join(a.outDir, fmt.Sprintf("%s%s_%d.pdf", sheetPrefix, timestamp, i+1))
		if err := a.stampSheet(pair, sheet, targetPage); err != nil {
			return nil, fmt.Errorf("sheet %d: %w", i+1, err)
		}
		a.log.Info("sheet assembled",
			zap.String("sheet", filepath.Base(sheet)),
			zap.String("top", filepath.Base(pair.Top)),
			zap.String("bottom", filepath.Base(pair.Bottom)))
		report.Sheets = append(report.Sheets, sheet)
	}

	if pairing.Leftover != "" {
		a.log.Warn("odd batch, last face left unpaired",
			zap.String("face", filepath.Base(pairing.Leftover)))
	}

	if len(report.Sheets) > 0 {
		master := filepath.Join(a.outDir, fmt.Sprintf("%s%s.pdf", masterPrefix, timestamp))
		if err := api.MergeCreateFile(report.Sheets, master, false, nil); err != nil {
			return nil, fmt.Errorf("merge master: %w", err)
		}
		report.Master = master
		a.log.Info("master assembled",
			zap.String("master", filepath.Base(master)),
			zap.Int("sheets", len(report.Sheets)))
	}
	return report, nil
}

// targetPage finds the template page the artwork is stamped onto. The
// template ships with leading instruction pages; the printable sheet
// is the middle page.
func (a *Assembler) targetPage() (string, error) {
	count, err := api.PageCountFile(a.template)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	if count == 0 {
		return "", fmt.Errorf("template %s has no pages", a.template)
	}
	return fmt.Sprintf("%d", count/2+1), nil
}

func (a *Assembler) stampSheet(pair Pair, outFile, page string) error {
	for _, face := range []string{pair.Top, pair.Bottom} {
		if _, err := os.Stat(face); err != nil {
			return fmt.Errorf("face %s: %w", face, err)
		}
	}

	// Bottom slot first, then top, matching the physical stack order.
	bottom, err := api.ImageWatermark(pair.Bottom, a.slotDesc(a.slots.BottomY), true, false, types.POINTS)
	if err != nil {
		return err
	}
	if err := api.AddWatermarksFile(a.template, outFile, []string{page}, bottom, nil); err != nil {
		return err
	}

	top, err := api.ImageWatermark(pair.Top, a.slotDesc(a.slots.TopY), true, false, types.POINTS)
	if err != nil {
		return err
	}
	return api.AddWatermarksFile(outFile, "", []string{page}, top, nil)
}

func (a *Assembler) slotDesc(y float64) string {
	return fmt.Sprintf("pos:bl, off:%.0f %.0f, scale:%.4f abs, rot:0", a.slots.X, y, a.slots.Scale)
}

// ArchiveOld moves previous run PDFs out of outDir into the archive
// and prunes the archive down to the newest master PDFs. Called at
// the start of a run so only the fresh output sits in outDir.
func (a *Assembler) ArchiveOld() error {
	entries, err := os.ReadDir(a.outDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	archive := filepath.Join(a.outDir, archiveDir)
	moved := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".pdf") {
			continue
		}
		if !strings.HasPrefix(name, sheetPrefix) && !strings.HasPrefix(name, masterPrefix) {
			continue
		}
		if moved == 0 {
			if err := os.MkdirAll(archive, 0o755); err != nil {
				return err
			}
		}
		dest := filepath.Join(archive, name)
		os.Remove(dest)
		if err := os.Rename(filepath.Join(a.outDir, name), dest); err != nil {
			a.log.Warn("could not archive", zap.String("file", name), zap.Error(err))
			continue
		}
		moved++
	}
	if moved > 0 {
		a.log.Info("archived previous run", zap.Int("files", moved))
	}
	return a.pruneArchive(archive)
}

func (a *Assembler) pruneArchive(archive string) error {
	entries, err := os.ReadDir(archive)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	type masterFile struct {
		path  string
		mtime time.Time
	}
	var masters []masterFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, masterPrefix) || !strings.HasSuffix(name, ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		masters = append(masters, masterFile{path: filepath.Join(archive, name), mtime: info.ModTime()})
	}
	if len(masters) <= archiveKeep {
		return nil
	}

	sort.Slice(masters, func(i, j int) bool { return masters[i].mtime.After(masters[j].mtime) })
	for _, m := range masters[archiveKeep:] {
		if err := os.Remove(m.path); err != nil {
			a.log.Warn("could not prune archive", zap.String("file", filepath.Base(m.path)), zap.Error(err))
			continue
		}
		a.log.Debug("pruned old master", zap.String("file", filepath.Base(m.path)))
	}
	return nil
}
