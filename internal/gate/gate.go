// Package gate validates a batch of orders before finalize. Nothing
// renders until the gate passes: unresolved items hard-block, missing
// asset files soft-block behind an explicit operator override.
package gate

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"magnetpress/internal/orders"
)

// UnresolvedItem is one line item still awaiting an asset.
type UnresolvedItem struct {
	OrderID         string
	CharacterKey    string
	Personalization string
}

func (u UnresolvedItem) String() string {
	name := u.Personalization
	if name == "" {
		name = "(no name)"
	}
	return fmt.Sprintf("order %s: %q for %s has no image selected", u.OrderID, u.CharacterKey, name)
}

// MissingFile is a resolved item whose asset vanished from disk after
// matching (moved or deleted between match and finalize).
type MissingFile struct {
	OrderID      string
	CharacterKey string
	AssetPath    string
}

func (m MissingFile) String() string {
	return fmt.Sprintf("order %s: asset file %s for %q is gone", m.OrderID, m.AssetPath, m.CharacterKey)
}

// Report is the outcome of validating a batch.
type Report struct {
	Unresolved   []UnresolvedItem
	MissingFiles []MissingFile
}

// HardBlocked reports whether finalize is refused outright. Every
// unresolved entry must be manually resolved and the batch
// re-validated; there is no override.
func (r *Report) HardBlocked() bool { return len(r.Unresolved) > 0 }

// SoftBlocked reports whether finalize needs an explicit override:
// no unresolved items, but at least one resolved asset is missing on
// disk. Overriding means those items are skipped at render time.
func (r *Report) SoftBlocked() bool { return !r.HardBlocked() && len(r.MissingFiles) > 0 }

// Clean reports whether finalize may proceed unconditionally.
func (r *Report) Clean() bool { return len(r.Unresolved) == 0 && len(r.MissingFiles) == 0 }

// UnresolvedError blocks finalize while any line item lacks a
// confirmed asset. It is surfaced, never auto-resolved.
type UnresolvedError struct {
	Items []UnresolvedItem
}

func (e *UnresolvedError) Error() string {
	lines := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		lines = append(lines, it.String())
	}
	return fmt.Sprintf("%d item(s) still need image selection:\n%s", len(e.Items), strings.Join(lines, "\n"))
}

// MissingAssetsError soft-blocks finalize until the operator
// explicitly accepts that the listed items will be skipped.
type MissingAssetsError struct {
	Files []MissingFile
}

func (e *MissingAssetsError) Error() string {
	lines := make([]string, 0, len(e.Files))
	for _, f := range e.Files {
		lines = append(lines, f.String())
	}
	return fmt.Sprintf("%d asset file(s) missing on disk (pass an explicit override to proceed):\n%s",
		len(e.Files), strings.Join(lines, "\n"))
}

// Validate inspects the batch. Checks run in order: unresolved items
// first, then resolved items whose asset path no longer exists.
func Validate(batch []*orders.Order, log *zap.Logger) *Report {
	if log == nil {
		log = zap.NewNop()
	}

	report := &Report{}
	for _, o := range batch {
		for _, li := range o.Items {
			if li.Status() != orders.Resolved {
				report.Unresolved = append(report.Unresolved, UnresolvedItem{
					OrderID:         o.ID,
					CharacterKey:    li.CharacterKey,
					Personalization: li.Personalization,
				})
				continue
			}
			if _, err := os.Stat(li.AssetPath()); err != nil {
				report.MissingFiles = append(report.MissingFiles, MissingFile{
					OrderID:      o.ID,
					CharacterKey: li.CharacterKey,
					AssetPath:    li.AssetPath(),
				})
			}
		}
	}

	if report.HardBlocked() {
		log.Warn("validation hard-blocked", zap.Int("unresolved", len(report.Unresolved)))
	} else if report.SoftBlocked() {
		log.Warn("validation soft-blocked", zap.Int("missing_files", len(report.MissingFiles)))
	}
	return report
}

// Err converts the report into the finalize decision. allowMissing is
// the explicit operator override for missing files; it never excuses
// unresolved items.
func (r *Report) Err(allowMissing bool) error {
	if r.HardBlocked() {
		return &UnresolvedError{Items: r.Unresolved}
	}
	if r.SoftBlocked() && !allowMissing {
		return &MissingAssetsError{Files: r.MissingFiles}
	}
	return nil
}

// MissingSet returns the asset paths flagged missing, for render-time
// skipping after an override.
func (r *Report) MissingSet() map[string]bool {
	set := make(map[string]bool, len(r.MissingFiles))
	for _, f := range r.MissingFiles {
		set[f.AssetPath] = true
	}
	return set
}
