// Package pipeline drives an order batch end to end: parse, match,
// validate, render, assemble, and record completion.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"magnetpress/internal/assemble"
	"magnetpress/internal/gate"
	"magnetpress/internal/ledger"
	"magnetpress/internal/match"
	"magnetpress/internal/orders"
	"magnetpress/internal/render"
)

// OrderState tracks where an order is in the run.
type OrderState string

const (
	StateParsed    OrderState = "parsed"
	StateSkipped   OrderState = "skipped"
	StateValidated OrderState = "validated"
	StateBlocked   OrderState = "blocked"
	StateRendering OrderState = "rendering"
	StateRendered  OrderState = "rendered"
	StateFailed    OrderState = "failed"
	StateCompleted OrderState = "completed"
)

// Options controls one run.
type Options struct {
	// AllowMissing is the explicit override for assets that vanished
	// from disk after matching. It never excuses unresolved items.
	AllowMissing bool

	// DryRun stops after validation, producing no files and no
	// ledger writes.
	DryRun bool
}

// Report is the full account of one run.
type Report struct {
	RunID string

	Orders    []*orders.Order
	Malformed []*orders.MalformedOrderError
	Skipped   []string
	States    map[string]OrderState

	Match      *match.Report
	Validation *gate.Report

	Faces    []string
	Assembly *assemble.Report

	// LedgerErr is set when completion marks could not be persisted.
	// The marks survive in memory; the operator retries the flush.
	LedgerErr error
}

// Renderer draws one personalized face. Satisfied by *render.Renderer.
type Renderer interface {
	Personalize(name, imagePath, outputPath string) error
}

// Assembler turns faces into print sheets. Satisfied by
// *assemble.Assembler.
type Assembler interface {
	ArchiveOld() error
	Build(faces []string) (*assemble.Report, error)
}

// Pipeline wires the stages together.
type Pipeline struct {
	ledger    *ledger.Ledger
	matcher   *match.Matcher
	renderer  Renderer
	assembler Assembler
	outputDir string
	log       *zap.Logger
}

func New(led *ledger.Ledger, matcher *match.Matcher, renderer Renderer,
	assembler Assembler, outputDir string, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		ledger:    led,
		matcher:   matcher,
		renderer:  renderer,
		assembler: assembler,
		outputDir: outputDir,
		log:       log,
	}
}

// Run processes the batch. A returned error means the run was blocked
// or aborted; the report is always populated as far as the run got.
func (p *Pipeline) Run(ctx context.Context, batch []*orders.Order, malformed []*orders.MalformedOrderError, opts Options) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Malformed: malformed,
		States:    make(map[string]OrderState),
	}
	log := p.log.With(zap.String("run_id", report.RunID))
	log.Info("run started", zap.Int("orders", len(batch)), zap.Int("malformed", len(malformed)))

	// Already-completed orders drop out before any matching happens,
	// so re-feeding yesterday's export is harmless.
	for _, o := range batch {
		if o.ID != "" && p.ledger.IsCompleted(o.ID) {
			report.Skipped = append(report.Skipped, o.ID)
			report.States[o.ID] = StateSkipped
			log.Info("order already completed, skipping", zap.String("order", o.ID))
			continue
		}
		report.Orders = append(report.Orders, o)
		report.States[o.ID] = StateParsed
	}
	if len(report.Orders) == 0 {
		log.Info("nothing to do")
		return report, nil
	}

	var items []*orders.LineItem
	for _, o := range report.Orders {
		items = append(items, o.Items...)
	}
	matchReport, err := p.matcher.Resolve(ctx, items)
	if err != nil {
		return report, fmt.Errorf("match: %w", err)
	}
	report.Match = matchReport

	report.Validation = gate.Validate(report.Orders, log)
	if err := report.Validation.Err(opts.AllowMissing); err != nil {
		for _, o := range report.Orders {
			report.States[o.ID] = StateBlocked
		}
		return report, err
	}
	for _, o := range report.Orders {
		report.States[o.ID] = StateValidated
	}
	if opts.DryRun {
		log.Info("dry run, stopping after validation")
		return report, nil
	}

	if err := p.assembler.ArchiveOld(); err != nil {
		log.Warn("could not archive previous run", zap.Error(err))
	}

	missing := report.Validation.MissingSet()
	seq := 0
	var completed []string
	for _, o := range report.Orders {
		report.States[o.ID] = StateRendering
		rendered := true
		for _, li := range o.Items {
			if missing[li.AssetPath()] {
				log.Warn("skipping item, asset missing",
					zap.String("order", o.ID), zap.String("character", li.CharacterKey))
				rendered = false
				continue
			}
			seq++
			out := filepath.Join(p.outputDir, render.OutputName(seq))
			if err := p.renderer.Personalize(li.Personalization, li.AssetPath(), out); err != nil {
				log.Error("render failed",
					zap.String("order", o.ID),
					zap.String("character", li.CharacterKey),
					zap.Error(err))
				seq--
				rendered = false
				continue
			}
			report.Faces = append(report.Faces, out)
		}
		if rendered {
			report.States[o.ID] = StateRendered
			if o.ID != "" {
				completed = append(completed, o.ID)
			}
		} else {
			report.States[o.ID] = StateFailed
		}
	}

	if len(report.Faces) > 0 {
		assembly, err := p.assembler.Build(report.Faces)
		if err != nil {
			return report, fmt.Errorf("assemble: %w", err)
		}
		report.Assembly = assembly
	}

	// An order is completed only once every one of its items made it
	// onto a face. Partially rendered orders stay pending.
	if len(completed) > 0 {
		if err := p.ledger.MarkCompleted(completed); err != nil {
			report.LedgerErr = err
			log.Error("completion marks not persisted, retry with flush", zap.Error(err))
		}
		for _, id := range completed {
			report.States[id] = StateCompleted
		}
	}

	log.Info("run finished",
		zap.Int("completed", len(completed)),
		zap.Int("faces", len(report.Faces)),
		zap.Int("skipped", len(report.Skipped)))
	return report, nil
}
