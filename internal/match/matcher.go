package match

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"magnetpress/internal/catalog"
	"magnetpress/internal/orders"
)

// Options tunes the matcher. The fast/thorough split is a heuristic
// with no accuracy guarantee, so the threshold stays configurable.
type Options struct {
	// FastThreshold is the batch size (total item count across the
	// selected orders) at or below which the fast model is used.
	FastThreshold int
	FastModel     string
	ThoroughModel string
	// Timeout bounds the one external call per batch.
	Timeout time.Duration
}

// DefaultOptions returns the stock matcher tuning.
func DefaultOptions() Options {
	return Options{
		FastThreshold: 6,
		FastModel:     "grok-4-1-fast-non-reasoning",
		ThoroughModel: "grok-4-1-fast-reasoning",
		Timeout:       60 * time.Second,
	}
}

// Matcher resolves line items against the catalog, falling back to
// one batched external call for whatever the catalog cannot answer.
type Matcher struct {
	cat    *catalog.Catalog
	client Client // nil disables external matching
	opts   Options
	log    *zap.Logger
}

// New creates a Matcher. A nil client turns the external fallback
// off; unmatched items then stay Unresolved for manual resolution.
func New(cat *catalog.Catalog, client Client, opts Options, log *zap.Logger) *Matcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{cat: cat, client: client, opts: opts, log: log}
}

// ItemResult pairs a line item with its typed match outcome.
type ItemResult struct {
	Item   *orders.LineItem
	Result Result
}

// Report describes one matching pass over a batch.
type Report struct {
	Results         []ItemResult
	Inconsistencies []Inconsistency
	// ServiceError is set when the external call failed as a whole.
	// The batch degrades to Unresolved; the run itself continues and
	// the validation gate blocks finalize downstream.
	ServiceError *ServiceError
}

// UnresolvedCount returns how many items ended the pass unresolved.
func (r *Report) UnresolvedCount() int {
	n := 0
	for _, ir := range r.Results {
		if ir.Result.Kind == NoMatch {
			n++
		}
	}
	return n
}

// Resolve runs one matching pass over the batch: exact catalog
// lookups first, then a single external request covering every item
// the catalog missed. Items the service omits, answers with a
// sentinel for, or answers with an unknown key for all stay
// Unresolved — absence never silently drops an item.
func (m *Matcher) Resolve(ctx context.Context, items []*orders.LineItem) (*Report, error) {
	report := &Report{}

	var (
		subs     []Submission
		subItems []*orders.LineItem
	)

	for _, li := range items {
		if li.Status() == orders.Resolved {
			report.Results = append(report.Results, ItemResult{Item: li, Result: Result{Kind: ExactHit, AssetPath: li.AssetPath()}})
			continue
		}
		if path, ok := m.cat.Lookup(li.CharacterKey); ok {
			if err := li.Resolve(path); err != nil {
				return nil, err
			}
			report.Results = append(report.Results, ItemResult{Item: li, Result: Result{Kind: ExactHit, AssetPath: path}})
			continue
		}
		subs = append(subs, Submission{CharacterKey: li.CharacterKey, Personalization: li.Personalization})
		subItems = append(subItems, li)
	}

	if len(subs) == 0 {
		return report, nil
	}
	if m.client == nil {
		m.log.Info("external matching disabled, items stay unresolved", zap.Int("items", len(subs)))
		for _, li := range subItems {
			report.Results = append(report.Results, ItemResult{Item: li, Result: Result{Kind: NoMatch}})
		}
		return report, nil
	}

	model := m.opts.ThoroughModel
	if len(items) <= m.opts.FastThreshold {
		model = m.opts.FastModel
	}
	m.client.SetModel(model)
	m.log.Info("matching batch against external service",
		zap.Int("batch_items", len(items)),
		zap.Int("unmatched", len(subs)),
		zap.String("model", model))

	callCtx := ctx
	if m.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
	}

	response, err := m.client.Complete(callCtx, buildPrompt(m.cat.Keys(), subs))
	if err != nil {
		return m.degrade(report, subItems, err), nil
	}
	resolutions, err := parseResponse(response)
	if err != nil {
		return m.degrade(report, subItems, err), nil
	}

	m.apply(report, subs, subItems, resolutions)
	return report, nil
}

// degrade handles a batch-level service failure: every submitted item
// stays Unresolved, and the error is surfaced on the report.
func (m *Matcher) degrade(report *Report, subItems []*orders.LineItem, err error) *Report {
	m.log.Warn("match service failed, batch degrades to unresolved",
		zap.Int("items", len(subItems)), zap.Error(err))
	report.ServiceError = &ServiceError{Err: err}
	for _, li := range subItems {
		report.Results = append(report.Results, ItemResult{Item: li, Result: Result{Kind: NoMatch}})
	}
	return report
}

// apply maps service resolutions back onto the submitted items.
// Entries pair up positionally when the personalization agrees, by
// first unused matching name otherwise. Anything left unpaired is
// treated exactly like an explicit not-found answer.
func (m *Matcher) apply(report *Report, subs []Submission, subItems []*orders.LineItem, resolutions []resolution) {
	used := make([]bool, len(subs))

	for ri, res := range resolutions {
		idx := -1
		if ri < len(subs) && !used[ri] && strings.EqualFold(subs[ri].Personalization, res.Name) {
			idx = ri
		} else {
			for j := range subs {
				if !used[j] && strings.EqualFold(subs[j].Personalization, res.Name) {
					idx = j
					break
				}
			}
		}
		if idx == -1 {
			if ri < len(subs) && !used[ri] {
				idx = ri
			} else {
				m.log.Warn("service returned entry for unknown item", zap.String("name", res.Name))
				continue
			}
		}
		used[idx] = true
		report.Results = append(report.Results, ItemResult{Item: subItems[idx], Result: m.resolveOne(report, subs[idx], subItems[idx], res)})
	}

	for j, li := range subItems {
		if used[j] {
			continue
		}
		m.log.Warn("service omitted item, treating as not found",
			zap.String("item", subs[j].CharacterKey),
			zap.String("personalization", subs[j].Personalization))
		report.Results = append(report.Results, ItemResult{Item: li, Result: Result{Kind: NoMatch}})
	}
}

func (m *Matcher) resolveOne(report *Report, sub Submission, li *orders.LineItem, res resolution) Result {
	if isSentinel(res.Image) {
		return Result{Kind: NoMatch}
	}

	key := normalizeKey(res.Image)
	path, ok := m.cat.Lookup(key)
	if !ok {
		inc := Inconsistency{Personalization: sub.Personalization, ReturnedKey: key}
		report.Inconsistencies = append(report.Inconsistencies, inc)
		m.log.Warn("match service inconsistency", zap.String("detail", inc.String()))
		return Result{Kind: NoMatch}
	}

	if err := li.Resolve(path); err != nil {
		m.log.Warn("could not apply fuzzy match", zap.Error(err))
		return Result{Kind: NoMatch}
	}

	conf := res.Confidence
	if conf < 0 {
		conf = 0
	} else if conf > 1 {
		conf = 1
	}
	return Result{Kind: FuzzyHit, AssetPath: path, Confidence: conf}
}
