package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"magnetpress/internal/assemble"
	"magnetpress/internal/catalog"
	"magnetpress/internal/gate"
	"magnetpress/internal/ledger"
	"magnetpress/internal/match"
	"magnetpress/internal/orders"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRenderer struct {
	calls  []string
	failOn string
}

func (f *fakeRenderer) Personalize(name, imagePath, outputPath string) error {
	if f.failOn != "" && filepath.Base(imagePath) == f.failOn {
		return fmt.Errorf("glyph rasterization failed")
	}
	f.calls = append(f.calls, name)
	return os.WriteFile(outputPath, []byte("face"), 0o644)
}

type fakeAssembler struct {
	archived bool
	built    []string
}

func (f *fakeAssembler) ArchiveOld() error { f.archived = true; return nil }

func (f *fakeAssembler) Build(faces []string) (*assemble.Report, error) {
	f.built = faces
	pairing := assemble.PairFaces(faces)
	rep := &assemble.Report{Leftover: pairing.Leftover}
	for i := range pairing.Pairs {
		rep.Sheets = append(rep.Sheets, fmt.Sprintf("sheet_%d.pdf", i+1))
	}
	if len(rep.Sheets) > 0 {
		rep.Master = "master.pdf"
	}
	return rep, nil
}

type fixture struct {
	pipe     *Pipeline
	led      *ledger.Ledger
	renderer *fakeRenderer
	asm      *fakeAssembler
	assetDir string
	outDir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	assetDir := filepath.Join(dir, "images")
	require.NoError(t, os.MkdirAll(assetDir, 0o755))
	for _, name := range []string{"stitch.png", "moana.png", "elsa.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(assetDir, name), []byte("png"), 0o644))
	}

	cat, err := catalog.Scan(assetDir, zap.NewNop())
	require.NoError(t, err)

	led, err := ledger.Load(filepath.Join(dir, "order_state.json"), zap.NewNop())
	require.NoError(t, err)

	matcher := match.New(cat, nil, match.DefaultOptions(), zap.NewNop())

	outDir := filepath.Join(dir, "outputs")
	require.NoError(t, os.MkdirAll(outDir, 0o755))

	renderer := &fakeRenderer{}
	asm := &fakeAssembler{}
	return &fixture{
		pipe:     New(led, matcher, renderer, asm, outDir, zap.NewNop()),
		led:      led,
		renderer: renderer,
		asm:      asm,
		assetDir: assetDir,
		outDir:   outDir,
	}
}

func order(id string, items ...*orders.LineItem) *orders.Order {
	return &orders.Order{ID: id, Items: items}
}

func item(key, name string) *orders.LineItem {
	return &orders.LineItem{CharacterKey: key, Personalization: name}
}

func TestRunHappyPath(t *testing.T) {
	f := newFixture(t)
	batch := []*orders.Order{
		order("4001", item("stitch", "Emma"), item("moana", "Ava")),
		order("4002", item("elsa", "Liam")),
	}

	report, err := f.pipe.Run(context.Background(), batch, nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, report.States["4001"])
	assert.Equal(t, StateCompleted, report.States["4002"])
	assert.Len(t, report.Faces, 3)
	assert.Equal(t, []string{"Emma", "Ava", "Liam"}, f.renderer.calls)
	assert.True(t, f.asm.archived)
	assert.Equal(t, report.Faces, f.asm.built)
	require.NotNil(t, report.Assembly)
	assert.Equal(t, "master.pdf", report.Assembly.Master)
	// Three faces means one full sheet and one reported leftover.
	assert.NotEmpty(t, report.Assembly.Leftover)

	assert.True(t, f.led.IsCompleted("4001"))
	assert.True(t, f.led.IsCompleted("4002"))
	assert.NoError(t, report.LedgerErr)
}

func TestRunSkipsCompletedOrders(t *testing.T) {
	f := newFixture(t)
	batch := []*orders.Order{order("4001", item("stitch", "Emma"))}

	_, err := f.pipe.Run(context.Background(), batch, nil, Options{})
	require.NoError(t, err)
	require.Len(t, f.renderer.calls, 1)

	// Feeding the same export again renders nothing.
	again := []*orders.Order{order("4001", item("stitch", "Emma"))}
	report, err := f.pipe.Run(context.Background(), again, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"4001"}, report.Skipped)
	assert.Equal(t, StateSkipped, report.States["4001"])
	assert.Len(t, f.renderer.calls, 1, "no re-render on second run")
	assert.Nil(t, report.Assembly)
}

func TestRunHardBlocksOnUnresolved(t *testing.T) {
	f := newFixture(t)
	batch := []*orders.Order{
		order("4003", item("stitch", "Emma")),
		order("4004", item("gronk the unknowable", "Liam")),
	}

	report, err := f.pipe.Run(context.Background(), batch, nil, Options{AllowMissing: true})
	var unresolved *gate.UnresolvedError
	require.ErrorAs(t, err, &unresolved)

	assert.Equal(t, StateBlocked, report.States["4003"])
	assert.Equal(t, StateBlocked, report.States["4004"])
	assert.Empty(t, f.renderer.calls)
	assert.False(t, f.led.IsCompleted("4003"))
}

func TestRunSoftBlockAndOverride(t *testing.T) {
	f := newFixture(t)
	batch := []*orders.Order{
		order("4005", item("stitch", "Emma")),
		order("4006", item("moana", "Ava")),
	}
	// The asset vanishes after the catalog scan.
	require.NoError(t, os.Remove(filepath.Join(f.assetDir, "moana.png")))

	_, err := f.pipe.Run(context.Background(), batch, nil, Options{})
	var missing *gate.MissingAssetsError
	require.ErrorAs(t, err, &missing)
	assert.Empty(t, f.renderer.calls)

	// With the override the intact order completes and the order
	// with the lost asset stays pending.
	report, err := f.pipe.Run(context.Background(), batch, nil, Options{AllowMissing: true})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, report.States["4005"])
	assert.Equal(t, StateFailed, report.States["4006"])
	assert.True(t, f.led.IsCompleted("4005"))
	assert.False(t, f.led.IsCompleted("4006"))
}

func TestRunDryRun(t *testing.T) {
	f := newFixture(t)
	batch := []*orders.Order{order("4007", item("stitch", "Emma"))}

	report, err := f.pipe.Run(context.Background(), batch, nil, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, StateValidated, report.States["4007"])
	assert.Empty(t, f.renderer.calls)
	assert.False(t, f.asm.archived)
	assert.False(t, f.led.IsCompleted("4007"))
}

func TestRunRenderFailureLeavesOrderPending(t *testing.T) {
	f := newFixture(t)
	f.renderer.failOn = "elsa.png"
	batch := []*orders.Order{
		order("4008", item("stitch", "Emma")),
		order("4009", item("elsa", "Liam"), item("moana", "Ava")),
	}

	report, err := f.pipe.Run(context.Background(), batch, nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, report.States["4008"])
	assert.Equal(t, StateFailed, report.States["4009"])
	assert.True(t, f.led.IsCompleted("4008"))
	assert.False(t, f.led.IsCompleted("4009"), "partial orders are never marked complete")
	// The failed face is not in the print stack; the rest are.
	assert.Len(t, report.Faces, 2)
}

func TestRunMalformedCarriedInReport(t *testing.T) {
	f := newFixture(t)
	malformed := []*orders.MalformedOrderError{{Block: 2, Reason: "missing order number"}}

	report, err := f.pipe.Run(context.Background(), nil, malformed, Options{})
	require.NoError(t, err)
	assert.Equal(t, malformed, report.Malformed)
	assert.NotEmpty(t, report.RunID)
}

func TestRunLedgerWriteFailureSurfaces(t *testing.T) {
	dir := t.TempDir()

	assetDir := filepath.Join(dir, "images")
	require.NoError(t, os.MkdirAll(assetDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(assetDir, "stitch.png"), []byte("png"), 0o644))
	cat, err := catalog.Scan(assetDir, zap.NewNop())
	require.NoError(t, err)

	// The ledger path sits under a file, so persisting must fail.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	led, err := ledger.Load(filepath.Join(blocker, "order_state.json"), zap.NewNop())
	require.NoError(t, err)

	matcher := match.New(cat, nil, match.DefaultOptions(), zap.NewNop())
	pipe := New(led, matcher, &fakeRenderer{}, &fakeAssembler{}, dir, zap.NewNop())

	report, err := pipe.Run(context.Background(), []*orders.Order{order("4010", item("stitch", "Emma"))}, nil, Options{})
	require.NoError(t, err)

	var perr *ledger.PersistenceError
	assert.True(t, errors.As(report.LedgerErr, &perr))
	// The mark survives in memory for a later flush.
	assert.True(t, led.IsCompleted("4010"))
	assert.Equal(t, StateCompleted, report.States["4010"])
}
