package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawkit/panelcut/internal/model"
)

func testSettings() Settings {
	s := DefaultSettings()
	// Node budgets dominate the generous time limit, so outcomes do not
	// depend on machine speed.
	s.MaxNodes = 50_000
	s.TimeLimit = 5 * time.Minute
	s.CacheSize = 0
	return s
}

func part(label string, w, h float64, qty int, rotate bool) model.PartSpec {
	p := model.NewPartSpec(label, w, h, qty)
	p.CanRotate = rotate
	return p
}

func boardWithTrim(w, h, trim float64) model.BoardSpec {
	b := model.NewBoardSpec("Board", w, h)
	b.Trim = model.UniformTrim(trim)
	return b
}

// wardrobeRequest is a realistic demand that cannot fit one sheet: the
// summed shelf widths exceed two full-width strips of a single board.
func wardrobeRequest() Request {
	return Request{
		Board: boardWithTrim(2800, 2070, 10),
		Parts: []model.PartSpec{
			part("Bok", 720, 560, 2, false),
			part("Polica", 564, 500, 4, true),
			part("Dvierka", 715, 397, 4, false),
			part("Podstava", 564, 120, 6, true),
		},
	}
}

func TestPack_SingleSheetSinglePart(t *testing.T) {
	p := New(testSettings(), nil, nil)
	req := Request{
		Board: model.NewBoardSpec("Board", 1000, 600),
		Parts: []model.PartSpec{part("A", 500, 300, 1, true)},
	}

	sol, err := p.Pack(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 1, sol.SheetCount())
	require.Len(t, sol.Sheets[0].Placements, 1)
	assert.Empty(t, sol.Unplaced)
	assert.False(t, sol.Capped)
	assert.Equal(t, model.QualityOptimal, sol.Quality)
	assert.True(t, sol.Sheets[0].Optimal)

	// The rotated orientation is tried first and scores the same, so it
	// is the canonical answer.
	pl := sol.Sheets[0].Placements[0]
	assert.Equal(t, "A#1", pl.UID)
	assert.Equal(t, 0.0, pl.X)
	assert.Equal(t, 0.0, pl.Y)
	assert.Equal(t, 300.0, pl.Width)
	assert.Equal(t, 500.0, pl.Height)
	assert.True(t, pl.Rotated)

	// A lone part needs no internal cuts; the two edges on the sheet
	// border are charged as trim cuts.
	assert.Equal(t, 0.0, sol.Sheets[0].InternalCutLength)
	assert.InDelta(t, 800.0, sol.Sheets[0].TrimCutLength, 1e-9)
	assert.InDelta(t, 150_000.0, sol.Sheets[0].UsedArea, 1e-9)
	assert.InDelta(t, 450_000.0, sol.Sheets[0].WasteArea, 1e-9)
	assert.InDelta(t, 0.25, sol.Sheets[0].Efficiency(), 1e-9)
}

func TestPack_SinglePartNoRotation(t *testing.T) {
	p := New(testSettings(), nil, nil)
	req := Request{
		Board: model.NewBoardSpec("Board", 1000, 600),
		Parts: []model.PartSpec{part("A", 500, 300, 1, false)},
	}

	sol, err := p.Pack(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 1, sol.SheetCount())
	pl := sol.Sheets[0].Placements[0]
	assert.False(t, pl.Rotated)
	assert.Equal(t, 500.0, pl.Width)
	assert.Equal(t, 300.0, pl.Height)
}

func TestPack_TwoPartsShareShelfWithKerf(t *testing.T) {
	s := testSettings()
	s.Kerf = 3.2
	p := New(s, nil, nil)
	req := Request{
		Board: model.NewBoardSpec("Board", 1000, 600),
		Parts: []model.PartSpec{part("A", 400, 300, 2, false)},
	}

	sol, err := p.Pack(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 1, sol.SheetCount())
	sheet := sol.Sheets[0]
	require.Len(t, sheet.Placements, 2)
	assert.True(t, sheet.Optimal)

	// Both parts share the bottom shelf, one kerf apart.
	assert.Equal(t, 0.0, sheet.Placements[0].X)
	assert.InDelta(t, 403.2, sheet.Placements[1].X, 1e-9)
	assert.Equal(t, 0.0, sheet.Placements[0].Y)
	assert.Equal(t, 0.0, sheet.Placements[1].Y)
	assert.Equal(t, 0, sheet.Placements[0].Shelf)
	assert.Equal(t, 0, sheet.Placements[1].Shelf)

	// One vertical cut of shelf height separates them.
	require.Len(t, sheet.Cuts, 1)
	assert.Equal(t, 2, sheet.Cuts[0].Stage)
	assert.Equal(t, model.CutVertical, sheet.Cuts[0].Orientation)
	assert.InDelta(t, 400.0, sheet.Cuts[0].X1, 1e-9)
	assert.InDelta(t, 300.0, sheet.InternalCutLength, 1e-9)
	assert.InDelta(t, 1100.0, sheet.TrimCutLength, 1e-9)
	assert.InDelta(t, 240_000.0, sheet.UsedArea, 1e-9)
}

func TestPack_TwoShelvesRipCut(t *testing.T) {
	s := testSettings()
	s.Kerf = 0
	p := New(s, nil, nil)
	req := Request{
		Board: model.NewBoardSpec("Board", 1000, 600),
		Parts: []model.PartSpec{part("A", 900, 250, 2, false)},
	}

	sol, err := p.Pack(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 1, sol.SheetCount())
	sheet := sol.Sheets[0]
	require.Len(t, sheet.Placements, 2)

	// Too wide to sit side by side, so they stack on two shelves.
	assert.Equal(t, 0.0, sheet.Placements[0].Y)
	assert.InDelta(t, 250.0, sheet.Placements[1].Y, 1e-9)
	assert.Equal(t, 0, sheet.Placements[0].Shelf)
	assert.Equal(t, 1, sheet.Placements[1].Shelf)

	// One full-width rip separates the shelves; the top remnant stays
	// attached.
	require.Len(t, sheet.Cuts, 1)
	cut := sheet.Cuts[0]
	assert.Equal(t, 1, cut.Stage)
	assert.Equal(t, model.CutHorizontal, cut.Orientation)
	assert.InDelta(t, 250.0, cut.Y1, 1e-9)
	assert.InDelta(t, 1000.0, cut.Length(), 1e-9)

	assert.InDelta(t, 1000.0, sheet.InternalCutLength, 1e-9)
	assert.InDelta(t, 1400.0, sheet.TrimCutLength, 1e-9)
	assert.InDelta(t, 150_000.0, sheet.WasteArea, 1e-9)
}

func TestPack_WardrobeTwoSheets(t *testing.T) {
	s := testSettings()
	s.Kerf = 3.2
	s.MaxShelves = 2
	s.MaxNodes = 10_000
	p := New(s, nil, nil)
	req := wardrobeRequest()

	sol, err := p.Pack(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, sol.SheetCount())
	assert.Equal(t, 16, sol.PlacedCount())
	assert.Empty(t, sol.Unplaced)
	assert.False(t, sol.Capped)

	// The search tree is far larger than the node budget, so neither
	// sheet is proved optimal.
	assert.Equal(t, model.QualityBestEffort, sol.Quality)

	assert.Empty(t, model.ValidateSolution(sol, req.Parts))
	assert.InDelta(t, 3_475_900.0, sol.TotalUsedArea(), 0.5)

	for _, sheet := range sol.Sheets {
		assert.GreaterOrEqual(t, sheet.WasteArea, 0.0)
		shelfY := make(map[int]float64)
		for _, pl := range sheet.Placements {
			if pl.Label == "Bok" || pl.Label == "Dvierka" {
				assert.False(t, pl.Rotated, "%s is not rotatable", pl.UID)
			}
			// Placements reporting the same shelf share a y origin.
			if y, seen := shelfY[pl.Shelf]; seen {
				assert.Equal(t, y, pl.Y, "%s strays from shelf %d", pl.UID, pl.Shelf)
			}
			shelfY[pl.Shelf] = pl.Y
		}
	}
}

func TestPack_BudgetMonotonicity(t *testing.T) {
	req := wardrobeRequest()
	run := func(nodes int64) model.Solution {
		s := testSettings()
		s.Kerf = 3.2
		s.MaxShelves = 2
		s.MaxNodes = nodes
		p := New(s, nil, nil)
		sol, err := p.Pack(context.Background(), req)
		require.NoError(t, err)
		return sol
	}

	small := run(4_000)
	large := run(40_000)

	// More nodes only ever improve the incumbent on each sheet, so the
	// first sheet packs at least as much area and the run needs no extra
	// sheets.
	require.NotEmpty(t, small.Sheets)
	require.NotEmpty(t, large.Sheets)
	assert.GreaterOrEqual(t, large.Sheets[0].UsedArea, small.Sheets[0].UsedArea)
	assert.LessOrEqual(t, large.SheetCount(), small.SheetCount())
}

func TestPack_SheetCapLeavesRemainder(t *testing.T) {
	s := testSettings()
	s.Kerf = 0
	s.MaxSheets = 2
	p := New(s, nil, nil)
	req := Request{
		Board: model.NewBoardSpec("Board", 1000, 600),
		Parts: []model.PartSpec{part("A", 900, 500, 3, false)},
	}

	sol, err := p.Pack(context.Background(), req)
	require.NoError(t, err, "hitting the cap is not an error")

	assert.Equal(t, 2, sol.SheetCount())
	assert.Equal(t, 2, sol.PlacedCount())
	assert.True(t, sol.Capped)
	require.Len(t, sol.Unplaced, 1)
	assert.Equal(t, "A#3", sol.Unplaced[0].UID)

	// Each sheet layout was still proved optimal on its own.
	assert.Equal(t, model.QualityOptimal, sol.Quality)
	assert.Empty(t, model.ValidateSolution(sol, req.Parts))
}

func TestPack_OversizePartFailsFast(t *testing.T) {
	p := New(testSettings(), nil, nil)
	req := Request{
		Board: model.NewBoardSpec("Board", 1000, 600),
		Parts: []model.PartSpec{
			part("Huge", 1100, 650, 1, true),
			part("Fine", 300, 200, 2, true),
		},
	}

	sol, err := p.Pack(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOversize)
	assert.Contains(t, err.Error(), "Huge")

	assert.Equal(t, 0, sol.SheetCount())
	assert.Len(t, sol.Unplaced, 3)
	assert.Equal(t, model.QualityBestEffort, sol.Quality)
}

func TestPack_RequestValidation(t *testing.T) {
	goodBoard := model.NewBoardSpec("Board", 1000, 600)
	goodParts := []model.PartSpec{part("A", 300, 200, 1, true)}

	tests := []struct {
		name     string
		req      Request
		mutate   func(*Settings)
		contains string
	}{
		{
			name:     "no parts",
			req:      Request{Board: goodBoard},
			contains: "no parts",
		},
		{
			name:     "zero quantity",
			req:      Request{Board: goodBoard, Parts: []model.PartSpec{part("A", 300, 200, 0, true)}},
			contains: "quantity",
		},
		{
			name:     "empty label",
			req:      Request{Board: goodBoard, Parts: []model.PartSpec{part("", 300, 200, 1, true)}},
			contains: "label",
		},
		{
			name:     "off grid part",
			req:      Request{Board: goodBoard, Parts: []model.PartSpec{part("A", 100.05, 200, 1, true)}},
			contains: "grid",
		},
		{
			name: "duplicate label",
			req: Request{Board: goodBoard, Parts: []model.PartSpec{
				part("A", 300, 200, 1, true),
				part("A", 400, 200, 1, true),
			}},
			contains: "duplicate",
		},
		{
			name:     "zero board",
			req:      Request{Board: model.NewBoardSpec("Board", 0, 600), Parts: goodParts},
			contains: "positive",
		},
		{
			name:     "trim eats board",
			req:      Request{Board: boardWithTrim(100, 100, 50), Parts: goodParts},
			contains: "usable",
		},
		{
			name:     "negative kerf",
			req:      Request{Board: goodBoard, Parts: goodParts},
			mutate:   func(s *Settings) { s.Kerf = -1 },
			contains: "kerf",
		},
		{
			name:     "zero sheet cap",
			req:      Request{Board: goodBoard, Parts: goodParts},
			mutate:   func(s *Settings) { s.MaxSheets = 0 },
			contains: "cap",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := testSettings()
			if tc.mutate != nil {
				tc.mutate(&s)
			}
			p := New(s, nil, nil)
			sol, err := p.Pack(context.Background(), tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRequest)
			assert.Contains(t, err.Error(), tc.contains)
			assert.Equal(t, 0, sol.SheetCount())
		})
	}
}

func TestPack_NodeBudgetTooSmall(t *testing.T) {
	s := testSettings()
	s.Kerf = 3.2
	s.MaxShelves = 2
	// Too few nodes to even reach the first complete layout.
	s.MaxNodes = 20
	p := New(s, nil, nil)
	req := wardrobeRequest()

	sol, err := p.Pack(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoProgress)
	assert.Equal(t, 0, sol.SheetCount())
	assert.Len(t, sol.Unplaced, 16)
	assert.Equal(t, model.QualityBestEffort, sol.Quality)
}

func TestPack_CancelledContext(t *testing.T) {
	p := New(testSettings(), nil, nil)
	req := Request{
		Board: model.NewBoardSpec("Board", 1000, 600),
		Parts: []model.PartSpec{part("A", 300, 200, 2, true)},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sol, err := p.Pack(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, sol.SheetCount())
	assert.Len(t, sol.Unplaced, 2)
}

func TestPack_Deterministic(t *testing.T) {
	req := wardrobeRequest()
	run := func() model.Solution {
		s := testSettings()
		s.Kerf = 3.2
		s.MaxShelves = 2
		s.MaxNodes = 4_000
		p := New(s, nil, nil)
		sol, err := p.Pack(context.Background(), req)
		require.NoError(t, err)
		return sol
	}

	first := run()
	second := run()

	require.Equal(t, first.SheetCount(), second.SheetCount())
	for i := range first.Sheets {
		assert.Equal(t, first.Sheets[i].Placements, second.Sheets[i].Placements)
		assert.Equal(t, first.Sheets[i].InternalCutLength, second.Sheets[i].InternalCutLength)
		assert.Equal(t, first.Sheets[i].WasteArea, second.Sheets[i].WasteArea)
	}
	assert.Equal(t, first.Quality, second.Quality)
}

type countingSink struct {
	solved int
	hits   int
	misses int
	packs  int
}

func (s *countingSink) SheetSolved(string, int64, float64) { s.solved++ }

func (s *countingSink) CacheResult(hit bool) {
	if hit {
		s.hits++
	} else {
		s.misses++
	}
}

func (s *countingSink) PackCompleted(int, int, int) { s.packs++ }

func TestPack_CacheReusesLayouts(t *testing.T) {
	s := testSettings()
	s.Kerf = 0
	s.MaxSheets = 5
	s.CacheSize = 8
	sink := &countingSink{}
	p := New(s, nil, sink)
	req := Request{
		Board: model.NewBoardSpec("Board", 1000, 600),
		Parts: []model.PartSpec{part("A", 900, 500, 3, false)},
	}

	first, err := p.Pack(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 3, first.SheetCount())
	assert.Equal(t, 3, sink.misses)
	assert.Equal(t, 0, sink.hits)
	assert.Equal(t, 3, sink.solved)

	second, err := p.Pack(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, sink.hits, "every sheet should come from the cache")
	assert.Equal(t, 3, sink.solved, "no new solver runs on the second pack")

	require.Equal(t, first.SheetCount(), second.SheetCount())
	for i := range first.Sheets {
		assert.Equal(t, first.Sheets[i].Placements, second.Sheets[i].Placements)
	}
	assert.Equal(t, first.Quality, second.Quality)
}
