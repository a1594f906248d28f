package engine

import (
	"fmt"
	"sort"

	"github.com/sawkit/panelcut/internal/model"
)

// geomEpsilon absorbs float64 noise when comparing coordinates that
// were produced on the 0.1 mm grid.
const geomEpsilon = 0.001

// shelfGroup is one horizontal strip of placements sharing a baseline.
type shelfGroup struct {
	y0     float64
	height float64
	parts  []model.Placement
}

// groupShelves buckets placements by their baseline Y and returns the
// strips bottom-up. The strip height is the tallest member.
func groupShelves(placements []model.Placement) []shelfGroup {
	byY := make(map[int64][]model.Placement)
	for _, pl := range placements {
		byY[toGrid(pl.Y)] = append(byY[toGrid(pl.Y)], pl)
	}
	keys := make([]int64, 0, len(byY))
	for k := range byY {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	groups := make([]shelfGroup, 0, len(keys))
	for _, k := range keys {
		parts := byY[k]
		sort.Slice(parts, func(i, j int) bool { return parts[i].X < parts[j].X })
		g := shelfGroup{y0: fromGrid(k), parts: parts}
		for _, pl := range parts {
			if pl.Height > g.height {
				g.height = pl.Height
			}
		}
		groups = append(groups, g)
	}
	return groups
}

// buildCuts derives the guillotine cut sequence from a shelf layout:
// stage 1 rips the sheet into strips, stage 2 separates the parts
// inside each strip. The topmost strip keeps the remnant above it
// attached, and the rightmost part of each strip keeps the remnant
// beside it, so neither produces a cut.
func buildCuts(groups []shelfGroup, usableW float64) []model.Cut {
	var cuts []model.Cut
	for gi, g := range groups {
		if gi < len(groups)-1 {
			y := g.y0 + g.height
			cuts = append(cuts, model.Cut{
				Stage:       1,
				Orientation: model.CutHorizontal,
				X1:          0,
				Y1:          y,
				X2:          usableW,
				Y2:          y,
			})
		}
		for pi := 0; pi+1 < len(g.parts); pi++ {
			x := g.parts[pi].Right()
			cuts = append(cuts, model.Cut{
				Stage:       2,
				Orientation: model.CutVertical,
				X1:          x,
				Y1:          g.y0,
				X2:          x,
				Y2:          g.y0 + g.height,
			})
		}
	}
	return cuts
}

// trimCutLength totals the cut length charged along the trimmed sheet
// border. A part edge resting on the usable boundary was freed by the
// trim cut there, so its length is billed even though no internal cut
// runs along it.
func trimCutLength(placements []model.Placement, usableW, usableH float64) float64 {
	var total float64
	for _, pl := range placements {
		if pl.X < geomEpsilon {
			total += pl.Height
		}
		if pl.Right() > usableW-geomEpsilon {
			total += pl.Height
		}
		if pl.Y < geomEpsilon {
			total += pl.Width
		}
		if pl.Top() > usableH-geomEpsilon {
			total += pl.Width
		}
	}
	return total
}

// computeSheetMetrics fills the derived fields of a sheet from its
// placements: the cut sequence, internal and trim cut lengths, and the
// used/waste area split. Kerf loss is counted as waste, not as used
// area. A negative waste area means the layout overlaps or escapes the
// sheet and is reported as an error.
func computeSheetMetrics(sheet *model.Sheet) error {
	usableW := sheet.Board.UsableWidth()
	usableH := sheet.Board.UsableHeight()

	groups := groupShelves(sheet.Placements)
	sheet.Cuts = buildCuts(groups, usableW)

	var internal float64
	for _, c := range sheet.Cuts {
		internal += c.Length()
	}
	sheet.InternalCutLength = internal
	sheet.TrimCutLength = trimCutLength(sheet.Placements, usableW, usableH)

	var used float64
	for _, pl := range sheet.Placements {
		used += pl.Area()
	}
	sheet.UsedArea = used
	sheet.WasteArea = sheet.Board.UsableArea() - used
	if sheet.WasteArea < -geomEpsilon {
		return fmt.Errorf("sheet %d: placed area %.1f exceeds usable area %.1f", sheet.Index, used, sheet.Board.UsableArea())
	}
	return nil
}
