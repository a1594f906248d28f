package engine

import (
	"context"
	"math"
	"time"

	"github.com/sawkit/panelcut/internal/model"
	"github.com/sawkit/panelcut/internal/solver"
)

// All solver arithmetic runs in tenths of a millimetre so that kerf
// widths like 3.2 stay exact. Inputs are validated against this grid.
const gridScale = 10

func toGrid(v float64) int64 {
	return int64(math.Round(v * gridScale))
}

func fromGrid(v int64) float64 {
	return float64(v) / gridScale
}

// onGrid reports whether v lies on the 0.1 mm grid.
func onGrid(v float64) bool {
	scaled := v * gridScale
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}

// packItem is one instance prepared for the solver, in grid units.
type packItem struct {
	uid       string
	label     string
	w, h      int64
	canRotate bool
}

func (it packItem) area() int64 {
	return it.w * it.h
}

func (it packItem) maxSide() int64 {
	if it.w > it.h {
		return it.w
	}
	return it.h
}

func (it packItem) minHeight() int64 {
	if it.canRotate && it.w < it.h {
		return it.w
	}
	return it.h
}

// shelfLayout is the raw solver outcome for one sheet.
type shelfLayout struct {
	status     solver.Status
	nodes      int64
	placements []model.Placement
}

// packSheet builds and solves the shelf model for one sheet: every item
// is optionally placed on one of at most maxShelves horizontal strips,
// maximizing placed area with cut length and shelf count as penalties.
// An empty sheet is deliberately infeasible, so the caller can treat
// Infeasible as "nothing fits".
func packSheet(ctx context.Context, usableW, usableH, kerf int64, items []packItem, maxShelves int, cutWeight, shelfWeight int64, params solver.Params) (shelfLayout, error) {
	n := len(items)
	s := maxShelves
	m := solver.NewModel()

	use := make([]solver.IntVar, n)
	rot := make([]solver.IntVar, n)
	wEff := make([]solver.IntVar, n)
	hEff := make([]solver.IntVar, n)
	xs := make([]solver.IntVar, n)
	ys := make([]solver.IntVar, n)
	inflW := make([]solver.IntVar, n)
	inShelf := make([][]solver.IntVar, n)

	for i, it := range items {
		use[i] = m.NewBoolVar("use")
		if it.canRotate && it.w != it.h {
			rot[i] = m.NewBoolVar("rot")
		} else {
			rot[i] = m.NewConstant(0)
		}
		wEff[i] = m.NewIntVar(0, it.maxSide(), "w_eff")
		hEff[i] = m.NewIntVar(0, it.maxSide(), "h_eff")
		// w_eff = w + (h-w)*rot, h_eff = h + (w-h)*rot
		m.AddEquality(solver.NewLinExpr().Add(1, wEff[i]).Add(it.w-it.h, rot[i]), it.w)
		m.AddEquality(solver.NewLinExpr().Add(1, hEff[i]).Add(it.h-it.w, rot[i]), it.h)

		xs[i] = m.NewIntVar(0, usableW, "x")
		ys[i] = m.NewIntVar(0, usableH, "y")
		inflW[i] = m.NewIntVar(kerf, it.maxSide()+kerf, "infl_w")
		m.AddEquality(solver.NewLinExpr().Add(1, inflW[i]).Add(-1, wEff[i]), kerf)

		m.AddLessOrEqual(solver.NewLinExpr().Add(1, xs[i]).Add(1, wEff[i]), usableW).OnlyEnforceIf(use[i])
		m.AddLessOrEqual(solver.NewLinExpr().Add(1, ys[i]).Add(1, hEff[i]), usableH).OnlyEnforceIf(use[i])

		inShelf[i] = make([]solver.IntVar, s)
		for j := 0; j < s; j++ {
			inShelf[i][j] = m.NewBoolVar("in_shelf")
		}
		m.AddEquality(solver.Sum(inShelf[i]...).Add(-1, use[i]), 0)
	}

	shelfH := make([]solver.IntVar, s)
	shelfUsed := make([]solver.IntVar, s)
	shelfY0 := make([]solver.IntVar, s)
	count := make([]solver.IntVar, s)
	cutsInShelf := make([]solver.IntVar, s)
	vertLen := make([]solver.IntVar, s)

	for j := 0; j < s; j++ {
		shelfH[j] = m.NewIntVar(0, usableH, "shelf_h")
		shelfUsed[j] = m.NewBoolVar("shelf_used")
		count[j] = m.NewIntVar(0, int64(n), "count")

		members := solver.NewLinExpr()
		for i := 0; i < n; i++ {
			members.Add(1, inShelf[i][j])
		}
		m.AddEquality(members.Add(-1, count[j]), 0)

		// shelf_used <=> count >= 1
		m.AddLessOrEqual(solver.NewLinExpr().Add(1, count[j]).Add(-int64(n), shelfUsed[j]), 0)
		m.AddGreaterOrEqual(solver.NewLinExpr().Add(1, count[j]).Add(-1, shelfUsed[j]), 0)

		for i := 0; i < n; i++ {
			m.AddGreaterOrEqual(solver.NewLinExpr().Add(1, shelfH[j]).Add(-1, hEff[i]), 0).OnlyEnforceIf(inShelf[i][j])
		}

		// cuts separating parts inside the shelf: count-1 when used, 0 otherwise
		cutsInShelf[j] = m.NewIntVar(0, int64(n-1), "cuts_in_shelf")
		m.AddEquality(solver.NewLinExpr().Add(1, cutsInShelf[j]).Add(-1, count[j]).Add(1, shelfUsed[j]), 0)
		vertLen[j] = m.NewIntVar(0, int64(n-1)*usableH, "vert_len")
		m.AddProductEquality(vertLen[j], cutsInShelf[j], shelfH[j])
	}

	// Shelves stack bottom-up with one kerf between consecutive used
	// shelves; empty shelves sort to the top.
	for j := 0; j+1 < s; j++ {
		m.AddGreaterOrEqual(solver.NewLinExpr().Add(1, shelfUsed[j]).Add(-1, shelfUsed[j+1]), 0)
	}
	shelfY0[0] = m.NewConstant(0)
	for j := 1; j < s; j++ {
		shelfY0[j] = m.NewIntVar(0, usableH, "shelf_y0")
		addKerf := m.NewIntVar(0, kerf, "add_kerf")
		m.AddEquality(solver.NewLinExpr().Add(1, addKerf).Add(-kerf, shelfUsed[j]), 0)
		m.AddEquality(solver.NewLinExpr().Add(1, shelfY0[j]).Add(-1, shelfY0[j-1]).Add(-1, shelfH[j-1]).Add(-1, addKerf), 0)
	}
	m.AddLessOrEqual(solver.NewLinExpr().Add(1, shelfY0[s-1]).Add(1, shelfH[s-1]), usableH)

	for i := 0; i < n; i++ {
		for j := 0; j < s; j++ {
			m.AddEquality(solver.NewLinExpr().Add(1, ys[i]).Add(-1, shelfY0[j]), 0).OnlyEnforceIf(inShelf[i][j])
		}
	}

	// One no-overlap group per shelf over kerf-inflated widths.
	for j := 0; j < s; j++ {
		group := make([]solver.Interval, 0, n)
		for i := 0; i < n; i++ {
			size := solver.NewLinExpr().Add(1, wEff[i]).AddConst(kerf)
			group = append(group, m.NewOptionalInterval(xs[i], size, inShelf[i][j]))
		}
		m.AddNoOverlap(group)
	}

	// Membership-weighted width budget per shelf. The no-overlap groups
	// keep parts disjoint; these rows surface a full shelf to propagation
	// as soon as memberships are decided.
	for j := 0; j < s; j++ {
		budget := solver.NewLinExpr()
		for i, it := range items {
			contrib := m.NewIntVar(0, it.maxSide()+kerf, "w_contrib")
			m.AddProductEquality(contrib, inflW[i], inShelf[i][j])
			budget.Add(1, contrib)
		}
		m.AddLessOrEqual(budget, usableW+kerf)
	}

	var maxArea int64
	areaExpr := solver.NewLinExpr()
	for i, it := range items {
		areaExpr.Add(it.area(), use[i])
		maxArea += it.area()
	}
	usedArea := m.NewIntVar(0, maxArea, "used_area")
	m.AddEquality(areaExpr.Add(-1, usedArea), 0)

	numShelves := m.NewIntVar(0, int64(s), "num_shelves")
	m.AddEquality(solver.Sum(shelfUsed...).Add(-1, numShelves), 0)

	// horiz = (num_shelves - 1) * W; the domain floor makes a sheet with
	// zero shelves infeasible, which the driver relies on.
	horizLen := m.NewIntVar(0, int64(s-1)*usableW, "horiz_len")
	m.AddEquality(solver.NewLinExpr().Add(1, horizLen).Add(-usableW, numShelves), -usableW)

	approxCut := solver.NewLinExpr().Add(1, horizLen)
	for j := 0; j < s; j++ {
		approxCut.Add(1, vertLen[j])
	}
	cutLen := m.NewIntVar(0, int64(s-1)*usableW+int64(s)*int64(n-1)*usableH, "cut_len")
	m.AddEquality(approxCut.Add(-1, cutLen), 0)

	objective := solver.NewLinExpr().
		Add(-1, usedArea).
		Add(cutWeight, cutLen).
		Add(shelfWeight, numShelves)
	m.Minimize(objective)

	// Branch per part: place it, orient it, pick its shelf. Energy
	// propagation closes full shelves, so the first dive is a greedy fill
	// of shelf 0 upward.
	var decisions []solver.IntVar
	for i := range items {
		decisions = append(decisions, use[i], rot[i])
		decisions = append(decisions, inShelf[i]...)
	}
	m.AddDecisionStrategy(decisions)

	res, err := m.Solve(ctx, params)
	if err != nil {
		return shelfLayout{}, err
	}
	layout := shelfLayout{status: res.Status, nodes: res.Nodes}
	if res.Status != solver.Optimal && res.Status != solver.Feasible {
		return layout, nil
	}
	for i, it := range items {
		if !res.BoolValue(use[i]) {
			continue
		}
		shelf := 0
		for j := 0; j < s; j++ {
			if res.BoolValue(inShelf[i][j]) {
				shelf = j
				break
			}
		}
		layout.placements = append(layout.placements, model.Placement{
			UID:     it.uid,
			Label:   it.label,
			Shelf:   shelf,
			X:       fromGrid(res.Value(xs[i])),
			Y:       fromGrid(res.Value(ys[i])),
			Width:   fromGrid(res.Value(wEff[i])),
			Height:  fromGrid(res.Value(hEff[i])),
			Rotated: res.BoolValue(rot[i]),
		})
	}
	return layout, nil
}

// defaultShelfBound limits the shelf count to what can physically stack:
// n shelves need n times the smallest part height plus n-1 kerfs.
func defaultShelfBound(usableH, kerf int64, items []packItem) int {
	n := len(items)
	if n == 0 {
		return 1
	}
	minH := items[0].minHeight()
	for _, it := range items[1:] {
		if h := it.minHeight(); h < minH {
			minH = h
		}
	}
	if minH+kerf <= 0 {
		return 1
	}
	bound := int((usableH + kerf) / (minH + kerf))
	if bound < 1 {
		bound = 1
	}
	if bound > n {
		bound = n
	}
	return bound
}

// solveBudget converts engine settings into solver limits.
func solveBudget(maxNodes int64, limit time.Duration) solver.Params {
	return solver.Params{MaxNodes: maxNodes, TimeLimit: limit}
}
