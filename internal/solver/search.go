package solver

import (
	"context"
	"sort"
	"time"
)

// Status classifies the outcome of a Solve call.
type Status int

const (
	// Unknown means the budget ran out before any solution was found.
	Unknown Status = iota
	// Optimal means a solution was found and proved best.
	Optimal
	// Feasible means a solution was found but the budget ran out before
	// optimality was proved.
	Feasible
	// Infeasible means the model was proved to have no solution.
	Infeasible
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Feasible:
		return "feasible"
	case Infeasible:
		return "infeasible"
	default:
		return "unknown"
	}
}

// Default search budgets.
const (
	DefaultMaxNodes  int64 = 200_000
	DefaultTimeLimit       = 10 * time.Second
)

// Params bounds the search effort.
type Params struct {
	// MaxNodes caps the number of search nodes. Truncation by node count
	// is reproducible across runs, unlike the wall clock.
	MaxNodes int64
	// TimeLimit is a soft wall-clock deadline checked at every node.
	TimeLimit time.Duration
}

// Result carries the solve outcome. Value and BoolValue are only
// meaningful for Optimal and Feasible results.
type Result struct {
	Status    Status
	Objective int64
	Nodes     int64

	values []int64
}

// Value returns the assigned value of v, or 0 if no solution was found.
func (r Result) Value(v IntVar) int64 {
	if v.idx >= len(r.values) {
		return 0
	}
	return r.values[v.idx]
}

// BoolValue returns the assigned truth of v.
func (r Result) BoolValue(v IntVar) bool {
	return r.Value(v) == 1
}

const maxPropagationPasses = 64

type trailEntry struct {
	v     int32
	wasLo bool
	old   int64
}

type searcher struct {
	m  *Model
	lo []int64
	hi []int64

	trail []trailEntry

	ctx      context.Context
	deadline time.Time
	maxNodes int64
	nodes    int64
	stopped  bool

	hasBest  bool
	bestObj  int64
	bestVals []int64

	// certified is set when the incumbent is proved optimal early,
	// either by matching the root relaxation bound or because the model
	// has no objective.
	certified bool

	hasLP   bool
	lpBound int64
}

// Solve runs the search and reports the best assignment found. The error
// return is reserved for invalid models; limit and infeasibility outcomes
// are expressed through Result.Status.
func (m *Model) Solve(ctx context.Context, p Params) (Result, error) {
	if m.err != nil {
		return Result{Status: Unknown}, m.err
	}
	if p.MaxNodes <= 0 {
		p.MaxNodes = DefaultMaxNodes
	}
	if p.TimeLimit <= 0 {
		p.TimeLimit = DefaultTimeLimit
	}
	s := &searcher{
		m:        m,
		lo:       make([]int64, len(m.vars)),
		hi:       make([]int64, len(m.vars)),
		ctx:      ctx,
		deadline: time.Now().Add(p.TimeLimit),
		maxNodes: p.MaxNodes,
	}
	for i, v := range m.vars {
		s.lo[i] = v.lo
		s.hi[i] = v.hi
	}
	if !s.propagate() {
		return Result{Status: Infeasible}, nil
	}
	if m.objective != nil {
		bound, infeasible, ok := s.rootBound()
		if infeasible {
			return Result{Status: Infeasible}, nil
		}
		if ok {
			s.hasLP = true
			s.lpBound = bound
		}
	}
	s.search()

	res := Result{Nodes: s.nodes, values: s.bestVals}
	switch {
	case s.hasBest && (!s.stopped || s.certified):
		res.Status = Optimal
		res.Objective = s.bestObj
	case s.hasBest:
		res.Status = Feasible
		res.Objective = s.bestObj
	case s.stopped:
		res.Status = Unknown
	default:
		res.Status = Infeasible
	}
	return res, nil
}

func (s *searcher) mark() int { return len(s.trail) }

func (s *searcher) undo(mark int) {
	for i := len(s.trail) - 1; i >= mark; i-- {
		e := s.trail[i]
		if e.wasLo {
			s.lo[e.v] = e.old
		} else {
			s.hi[e.v] = e.old
		}
	}
	s.trail = s.trail[:mark]
}

// setLo tightens a lower bound. Reports false on an emptied domain.
func (s *searcher) setLo(v int, val int64) bool {
	if val <= s.lo[v] {
		return true
	}
	s.trail = append(s.trail, trailEntry{v: int32(v), wasLo: true, old: s.lo[v]})
	s.lo[v] = val
	return val <= s.hi[v]
}

func (s *searcher) setHi(v int, val int64) bool {
	if val >= s.hi[v] {
		return true
	}
	s.trail = append(s.trail, trailEntry{v: int32(v), wasLo: false, old: s.hi[v]})
	s.hi[v] = val
	return val >= s.lo[v]
}

func (s *searcher) fix(v int, val int64) bool {
	return s.setLo(v, val) && s.setHi(v, val)
}

// propagate runs bounds consistency to a fixpoint (or a pass cap, which
// only weakens pruning). Reports false on conflict.
func (s *searcher) propagate() bool {
	for pass := 0; pass < maxPropagationPasses; pass++ {
		changed := false
		for i := range s.m.rows {
			if !s.propagateRow(&s.m.rows[i], &changed) {
				return false
			}
		}
		for i := range s.m.products {
			if !s.propagateProduct(&s.m.products[i], &changed) {
				return false
			}
		}
		for gi := range s.m.groups {
			if !s.propagateEnergy(s.m.groups[gi], &changed) {
				return false
			}
		}
		if !changed {
			return true
		}
	}
	return true
}

func (s *searcher) propagateRow(r *linRow, changed *bool) bool {
	if r.guard >= 0 && s.hi[r.guard] == 0 {
		return true
	}
	emin, emax := exprBounds(r.expr, s.lo, s.hi)
	violated := emin > r.hi || emax < r.lo
	if r.guard >= 0 && s.lo[r.guard] == 0 {
		// Guard undecided: the row cannot tighten anything yet, but a row
		// already violated under current bounds forces the guard off.
		if violated {
			if !s.setHi(r.guard, 0) {
				return false
			}
			*changed = true
		}
		return true
	}
	if violated {
		return false
	}
	for _, t := range r.expr.terms {
		var cmin, cmax int64
		if t.coef >= 0 {
			cmin = t.coef * s.lo[t.v]
			cmax = t.coef * s.hi[t.v]
		} else {
			cmin = t.coef * s.hi[t.v]
			cmax = t.coef * s.lo[t.v]
		}
		othersMin := emin - cmin
		othersMax := emax - cmax
		// r.lo <= coef*x + others <= r.hi
		var newLo, newHi int64
		if t.coef > 0 {
			newLo = ceilDiv(r.lo-othersMax, t.coef)
			newHi = floorDiv(r.hi-othersMin, t.coef)
		} else if t.coef < 0 {
			newLo = ceilDiv(othersMin-r.hi, -t.coef)
			newHi = floorDiv(othersMax-r.lo, -t.coef)
		} else {
			continue
		}
		if r.lo <= minBound {
			if t.coef > 0 {
				newLo = s.lo[t.v]
			} else {
				newHi = s.hi[t.v]
			}
		}
		if r.hi >= maxBound {
			if t.coef > 0 {
				newHi = s.hi[t.v]
			} else {
				newLo = s.lo[t.v]
			}
		}
		if newLo > s.lo[t.v] {
			if !s.setLo(t.v, newLo) {
				return false
			}
			*changed = true
		}
		if newHi < s.hi[t.v] {
			if !s.setHi(t.v, newHi) {
				return false
			}
			*changed = true
		}
	}
	return true
}

// propagateProduct applies forward interval arithmetic to target == a*b.
// Factors are expected to be fixed by decisions or linear rows before the
// target is needed, so no division-based back-propagation is attempted.
func (s *searcher) propagateProduct(p *productRow, changed *bool) bool {
	c1 := s.lo[p.a] * s.lo[p.b]
	c2 := s.lo[p.a] * s.hi[p.b]
	c3 := s.hi[p.a] * s.lo[p.b]
	c4 := s.hi[p.a] * s.hi[p.b]
	mn := min64(min64(c1, c2), min64(c3, c4))
	mx := max64(max64(c1, c2), max64(c3, c4))
	if mn > s.lo[p.target] {
		if !s.setLo(p.target, mn) {
			return false
		}
		*changed = true
	}
	if mx < s.hi[p.target] {
		if !s.setHi(p.target, mx) {
			return false
		}
		*changed = true
	}
	return true
}

// propagateEnergy checks that the total minimum size of the present
// intervals of a group fits the group window, and switches off any
// undecided presence whose interval can no longer fit.
func (s *searcher) propagateEnergy(group []Interval, changed *bool) bool {
	var wlo, whi int64
	var energy int64
	seen := false
	for _, iv := range group {
		if s.hi[iv.presence] == 0 {
			continue
		}
		smin, smax := exprBounds(iv.size, s.lo, s.hi)
		start := s.lo[iv.start]
		end := s.hi[iv.start] + smax
		if !seen {
			wlo, whi = start, end
			seen = true
		} else {
			wlo = min64(wlo, start)
			whi = max64(whi, end)
		}
		if s.lo[iv.presence] == 1 {
			energy += smin
		}
	}
	if !seen {
		return true
	}
	span := whi - wlo
	if energy > span {
		return false
	}
	for _, iv := range group {
		if s.lo[iv.presence] != 0 || s.hi[iv.presence] == 0 {
			continue
		}
		smin, _ := exprBounds(iv.size, s.lo, s.hi)
		if energy+smin > span {
			if !s.setHi(iv.presence, 0) {
				return false
			}
			*changed = true
		}
	}
	return true
}

func (s *searcher) decisionVar() int {
	if len(s.m.decisions) > 0 {
		for _, v := range s.m.decisions {
			if s.lo[v] < s.hi[v] {
				return v
			}
		}
		return -1
	}
	for v := range s.m.vars {
		if s.lo[v] < s.hi[v] {
			return v
		}
	}
	return -1
}

// pruned reports whether the objective can no longer beat the incumbent.
func (s *searcher) pruned() bool {
	if s.m.objective == nil || !s.hasBest {
		return false
	}
	objMin, _ := exprBounds(s.m.objective, s.lo, s.hi)
	if s.hasLP && s.lpBound > objMin {
		objMin = s.lpBound
	}
	return objMin >= s.bestObj
}

// search explores the subtree under the current bounds. Branching bisects
// the first unfixed decision variable, upper half first, so boolean
// decisions try true before false.
func (s *searcher) search() {
	s.nodes++
	if s.nodes > s.maxNodes || time.Now().After(s.deadline) || s.ctx.Err() != nil {
		s.stopped = true
		return
	}
	v := s.decisionVar()
	if v < 0 {
		s.complete()
		return
	}
	mid := s.lo[v] + (s.hi[v]-s.lo[v])/2
	for half := 0; half < 2; half++ {
		mark := s.mark()
		var ok bool
		if half == 0 {
			ok = s.setLo(v, mid+1)
		} else {
			ok = s.setHi(v, mid)
		}
		if ok && s.propagate() && !s.pruned() {
			s.search()
		}
		s.undo(mark)
		if s.stopped {
			return
		}
	}
}

// complete extends a fully decided node to a concrete assignment. Present
// intervals of every no-overlap group are laid out back to back in
// canonical order (size descending, then variable order); every remaining
// variable is fixed to its lower bound. The layout starts from the window
// minimum, so for minimization objectives the completion is exact: no
// other extension of the same decisions scores better.
func (s *searcher) complete() {
	mark := s.mark()
	defer s.undo(mark)

	for _, group := range s.m.groups {
		type member struct {
			start int
			size  int64
		}
		var members []member
		for _, iv := range group {
			if s.lo[iv.presence] != 1 {
				continue
			}
			smin, _ := exprBounds(iv.size, s.lo, s.hi)
			members = append(members, member{start: iv.start, size: smin})
		}
		if len(members) == 0 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			if members[i].size != members[j].size {
				return members[i].size > members[j].size
			}
			return members[i].start < members[j].start
		})
		cur := s.lo[members[0].start]
		for _, mb := range members {
			cur = min64(cur, s.lo[mb.start])
		}
		for _, mb := range members {
			if cur < s.lo[mb.start] {
				cur = s.lo[mb.start]
			}
			if cur > s.hi[mb.start] {
				return
			}
			if !s.fix(mb.start, cur) || !s.propagate() {
				return
			}
			cur += mb.size
		}
	}
	for v := range s.m.vars {
		if s.lo[v] < s.hi[v] {
			if !s.fix(v, s.lo[v]) || !s.propagate() {
				return
			}
		}
	}

	var obj int64
	if s.m.objective != nil {
		obj, _ = exprBounds(s.m.objective, s.lo, s.hi)
	}
	if !s.hasBest || obj < s.bestObj {
		s.hasBest = true
		s.bestObj = obj
		if s.bestVals == nil {
			s.bestVals = make([]int64, len(s.lo))
		}
		copy(s.bestVals, s.lo)
		if s.m.objective == nil || (s.hasLP && obj <= s.lpBound) {
			s.certified = true
			s.stopped = true
		}
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	return -floorDiv(-a, b)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
