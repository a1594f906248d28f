// Package solver implements a small deterministic constraint solver over
// bounded integer variables. It supports guarded linear constraints,
// product equalities, optional intervals with affine sizes grouped into
// no-overlap sets, and a linear minimization objective. The search is a
// depth-first branch-and-bound over a caller-declared decision order, so
// identical models always produce identical results.
package solver

import (
	"fmt"
	"math"
)

// Domain bounds are clamped into this band so that propagation arithmetic
// can never overflow int64.
const (
	minBound = math.MinInt64 / 8
	maxBound = math.MaxInt64 / 8
)

// IntVar is a handle to one integer variable of a Model.
type IntVar struct {
	idx int
}

type varInfo struct {
	name string
	lo   int64
	hi   int64
}

type linTerm struct {
	coef int64
	v    int
}

// LinExpr is an affine expression: sum of coef*var plus a constant offset.
// Interval sizes accept only LinExpr, which keeps them affine by
// construction; callers that need "size plus spacing" must fold the
// spacing into the expression rather than nesting arithmetic.
type LinExpr struct {
	terms  []linTerm
	offset int64
}

// NewLinExpr returns an empty expression (constant 0).
func NewLinExpr() *LinExpr {
	return &LinExpr{}
}

// Term returns the expression coef*v.
func Term(v IntVar, coef int64) *LinExpr {
	return NewLinExpr().Add(coef, v)
}

// Sum returns the expression v0 + v1 + ... .
func Sum(vs ...IntVar) *LinExpr {
	e := NewLinExpr()
	for _, v := range vs {
		e.Add(1, v)
	}
	return e
}

// Add appends coef*v and returns the expression for chaining.
func (e *LinExpr) Add(coef int64, v IntVar) *LinExpr {
	e.terms = append(e.terms, linTerm{coef: coef, v: v.idx})
	return e
}

// AddConst adds a constant and returns the expression for chaining.
func (e *LinExpr) AddConst(c int64) *LinExpr {
	e.offset += c
	return e
}

func (e *LinExpr) clone() *LinExpr {
	c := &LinExpr{offset: e.offset, terms: make([]linTerm, len(e.terms))}
	copy(c.terms, e.terms)
	return c
}

type linRow struct {
	expr  *LinExpr
	lo    int64
	hi    int64
	guard int // variable index of the enforcement literal, -1 if always on
}

// Constraint is a handle to an added linear constraint.
type Constraint struct {
	m   *Model
	row int
}

// OnlyEnforceIf makes the constraint active only when lit is true. While
// lit is unfixed the constraint may still fix lit to false when it is
// already violated under the current bounds.
func (c Constraint) OnlyEnforceIf(lit IntVar) Constraint {
	c.m.rows[c.row].guard = lit.idx
	return c
}

type productRow struct {
	target int
	a      int
	b      int
}

// Interval is an optional interval: a start variable, an affine size and a
// presence literal. Absent intervals impose nothing.
type Interval struct {
	start    int
	size     *LinExpr
	presence int
}

// Model accumulates variables and constraints for one Solve call.
type Model struct {
	vars      []varInfo
	rows      []linRow
	products  []productRow
	groups    [][]Interval
	decisions []int
	objective *LinExpr
	constants map[int64]int

	err error
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{constants: make(map[int64]int)}
}

// NewIntVar adds a variable with inclusive domain [lo, hi].
func (m *Model) NewIntVar(lo, hi int64, name string) IntVar {
	if lo > hi {
		m.fail(fmt.Errorf("variable %s: empty domain [%d,%d]", name, lo, hi))
		hi = lo
	}
	if lo < minBound {
		lo = minBound
	}
	if hi > maxBound {
		hi = maxBound
	}
	m.vars = append(m.vars, varInfo{name: name, lo: lo, hi: hi})
	return IntVar{idx: len(m.vars) - 1}
}

// NewBoolVar adds a 0/1 variable.
func (m *Model) NewBoolVar(name string) IntVar {
	return m.NewIntVar(0, 1, name)
}

// NewConstant returns a variable fixed to v. Constants are deduplicated.
func (m *Model) NewConstant(v int64) IntVar {
	if idx, ok := m.constants[v]; ok {
		return IntVar{idx: idx}
	}
	iv := m.NewIntVar(v, v, fmt.Sprintf("const(%d)", v))
	m.constants[v] = iv.idx
	return iv
}

// AddLinear constrains lo <= expr <= hi.
func (m *Model) AddLinear(expr *LinExpr, lo, hi int64) Constraint {
	if lo < minBound {
		lo = minBound
	}
	if hi > maxBound {
		hi = maxBound
	}
	m.rows = append(m.rows, linRow{expr: expr.clone(), lo: lo, hi: hi, guard: -1})
	return Constraint{m: m, row: len(m.rows) - 1}
}

// AddEquality constrains expr == v.
func (m *Model) AddEquality(expr *LinExpr, v int64) Constraint {
	return m.AddLinear(expr, v, v)
}

// AddLessOrEqual constrains expr <= v.
func (m *Model) AddLessOrEqual(expr *LinExpr, v int64) Constraint {
	return m.AddLinear(expr, minBound, v)
}

// AddGreaterOrEqual constrains expr >= v.
func (m *Model) AddGreaterOrEqual(expr *LinExpr, v int64) Constraint {
	return m.AddLinear(expr, v, maxBound)
}

// AddProductEquality constrains target == a*b. Propagation is forward
// interval arithmetic; the factors must become fixed by decisions or other
// constraints for the target to fix.
func (m *Model) AddProductEquality(target, a, b IntVar) {
	m.products = append(m.products, productRow{target: target.idx, a: a.idx, b: b.idx})
}

// NewOptionalInterval builds an interval from a start variable, an affine
// size expression and a presence literal.
func (m *Model) NewOptionalInterval(start IntVar, size *LinExpr, presence IntVar) Interval {
	return Interval{start: start.idx, size: size.clone(), presence: presence.idx}
}

// AddNoOverlap requires the present intervals of the group to be pairwise
// disjoint. Feasibility is enforced by energy filtering over the group
// window; start values are assigned by the canonical completion rule
// (size descending, then variable order) once all presences are decided.
func (m *Model) AddNoOverlap(intervals []Interval) {
	g := make([]Interval, len(intervals))
	copy(g, intervals)
	m.groups = append(m.groups, g)
}

// AddDecisionStrategy declares the branching order. Variables not listed
// are never branched on; they must be fixed by propagation or completion.
// Without a declared strategy every variable is a decision variable in
// creation order.
func (m *Model) AddDecisionStrategy(vars []IntVar) {
	for _, v := range vars {
		m.decisions = append(m.decisions, v.idx)
	}
}

// Minimize sets the objective. Without one, the first solution is optimal.
func (m *Model) Minimize(expr *LinExpr) {
	m.objective = expr.clone()
}

func (m *Model) fail(err error) {
	if m.err == nil {
		m.err = err
	}
}

// exprBounds evaluates the reachable range of e under the given bounds.
func exprBounds(e *LinExpr, lo, hi []int64) (int64, int64) {
	mn, mx := e.offset, e.offset
	for _, t := range e.terms {
		if t.coef >= 0 {
			mn += t.coef * lo[t.v]
			mx += t.coef * hi[t.v]
		} else {
			mn += t.coef * hi[t.v]
			mx += t.coef * lo[t.v]
		}
	}
	return mn, mx
}
