package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// lpSimplex is a seam for tests to inject simplex failures.
var lpSimplex = lp.Simplex

// The relaxation is skipped for oversized or badly scaled models rather
// than risking a slow or ill-conditioned simplex run.
const (
	lpTol         = 1e-7
	lpMaxVars     = 600
	lpMaxAbsBound = 1e12
)

// rootBound computes a lower bound on the objective from the linear
// relaxation of the model under the current bounds. Rows with undecided
// guards and product equalities are dropped, and each no-overlap group is
// replaced by one aggregate energy row, so the relaxation admits every
// integer solution. An infeasible relaxation therefore proves the model
// infeasible.
func (s *searcher) rootBound() (bound int64, infeasible bool, ok bool) {
	n := len(s.m.vars)
	if n == 0 || n > lpMaxVars {
		return 0, false, false
	}
	for v := 0; v < n; v++ {
		if float64(s.hi[v]) > lpMaxAbsBound || float64(s.lo[v]) < -lpMaxAbsBound {
			return 0, false, false
		}
	}

	var gData []float64
	var h []float64
	addRow := func(coefs []float64, rhs float64) {
		gData = append(gData, coefs...)
		h = append(h, rhs)
	}
	row := func() []float64 { return make([]float64, n) }

	for v := 0; v < n; v++ {
		up := row()
		up[v] = 1
		addRow(up, float64(s.hi[v]))
		down := row()
		down[v] = -1
		addRow(down, -float64(s.lo[v]))
	}

	for i := range s.m.rows {
		r := &s.m.rows[i]
		if r.guard >= 0 && (s.hi[r.guard] == 0 || s.lo[r.guard] == 0) {
			continue
		}
		coefs := row()
		for _, t := range r.expr.terms {
			coefs[t.v] += float64(t.coef)
		}
		if r.hi < maxBound {
			addRow(coefs, float64(r.hi-r.expr.offset))
		}
		if r.lo > minBound {
			neg := row()
			for v, c := range coefs {
				neg[v] = -c
			}
			addRow(neg, float64(r.expr.offset-r.lo))
		}
	}

	for _, group := range s.m.groups {
		coefs := row()
		var wlo, whi int64
		seen := false
		for _, iv := range group {
			if s.hi[iv.presence] == 0 {
				continue
			}
			smin, smax := exprBounds(iv.size, s.lo, s.hi)
			if smin > 0 {
				coefs[iv.presence] += float64(smin)
			}
			start := s.lo[iv.start]
			end := s.hi[iv.start] + smax
			if !seen {
				wlo, whi = start, end
				seen = true
			} else {
				wlo = min64(wlo, start)
				whi = max64(whi, end)
			}
		}
		if seen {
			addRow(coefs, float64(whi-wlo))
		}
	}

	c := make([]float64, n)
	for _, t := range s.m.objective.terms {
		c[t.v] += float64(t.coef)
	}

	g := mat.NewDense(len(h), n, gData)
	cStd, aStd, bStd := lp.Convert(c, g, h, nil, nil)
	opt, _, err := lpSimplex(cStd, aStd, bStd, lpTol, nil)
	switch {
	case err == nil:
	case errors.Is(err, lp.ErrInfeasible):
		return 0, true, false
	default:
		return 0, false, false
	}
	if math.IsNaN(opt) || math.IsInf(opt, 0) {
		return 0, false, false
	}
	return int64(math.Ceil(opt + float64(s.m.objective.offset) - lpTol)), false, true
}
