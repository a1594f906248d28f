package solver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

func solveParams() Params {
	return Params{MaxNodes: 100_000, TimeLimit: 30 * time.Second}
}

func TestMinimizeLinear(t *testing.T) {
	// Cover x+y >= 8 as cheaply as possible; x is the cheaper unit.
	m := NewModel()
	x := m.NewIntVar(0, 10, "x")
	y := m.NewIntVar(0, 10, "y")
	m.AddGreaterOrEqual(Sum(x, y), 8)
	m.AddDecisionStrategy([]IntVar{x, y})
	m.Minimize(NewLinExpr().Add(2, x).Add(3, y))

	res, err := m.Solve(context.Background(), solveParams())
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.Equal(t, int64(16), res.Objective)
	assert.Equal(t, int64(8), res.Value(x))
	assert.Equal(t, int64(0), res.Value(y))
}

func TestObjectiveOffset(t *testing.T) {
	m := NewModel()
	x := m.NewIntVar(2, 5, "x")
	m.AddDecisionStrategy([]IntVar{x})
	m.Minimize(Term(x, 1).AddConst(100))

	res, err := m.Solve(context.Background(), solveParams())
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.Equal(t, int64(102), res.Objective)
	assert.Equal(t, int64(2), res.Value(x))
}

func TestViolatedGuardForcesLiteralOff(t *testing.T) {
	// x is fixed to 5, so a guarded x <= 3 can never hold.
	m := NewModel()
	b := m.NewBoolVar("b")
	x := m.NewIntVar(5, 5, "x")
	m.AddLessOrEqual(Term(x, 1), 3).OnlyEnforceIf(b)
	m.AddDecisionStrategy([]IntVar{b})

	res, err := m.Solve(context.Background(), solveParams())
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.False(t, res.BoolValue(b))
}

func TestGuardedRowEnforcedWhenLiteralTrue(t *testing.T) {
	m := NewModel()
	b := m.NewBoolVar("b")
	x := m.NewIntVar(0, 10, "x")
	m.AddEquality(Term(b, 1), 1)
	m.AddGreaterOrEqual(Term(x, 1), 7).OnlyEnforceIf(b)
	m.AddDecisionStrategy([]IntVar{b, x})
	m.Minimize(Term(x, 1))

	res, err := m.Solve(context.Background(), solveParams())
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.Equal(t, int64(7), res.Value(x))
}

func TestInfeasibleByPropagation(t *testing.T) {
	m := NewModel()
	x := m.NewIntVar(0, 5, "x")
	m.AddEquality(Term(x, 1), 9)

	res, err := m.Solve(context.Background(), solveParams())
	require.NoError(t, err)
	assert.Equal(t, Infeasible, res.Status)
}

func TestProductEquality(t *testing.T) {
	m := NewModel()
	a := m.NewIntVar(0, 3, "a")
	b := m.NewIntVar(0, 4, "b")
	p := m.NewIntVar(0, 12, "p")
	m.AddEquality(Term(a, 1), 2)
	m.AddEquality(Term(b, 1), 3)
	m.AddProductEquality(p, a, b)
	m.AddDecisionStrategy([]IntVar{a, b})

	res, err := m.Solve(context.Background(), solveParams())
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.Equal(t, int64(6), res.Value(p))
}

func TestNoOverlapCanonicalLayout(t *testing.T) {
	// Three present intervals; layout is size descending with variable
	// order breaking the tie, packed back to back from zero.
	m := NewModel()
	tr := m.NewConstant(1)
	s0 := m.NewIntVar(0, 20, "s0")
	s1 := m.NewIntVar(0, 20, "s1")
	s2 := m.NewIntVar(0, 20, "s2")
	ivs := []Interval{
		m.NewOptionalInterval(s0, NewLinExpr().AddConst(5), tr),
		m.NewOptionalInterval(s1, NewLinExpr().AddConst(3), tr),
		m.NewOptionalInterval(s2, NewLinExpr().AddConst(5), tr),
	}
	m.AddNoOverlap(ivs)
	m.AddDecisionStrategy([]IntVar{tr})

	res, err := m.Solve(context.Background(), solveParams())
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.Equal(t, int64(0), res.Value(s0))
	assert.Equal(t, int64(5), res.Value(s2))
	assert.Equal(t, int64(10), res.Value(s1))
}

func TestNoOverlapEnergyInfeasible(t *testing.T) {
	// Two mandatory length-6 intervals inside a window of 10.
	m := NewModel()
	tr := m.NewConstant(1)
	s0 := m.NewIntVar(0, 4, "s0")
	s1 := m.NewIntVar(0, 4, "s1")
	m.AddNoOverlap([]Interval{
		m.NewOptionalInterval(s0, NewLinExpr().AddConst(6), tr),
		m.NewOptionalInterval(s1, NewLinExpr().AddConst(6), tr),
	})

	res, err := m.Solve(context.Background(), solveParams())
	require.NoError(t, err)
	assert.Equal(t, Infeasible, res.Status)
}

func TestEnergySwitchesOffPresence(t *testing.T) {
	// One mandatory interval fills the window; the optional one is
	// switched off by propagation instead of being branched on.
	m := NewModel()
	tr := m.NewConstant(1)
	opt := m.NewBoolVar("opt")
	s0 := m.NewIntVar(0, 4, "s0")
	s1 := m.NewIntVar(0, 4, "s1")
	m.AddNoOverlap([]Interval{
		m.NewOptionalInterval(s0, NewLinExpr().AddConst(6), tr),
		m.NewOptionalInterval(s1, NewLinExpr().AddConst(6), opt),
	})
	m.AddDecisionStrategy([]IntVar{opt})

	res, err := m.Solve(context.Background(), solveParams())
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.False(t, res.BoolValue(opt))
}

func buildKnapsack(m *Model) ([]IntVar, *LinExpr) {
	weights := []int64{5, 4, 3, 2, 1}
	picks := make([]IntVar, len(weights))
	load := NewLinExpr()
	value := NewLinExpr()
	for i, w := range weights {
		picks[i] = m.NewBoolVar("pick")
		load.Add(w, picks[i])
		value.Add(-w, picks[i])
	}
	m.AddLessOrEqual(load, 7)
	m.AddDecisionStrategy(picks)
	return picks, value
}

func TestKnapsackOptimal(t *testing.T) {
	m := NewModel()
	_, value := buildKnapsack(m)
	m.Minimize(value)

	res, err := m.Solve(context.Background(), solveParams())
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.Equal(t, int64(-7), res.Objective)
}

func TestDeterministicRepeat(t *testing.T) {
	// The knapsack has several optima; two runs must agree on every value.
	run := func() (Result, []IntVar) {
		m := NewModel()
		picks, value := buildKnapsack(m)
		m.Minimize(value)
		res, err := m.Solve(context.Background(), solveParams())
		require.NoError(t, err)
		return res, picks
	}
	r1, p1 := run()
	r2, p2 := run()
	require.Equal(t, r1.Status, r2.Status)
	require.Equal(t, r1.Objective, r2.Objective)
	for i := range p1 {
		assert.Equal(t, r1.Value(p1[i]), r2.Value(p2[i]))
	}
}

func TestMaxNodesTruncation(t *testing.T) {
	m := NewModel()
	_, value := buildKnapsack(m)
	m.Minimize(value)

	res, err := m.Solve(context.Background(), Params{MaxNodes: 1, TimeLimit: 30 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, Unknown, res.Status)
}

func TestContextCancelled(t *testing.T) {
	m := NewModel()
	_, value := buildKnapsack(m)
	m.Minimize(value)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := m.Solve(ctx, solveParams())
	require.NoError(t, err)
	assert.Equal(t, Unknown, res.Status)
}

func TestInvalidModel(t *testing.T) {
	m := NewModel()
	m.NewIntVar(5, 2, "bad")
	_, err := m.Solve(context.Background(), solveParams())
	assert.Error(t, err)
}

func TestSimplexFailureIsIgnored(t *testing.T) {
	// A broken relaxation must not change the search outcome.
	orig := lpSimplex
	lpSimplex = func(c []float64, a mat.Matrix, b []float64, tol float64, initialBasic []int) (float64, []float64, error) {
		return 0, nil, lp.ErrUnbounded
	}
	defer func() { lpSimplex = orig }()

	m := NewModel()
	_, value := buildKnapsack(m)
	m.Minimize(value)

	res, err := m.Solve(context.Background(), solveParams())
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.Equal(t, int64(-7), res.Objective)
}
