// Package qp implements a small dense active-set solver for convex
// quadratic programs, and the block-energy QPController built on top of it.
package qp

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// errInfeasibleStart is returned internally when the supplied starting
// point violates one of the problem's inequality constraints beyond
// tolerance; QPController maps this to ctrlerr.ErrSolverFailure.
var errInfeasibleStart = errors.New("qp: starting point is infeasible")

// errSingularKKT is returned internally when the active-set KKT system is
// singular; QPController maps this to ctrlerr.ErrSolverFailure.
var errSingularKKT = errors.New("qp: singular KKT system")

const (
	feasTol    = 1e-7
	stationary = 1e-9
	maxIters   = 100
)

// Problem is a convex QP in the form:
//
//	minimize   0.5 x'Px + q'x
//	subject to Gx <= h
//
// P must be symmetric positive semi-definite.
type Problem struct {
	P *mat.Dense
	Q *mat.VecDense
	G *mat.Dense
	H *mat.VecDense
}

// Solve runs the primal active-set method (Nocedal & Wright, Algorithm
// 16.3) starting from x0, which must itself be feasible. It returns the
// minimizer, or an error if x0 is infeasible, the KKT system is singular,
// or maxIters is exceeded without convergence.
func Solve(prob Problem, x0 *mat.VecDense) (*mat.VecDense, error) {
	n, _ := prob.P.Dims()
	m := 0
	if prob.G != nil {
		m, _ = prob.G.Dims()
	}

	x := mat.VecDenseCopyOf(x0)

	working := map[int]bool{}
	for i := 0; i < m; i++ {
		if constraintValue(prob, x, i) > feasTol {
			return nil, fmt.Errorf("constraint %d: %w", i, errInfeasibleStart)
		}
		if constraintValue(prob, x, i) > -feasTol {
			working[i] = true
		}
	}

	for iter := 0; iter < maxIters; iter++ {
		activeIdx := sortedKeys(working)

		d, lambda, err := solveEqualityQP(prob, x, activeIdx)
		if err != nil {
			return nil, err
		}

		if mat.Norm(d, 2) < stationary {
			minIdx, minLambda := -1, 0.0
			for i, idx := range activeIdx {
				if lambda[i] < minLambda {
					minLambda = lambda[i]
					minIdx = idx
				}
			}
			if minIdx == -1 {
				return x, nil
			}
			delete(working, minIdx)
			continue
		}

		alpha := 1.0
		blocking := -1
		for i := 0; i < m; i++ {
			if working[i] {
				continue
			}
			gi := rowVec(prob.G, i)
			denom := mat.Dot(gi, d)
			if denom <= stationary {
				continue
			}
			slack := prob.H.AtVec(i) - mat.Dot(gi, x)
			a := slack / denom
			if a < alpha {
				alpha = a
				blocking = i
			}
		}

		x.AddScaledVec(x, alpha, d)
		if blocking != -1 {
			working[blocking] = true
		}
	}

	return nil, fmt.Errorf("qp: no convergence after %d iterations", maxIters)
}

func constraintValue(prob Problem, x *mat.VecDense, i int) float64 {
	gi := rowVec(prob.G, i)
	return mat.Dot(gi, x) - prob.H.AtVec(i)
}

func rowVec(g *mat.Dense, i int) *mat.VecDense {
	_, n := g.Dims()
	v := mat.NewVecDense(n, nil)
	for j := 0; j < n; j++ {
		v.SetVec(j, g.At(i, j))
	}
	return v
}

// solveEqualityQP solves the equality-constrained subproblem for the
// search direction d at x, treating the rows of G indexed by active as
// equalities (a_i'd = 0), via the KKT system:
//
//	[P  A'] [d]      [-g]
//	[A  0 ] [lambda]  [0]
//
// where g = Px + q. It returns d and the Lagrange multipliers in the same
// order as active.
func solveEqualityQP(prob Problem, x *mat.VecDense, active []int) (*mat.VecDense, []float64, error) {
	n, _ := prob.P.Dims()
	k := len(active)

	g := mat.NewVecDense(n, nil)
	g.MulVec(prob.P, x)
	g.AddVec(g, prob.Q)

	size := n + k
	kkt := mat.NewDense(size, size, nil)
	kkt.Slice(0, n, 0, n).(*mat.Dense).Copy(prob.P)

	for i, idx := range active {
		ai := rowVec(prob.G, idx)
		for j := 0; j < n; j++ {
			kkt.Set(j, n+i, ai.AtVec(j))
			kkt.Set(n+i, j, ai.AtVec(j))
		}
	}

	rhs := mat.NewVecDense(size, nil)
	for j := 0; j < n; j++ {
		rhs.SetVec(j, -g.AtVec(j))
	}

	var sol mat.VecDense
	if err := sol.SolveVec(kkt, rhs); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errSingularKKT, err)
	}

	d := mat.NewVecDense(n, nil)
	for j := 0; j < n; j++ {
		d.SetVec(j, sol.AtVec(j))
	}

	lambda := make([]float64, k)
	for i := range active {
		lambda[i] = sol.AtVec(n + i)
	}

	return d, lambda, nil
}

func sortedKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
