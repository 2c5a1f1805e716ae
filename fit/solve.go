package fit

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// solve minimises sum(w[i] * ((y[i]-model(x[i]))/yerr[i])^2).
func (p problem) solve(w []float64) ([]float64, error) {
	np := p.model.NumParams()
	if np == 0 {
		return nil, fmt.Errorf("%w: model has no parameters", ErrTooFewPoints)
	}

	if count(w) < np {
		return nil, fmt.Errorf("%w: %d usable, %d parameters", ErrTooFewPoints, count(w), np)
	}

	if lm, ok := p.model.(LinearModel); ok {
		return p.solveLinear(lm, w)
	}

	return p.solveNonlinear(w)
}

// solveLinear performs a weighted QR least-squares solve of the design matrix.
func (p problem) solveLinear(lm LinearModel, w []float64) ([]float64, error) {
	np := lm.NumParams()
	rows := count(w)

	a := mat.NewDense(rows, np, nil)
	b := mat.NewVecDense(rows, nil)
	basis := make([]float64, np)

	r := 0

	for i, xi := range p.x {
		if w[i] <= 0 {
			continue
		}

		sw := math.Sqrt(w[i]) / p.yerr[i]
		lm.Basis(basis, xi)

		for k, v := range basis {
			a.Set(r, k, v*sw)
		}

		b.SetVec(r, p.y[i]*sw)
		r++
	}

	var qr mat.QR
	qr.Factorize(a)

	if rankDeficient(&qr, a, np) {
		return nil, ErrSingular
	}

	var sol mat.VecDense
	if err := qr.SolveVecTo(&sol, false, b); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: condition number %.3g", ErrSingular, float64(cond))
		}

		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	out := make([]float64, np)
	for k := range out {
		out[k] = sol.AtVec(k)
		if math.IsNaN(out[k]) || math.IsInf(out[k], 0) {
			return nil, ErrSingular
		}
	}

	return out, nil
}

// rankTol is the smallest accepted ratio between a diagonal entry of R and
// the norm of the corresponding design column.
const rankTol = 1e-12

func rankDeficient(qr *mat.QR, a *mat.Dense, np int) bool {
	var r mat.Dense
	qr.RTo(&r)

	for k := range np {
		norm := mat.Norm(a.ColView(k), 2)
		if norm == 0 || math.Abs(r.At(k, k)) <= rankTol*norm {
			return true
		}
	}

	return false
}

// solveNonlinear minimises the weighted chi-square with Nelder-Mead.
func (p problem) solveNonlinear(w []float64) ([]float64, error) {
	chisq := func(params []float64) float64 {
		sum := 0.0

		for i, xi := range p.x {
			if w[i] <= 0 {
				continue
			}

			d := (p.y[i] - p.model.Eval(params, xi)) / p.yerr[i]
			sum += w[i] * d * d
		}

		return sum
	}

	settings := &optimize.Settings{
		MajorIterations: 20000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-14,
			Relative:   1e-14,
			Iterations: 200,
		},
	}

	res, err := optimize.Minimize(optimize.Problem{Func: chisq}, slices.Clone(p.init), settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConverged, err)
	}

	for _, v := range res.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrNotConverged
		}
	}

	return res.X, nil
}
