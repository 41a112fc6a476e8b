// Package autodiff turns functions written over dual numbers into cost
// functions a nonlinear least-squares solver can evaluate, with Jacobians
// obtained by forward-mode automatic differentiation.
package autodiff

import (
	"gonum.org/v1/gonum/num/dual"
)

// CostFunction is the contract a solver evaluates during optimization.
// Evaluate reads one slice per parameter block and writes numResiduals
// values into residuals. When jacobians is non-nil, jacobians[i] receives
// the row-major numResiduals x blockSize derivative of the residuals with
// respect to block i; a nil jacobians[i] skips that block. Evaluation is
// total: it never fails and never mutates the parameters.
type CostFunction interface {
	NumResiduals() int
	ParameterBlockSizes() []int
	Evaluate(parameters [][]float64, residuals []float64, jacobians [][]float64)
}

// Functor is a residual formula written once over dual.Number, so the same
// code path serves plain evaluation (zero infinitesimal parts) and
// derivative propagation (one seeded parameter per pass).
type Functor interface {
	Eval(parameters [][]dual.Number, residuals []dual.Number)
}

type costFunction struct {
	functor      Functor
	numResiduals int
	blockSizes   []int
}

// NewCostFunction wraps a Functor into a CostFunction with the given
// residual dimension and parameter block sizes.
func NewCostFunction(f Functor, numResiduals int, blockSizes ...int) CostFunction {
	return &costFunction{
		functor:      f,
		numResiduals: numResiduals,
		blockSizes:   blockSizes,
	}
}

func (c *costFunction) NumResiduals() int {
	return c.numResiduals
}

func (c *costFunction) ParameterBlockSizes() []int {
	sizes := make([]int, len(c.blockSizes))
	copy(sizes, c.blockSizes)
	return sizes
}

func (c *costFunction) Evaluate(parameters [][]float64, residuals []float64, jacobians [][]float64) {
	params := make([][]dual.Number, len(c.blockSizes))
	for i, size := range c.blockSizes {
		params[i] = make([]dual.Number, size)
		for j := 0; j < size; j++ {
			params[i][j] = dual.Number{Real: parameters[i][j]}
		}
	}

	out := make([]dual.Number, c.numResiduals)
	c.functor.Eval(params, out)
	for i := range out {
		residuals[i] = out[i].Real
	}

	if jacobians == nil {
		return
	}

	// One forward pass per parameter scalar, seeding its infinitesimal
	// part, yields the corresponding Jacobian column.
	for bi, size := range c.blockSizes {
		if jacobians[bi] == nil {
			continue
		}
		for j := 0; j < size; j++ {
			params[bi][j].Emag = 1
			for i := range out {
				out[i] = dual.Number{}
			}
			c.functor.Eval(params, out)
			params[bi][j].Emag = 0
			for i := range out {
				jacobians[bi][i*size+j] = out[i].Emag
			}
		}
	}
}
