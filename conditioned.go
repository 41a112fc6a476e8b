package sfmcost

import (
	"github.com/pkg/errors"

	"github.com/erh/sfmcost/autodiff"
)

// linearCost maps one scalar to a scaled scalar with a constant Jacobian.
// It is the building block for conditioning another cost function's
// residuals.
type linearCost struct {
	scale float64
}

// NewLinearCost returns a 1-residual cost function r = scale * p over a
// single size-1 parameter block.
func NewLinearCost(scale float64) autodiff.CostFunction {
	return &linearCost{scale: scale}
}

func (l *linearCost) NumResiduals() int          { return 1 }
func (l *linearCost) ParameterBlockSizes() []int { return []int{1} }

func (l *linearCost) Evaluate(parameters [][]float64, residuals []float64, jacobians [][]float64) {
	residuals[0] = parameters[0][0] * l.scale
	if jacobians != nil && jacobians[0] != nil {
		jacobians[0][0] = l.scale
	}
}

// conditionedCost feeds each of the inner cost function's residuals
// through its own 1-to-1 conditioner, rescaling Jacobian rows by the
// conditioner's derivative (chain rule). Parameter-block shape and
// residual dimension are the inner function's.
type conditionedCost struct {
	inner        autodiff.CostFunction
	conditioners []autodiff.CostFunction
}

// NewConditionedCost composes inner with one conditioner per residual.
// Every conditioner must take a single size-1 parameter block and produce
// a single residual.
func NewConditionedCost(inner autodiff.CostFunction, conditioners []autodiff.CostFunction) (autodiff.CostFunction, error) {
	if len(conditioners) != inner.NumResiduals() {
		return nil, errors.Errorf("need %d conditioners, got %d", inner.NumResiduals(), len(conditioners))
	}
	for i, c := range conditioners {
		if c.NumResiduals() != 1 {
			return nil, errors.Errorf("conditioner %d must have 1 residual, has %d", i, c.NumResiduals())
		}
		sizes := c.ParameterBlockSizes()
		if len(sizes) != 1 || sizes[0] != 1 {
			return nil, errors.Errorf("conditioner %d must take a single size-1 parameter block", i)
		}
	}
	return &conditionedCost{inner: inner, conditioners: conditioners}, nil
}

func (c *conditionedCost) NumResiduals() int          { return c.inner.NumResiduals() }
func (c *conditionedCost) ParameterBlockSizes() []int { return c.inner.ParameterBlockSizes() }

func (c *conditionedCost) Evaluate(parameters [][]float64, residuals []float64, jacobians [][]float64) {
	c.inner.Evaluate(parameters, residuals, jacobians)

	sizes := c.inner.ParameterBlockSizes()
	condResidual := make([]float64, 1)
	condParam := make([]float64, 1)

	for i, cond := range c.conditioners {
		condParam[0] = residuals[i]

		var condJac [][]float64
		if jacobians != nil {
			condJac = [][]float64{{0}}
		}
		cond.Evaluate([][]float64{condParam}, condResidual, condJac)
		residuals[i] = condResidual[0]

		if jacobians == nil {
			continue
		}
		d := condJac[0][0]
		for bi, size := range sizes {
			if jacobians[bi] == nil {
				continue
			}
			row := jacobians[bi][i*size : (i+1)*size]
			for k := range row {
				row[k] *= d
			}
		}
	}
}

// WrapIsotropicNoise rescales every residual of inner by 1/stddev,
// whitening under an isotropic covariance. The wrapped function keeps the
// inner parameter-block shape. A non-positive stddev is a caller bug.
func WrapIsotropicNoise(inner autodiff.CostFunction, stddev float64) (autodiff.CostFunction, error) {
	if stddev <= 0 {
		return nil, errors.Errorf("stddev must be positive, got %f", stddev)
	}
	scale := 1.0 / stddev
	conditioners := make([]autodiff.CostFunction, inner.NumResiduals())
	for i := range conditioners {
		conditioners[i] = NewLinearCost(scale)
	}
	return NewConditionedCost(inner, conditioners)
}
