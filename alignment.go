package sfmcost

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/dual"

	"github.com/erh/sfmcost/autodiff"
)

// pointAlignmentFunctor aligns a 3D point in frame a with a reference
// point in frame b under a similarity transform. Blocks: point_in_a (3),
// b_from_a rotation (4), b_from_a translation (3), b_from_a scale (1).
type pointAlignmentFunctor struct {
	pointInBPrior r3.Vector
	sqrtInfo      *mat.Dense
}

func (f *pointAlignmentFunctor) Eval(params [][]dual.Number, residuals []dual.Number) {
	pointInA := vecFromParams(params[0])
	bFromARot := quatFromParams(params[1])
	bFromATrans := vecFromParams(params[2])
	scale := params[3][0]

	pointInB := addVec(quatRotate(bFromARot, scaleVec(pointInA, scale)), bFromATrans)
	res := subVec(pointInB, constVec(f.pointInBPrior))

	copy(residuals, res[:])
	applySqrtInfo(f.sqrtInfo, residuals)
}

// NewPointAlignmentCost returns the whitened residual between a point
// mapped through a rotation+translation+scale transform and a reference
// point with 3x3 covariance. Blocks: {3, 4, 3, 1}.
func NewPointAlignmentCost(pointInBPrior r3.Vector, cov mat.Symmetric) (autodiff.CostFunction, error) {
	if cov.SymmetricDim() != 3 {
		return nil, errors.Errorf("point covariance must be 3x3, got %dx%d", cov.SymmetricDim(), cov.SymmetricDim())
	}
	sqrtInfo, err := SqrtInformation(cov)
	if err != nil {
		return nil, err
	}
	f := &pointAlignmentFunctor{pointInBPrior: pointInBPrior, sqrtInfo: sqrtInfo}
	return autodiff.NewCostFunction(f, 3, 3, 4, 3, 1), nil
}
