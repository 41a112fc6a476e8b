package sfmcost

import (
	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/num/dual"

	"github.com/erh/sfmcost/autodiff"
)

// sampsonFunctor refines two-view geometry with the Sampson approximation
// of the epipolar error. The first camera sits at the origin with zero
// rotation; the second is parameterized by cam2_from_cam1 rotation (4) and
// translation (3). The translation encodes direction only and is
// over-parameterized as a 3-vector: the caller must hold its norm to one
// with a sphere manifold in the surrounding optimization. Both image
// points must be in normalized camera coordinates.
type sampsonFunctor struct {
	x1, y1 float64
	x2, y2 float64
}

func (f *sampsonFunctor) Eval(params [][]dual.Number, residuals []dual.Number) {
	rot := quatFromParams(params[0])
	trans := vecFromParams(params[1])

	// Essential matrix E = [t]x * R.
	e := matMul(skew(trans), quatToRotMat(rot))

	x1h := dualVec{autodiff.Const(f.x1), autodiff.Const(f.y1), autodiff.Const(1)}
	x2h := dualVec{autodiff.Const(f.x2), autodiff.Const(f.y2), autodiff.Const(1)}

	ex1 := matVec(e, x1h)
	etx2 := matTVec(e, x2h)
	x2tEx1 := dotVec(x2h, ex1)

	den := dual.Add(
		dual.Add(dual.Mul(ex1[0], ex1[0]), dual.Mul(ex1[1], ex1[1])),
		dual.Add(dual.Mul(etx2[0], etx2[0]), dual.Mul(etx2[1], etx2[1])))
	residuals[0] = autodiff.Div(dual.Mul(x2tEx1, x2tEx1), den)
}

// NewSampsonCost returns the single-scalar Sampson epipolar residual for a
// calibrated point pair. Blocks: {4, 3}.
func NewSampsonCost(x1, x2 r2.Point) autodiff.CostFunction {
	return autodiff.NewCostFunction(&sampsonFunctor{x1: x1.X, y1: x1.Y, x2: x2.X, y2: x2.Y}, 1, 4, 3)
}
