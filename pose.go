// Package sfmcost provides the differentiable cost functions used inside a
// nonlinear least-squares bundle adjustment: reprojection errors, pose and
// position priors, relative-pose priors, point alignment, and Sampson
// epipolar error. Every functor is written once over dual numbers, so the
// solver gets residuals and Jacobians from the same formula.
package sfmcost

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/dual"
	"gonum.org/v1/gonum/num/quat"

	"github.com/erh/sfmcost/autodiff"
)

// rigid is a rotation and translation captured by value from a
// spatialmath.Pose. The naming convention throughout is "a_from_b": the
// transform maps a point expressed in frame b into frame a, and
// composition reads (a_from_b) * (b_from_c) = (a_from_c). Rotations are
// assumed to be unit quaternions; nothing here renormalizes.
type rigid struct {
	q quat.Number
	t r3.Vector
}

func rigidFromPose(p spatialmath.Pose) rigid {
	return rigid{q: p.Orientation().Quaternion(), t: p.Point()}
}

// dualVec and dualQuat are fixed-size dual-number vectors. Quaternion
// layout is (w, x, y, z), matching quat.Number, and is also the memory
// layout of the rotation parameter blocks handed to the solver.
type (
	dualVec  [3]dual.Number
	dualQuat [4]dual.Number
	dualMat  [3][3]dual.Number
)

func constVec(v r3.Vector) dualVec {
	return dualVec{autodiff.Const(v.X), autodiff.Const(v.Y), autodiff.Const(v.Z)}
}

func constQuat(q quat.Number) dualQuat {
	return dualQuat{
		autodiff.Const(q.Real),
		autodiff.Const(q.Imag),
		autodiff.Const(q.Jmag),
		autodiff.Const(q.Kmag),
	}
}

func vecFromParams(p []dual.Number) dualVec {
	return dualVec{p[0], p[1], p[2]}
}

func quatFromParams(p []dual.Number) dualQuat {
	return dualQuat{p[0], p[1], p[2], p[3]}
}

func addVec(a, b dualVec) dualVec {
	return dualVec{dual.Add(a[0], b[0]), dual.Add(a[1], b[1]), dual.Add(a[2], b[2])}
}

func subVec(a, b dualVec) dualVec {
	return dualVec{dual.Sub(a[0], b[0]), dual.Sub(a[1], b[1]), dual.Sub(a[2], b[2])}
}

func scaleVec(v dualVec, s dual.Number) dualVec {
	return dualVec{dual.Mul(v[0], s), dual.Mul(v[1], s), dual.Mul(v[2], s)}
}

func dotVec(a, b dualVec) dual.Number {
	return dual.Add(dual.Add(dual.Mul(a[0], b[0]), dual.Mul(a[1], b[1])), dual.Mul(a[2], b[2]))
}

func crossVec(a, b dualVec) dualVec {
	return dualVec{
		dual.Sub(dual.Mul(a[1], b[2]), dual.Mul(a[2], b[1])),
		dual.Sub(dual.Mul(a[2], b[0]), dual.Mul(a[0], b[2])),
		dual.Sub(dual.Mul(a[0], b[1]), dual.Mul(a[1], b[0])),
	}
}

func quatMul(a, b dualQuat) dualQuat {
	return dualQuat{
		dual.Sub(dual.Sub(dual.Sub(dual.Mul(a[0], b[0]), dual.Mul(a[1], b[1])), dual.Mul(a[2], b[2])), dual.Mul(a[3], b[3])),
		dual.Sub(dual.Add(dual.Add(dual.Mul(a[0], b[1]), dual.Mul(a[1], b[0])), dual.Mul(a[2], b[3])), dual.Mul(a[3], b[2])),
		dual.Add(dual.Add(dual.Sub(dual.Mul(a[0], b[2]), dual.Mul(a[1], b[3])), dual.Mul(a[2], b[0])), dual.Mul(a[3], b[1])),
		dual.Add(dual.Sub(dual.Add(dual.Mul(a[0], b[3]), dual.Mul(a[1], b[2])), dual.Mul(a[2], b[1])), dual.Mul(a[3], b[0])),
	}
}

// quatConj is the inverse for unit quaternions.
func quatConj(q dualQuat) dualQuat {
	return dualQuat{q[0], dual.Scale(-1, q[1]), dual.Scale(-1, q[2]), dual.Scale(-1, q[3])}
}

// quatRotate rotates p by the unit quaternion q without building the
// rotation matrix: p + w*(2 qv x p) + qv x (2 qv x p).
func quatRotate(q dualQuat, p dualVec) dualVec {
	qv := dualVec{q[1], q[2], q[3]}
	uv := crossVec(qv, p)
	uv = dualVec{dual.Scale(2, uv[0]), dual.Scale(2, uv[1]), dual.Scale(2, uv[2])}
	return addVec(p, addVec(scaleVec(uv, q[0]), crossVec(qv, uv)))
}

// quatToAngleAxis is the SO(3) log map: the result points along the
// rotation axis with magnitude equal to the rotation angle. Using the
// tangent space keeps the residual locally linear near zero error and
// avoids the quaternion double cover.
func quatToAngleAxis(q dualQuat) dualVec {
	sinSq := dual.Add(dual.Add(dual.Mul(q[1], q[1]), dual.Mul(q[2], q[2])), dual.Mul(q[3], q[3]))

	// For near-identity rotations theta/sin(theta) ~ 1, so the map
	// degenerates to twice the vector part.
	if sinSq.Real <= 0 {
		return dualVec{dual.Scale(2, q[1]), dual.Scale(2, q[2]), dual.Scale(2, q[3])}
	}

	sinTheta := dual.Sqrt(sinSq)
	cosTheta := q[0]
	var twoTheta dual.Number
	if cosTheta.Real < 0 {
		twoTheta = dual.Scale(2, autodiff.Atan2(dual.Scale(-1, sinTheta), dual.Scale(-1, cosTheta)))
	} else {
		twoTheta = dual.Scale(2, autodiff.Atan2(sinTheta, cosTheta))
	}
	k := autodiff.Div(twoTheta, sinTheta)
	return dualVec{dual.Mul(q[1], k), dual.Mul(q[2], k), dual.Mul(q[3], k)}
}

// quatToRotMat expands a unit quaternion into its rotation matrix.
func quatToRotMat(q dualQuat) dualMat {
	var m dualMat
	m[0] = quatRotate(q, dualVec{autodiff.Const(1), autodiff.Const(0), autodiff.Const(0)})
	m[1] = quatRotate(q, dualVec{autodiff.Const(0), autodiff.Const(1), autodiff.Const(0)})
	m[2] = quatRotate(q, dualVec{autodiff.Const(0), autodiff.Const(0), autodiff.Const(1)})
	// quatRotate produced the columns; transpose into rows.
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			m[i][j], m[j][i] = m[j][i], m[i][j]
		}
	}
	return m
}

// skew builds the cross-product matrix [t]x so that skew(t)*v = t x v.
func skew(t dualVec) dualMat {
	zero := autodiff.Const(0)
	return dualMat{
		{zero, dual.Scale(-1, t[2]), t[1]},
		{t[2], zero, dual.Scale(-1, t[0])},
		{dual.Scale(-1, t[1]), t[0], zero},
	}
}

func matMul(a, b dualMat) dualMat {
	var out dualMat
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s := dual.Mul(a[i][0], b[0][j])
			s = dual.Add(s, dual.Mul(a[i][1], b[1][j]))
			s = dual.Add(s, dual.Mul(a[i][2], b[2][j]))
			out[i][j] = s
		}
	}
	return out
}

func matVec(m dualMat, v dualVec) dualVec {
	return dualVec{
		dotVec(dualVec{m[0][0], m[0][1], m[0][2]}, v),
		dotVec(dualVec{m[1][0], m[1][1], m[1][2]}, v),
		dotVec(dualVec{m[2][0], m[2][1], m[2][2]}, v),
	}
}

func matTVec(m dualMat, v dualVec) dualVec {
	return dualVec{
		dotVec(dualVec{m[0][0], m[1][0], m[2][0]}, v),
		dotVec(dualVec{m[0][1], m[1][1], m[2][1]}, v),
		dotVec(dualVec{m[0][2], m[1][2], m[2][2]}, v),
	}
}

// applySqrtInfo whitens residuals in place by the square-root information
// matrix, r <- S*r.
func applySqrtInfo(s *mat.Dense, residuals []dual.Number) {
	n := len(residuals)
	out := make([]dual.Number, n)
	for i := 0; i < n; i++ {
		var sum dual.Number
		for j := 0; j < n; j++ {
			sum = dual.Add(sum, dual.Scale(s.At(i, j), residuals[j]))
		}
		out[i] = sum
	}
	copy(residuals, out)
}

// SqrtInformation computes S = L^T where L*L^T is the Cholesky
// factorization of cov^-1, so that S^T*S = cov^-1. Residuals
// left-multiplied by S become unit-variance. A covariance that is not
// symmetric positive-definite is a caller bug and returns an error.
func SqrtInformation(cov mat.Symmetric) (*mat.Dense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, errors.New("covariance matrix is not positive definite")
	}

	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, errors.Wrap(err, "cannot invert covariance matrix")
	}

	var cholInv mat.Cholesky
	if ok := cholInv.Factorize(&inv); !ok {
		return nil, errors.New("inverse covariance matrix is not positive definite")
	}

	var lower mat.TriDense
	cholInv.LTo(&lower)

	n := cov.SymmetricDim()
	s := mat.NewDense(n, n, nil)
	s.Copy(lower.T())
	return s, nil
}
