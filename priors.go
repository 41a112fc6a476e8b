package sfmcost

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/dual"

	"github.com/erh/sfmcost/autodiff"
)

// absolutePosePriorFunctor is the 6-DoF error on an absolute camera pose,
// the log of the error pose with SE(3) split into SO(3) x R^3. The 6x6
// covariance is defined in the camera frame, rotation block first.
// Blocks: cam_from_world rotation (4), cam_from_world translation (3).
type absolutePosePriorFunctor struct {
	worldFromCamPrior rigid
	sqrtInfo          *mat.Dense
}

func (f *absolutePosePriorFunctor) Eval(params [][]dual.Number, residuals []dual.Number) {
	camFromWorldRot := quatFromParams(params[0])
	camFromWorldTrans := vecFromParams(params[1])

	paramFromPriorRot := quatMul(camFromWorldRot, constQuat(f.worldFromCamPrior.q))
	rotErr := quatToAngleAxis(paramFromPriorRot)

	transErr := addVec(camFromWorldTrans,
		quatRotate(camFromWorldRot, constVec(f.worldFromCamPrior.t)))

	copy(residuals[:3], rotErr[:])
	copy(residuals[3:], transErr[:])
	applySqrtInfo(f.sqrtInfo, residuals)
}

// NewAbsolutePosePrior returns the whitened 6-DoF residual between the
// current cam_from_world estimate and a prior mean with 6x6 covariance.
// Blocks: {4, 3}.
func NewAbsolutePosePrior(camFromWorldPrior spatialmath.Pose, cov mat.Symmetric) (autodiff.CostFunction, error) {
	if cov.SymmetricDim() != 6 {
		return nil, errors.Errorf("pose prior covariance must be 6x6, got %dx%d", cov.SymmetricDim(), cov.SymmetricDim())
	}
	sqrtInfo, err := SqrtInformation(cov)
	if err != nil {
		return nil, err
	}
	f := &absolutePosePriorFunctor{
		worldFromCamPrior: rigidFromPose(spatialmath.PoseInverse(camFromWorldPrior)),
		sqrtInfo:          sqrtInfo,
	}
	return autodiff.NewCostFunction(f, 6, 4, 3), nil
}

// positionPriorFunctor is the 3-DoF error on the camera position in the
// world frame. Blocks: cam_from_world rotation (4), translation (3).
type positionPriorFunctor struct {
	positionInWorldPrior r3.Vector
	sqrtInfo             *mat.Dense
}

func (f *positionPriorFunctor) Eval(params [][]dual.Number, residuals []dual.Number) {
	camFromWorldRot := quatFromParams(params[0])
	camFromWorldTrans := vecFromParams(params[1])

	// Camera position in world is -R^-1*t, so this is prior - position.
	res := addVec(constVec(f.positionInWorldPrior),
		quatRotate(quatConj(camFromWorldRot), camFromWorldTrans))

	copy(residuals, res[:])
	applySqrtInfo(f.sqrtInfo, residuals)
}

// NewPositionPrior returns the whitened 3-DoF residual between the current
// camera position and a prior position in world with 3x3 covariance.
// Blocks: {4, 3}.
func NewPositionPrior(positionInWorldPrior r3.Vector, cov mat.Symmetric) (autodiff.CostFunction, error) {
	if cov.SymmetricDim() != 3 {
		return nil, errors.Errorf("position prior covariance must be 3x3, got %dx%d", cov.SymmetricDim(), cov.SymmetricDim())
	}
	sqrtInfo, err := SqrtInformation(cov)
	if err != nil {
		return nil, err
	}
	f := &positionPriorFunctor{positionInWorldPrior: positionInWorldPrior, sqrtInfo: sqrtInfo}
	return autodiff.NewCostFunction(f, 3, 4, 3), nil
}

// relativePosePriorFunctor is the 6-DoF error between two absolute poses
// given a prior on their relative pose i_from_j. The covariance is defined
// in frame i, rotation block first.
//
//	i_T_w = dT_i * i_T_j * j_T_w, dT_i = exp(eta_i)
//	eta_i = log(i_T_w * j_T_w^-1 * j_T_i)
//
// Blocks: i_from_world rotation (4), translation (3),
// j_from_world rotation (4), translation (3).
type relativePosePriorFunctor struct {
	jFromIPrior rigid
	sqrtInfo    *mat.Dense
}

func (f *relativePosePriorFunctor) Eval(params [][]dual.Number, residuals []dual.Number) {
	iFromWorldRot := quatFromParams(params[0])
	iFromWorldTrans := vecFromParams(params[1])
	jFromWorldRot := quatFromParams(params[2])
	jFromWorldTrans := vecFromParams(params[3])

	iFromJRot := quatMul(iFromWorldRot, quatConj(jFromWorldRot))
	paramFromPriorRot := quatMul(iFromJRot, constQuat(f.jFromIPrior.q))
	rotErr := quatToAngleAxis(paramFromPriorRot)

	jFromITrans := subVec(constVec(f.jFromIPrior.t), jFromWorldTrans)
	transErr := addVec(iFromWorldTrans, quatRotate(iFromJRot, jFromITrans))

	copy(residuals[:3], rotErr[:])
	copy(residuals[3:], transErr[:])
	applySqrtInfo(f.sqrtInfo, residuals)
}

// NewRelativePosePrior returns the whitened 6-DoF residual between the
// relative transform of two current pose estimates and a prior mean
// i_from_j with 6x6 covariance. Blocks: {4, 3, 4, 3}.
func NewRelativePosePrior(iFromJPrior spatialmath.Pose, cov mat.Symmetric) (autodiff.CostFunction, error) {
	if cov.SymmetricDim() != 6 {
		return nil, errors.Errorf("relative pose prior covariance must be 6x6, got %dx%d", cov.SymmetricDim(), cov.SymmetricDim())
	}
	sqrtInfo, err := SqrtInformation(cov)
	if err != nil {
		return nil, err
	}
	f := &relativePosePriorFunctor{
		jFromIPrior: rigidFromPose(spatialmath.PoseInverse(iFromJPrior)),
		sqrtInfo:    sqrtInfo,
	}
	return autodiff.NewCostFunction(f, 6, 4, 3, 4, 3), nil
}
