package sfmcost

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/num/dual"

	"github.com/erh/sfmcost/autodiff"
	"github.com/erh/sfmcost/camera"
)

// reprojFunctor is the standard bundle adjustment residual for variable
// camera pose, point, and calibration. Parameter blocks:
// cam_from_world rotation (4), cam_from_world translation (3),
// point3D (3), camera intrinsics (model dependent).
type reprojFunctor struct {
	model     camera.Model
	observedX float64
	observedY float64
}

func (f *reprojFunctor) Eval(params [][]dual.Number, residuals []dual.Number) {
	camFromWorldRot := quatFromParams(params[0])
	camFromWorldTrans := vecFromParams(params[1])
	point := vecFromParams(params[2])

	pointInCam := addVec(quatRotate(camFromWorldRot, point), camFromWorldTrans)
	u, v := f.model.ImgFromCam(params[3], pointInCam[0], pointInCam[1], pointInCam[2])

	residuals[0] = dual.Sub(u, autodiff.Const(f.observedX))
	residuals[1] = dual.Sub(v, autodiff.Const(f.observedY))
}

// NewReprojCost returns the 2D reprojection residual with blocks
// {4, 3, 3, N}: observed minus projected image point under a variable
// cam_from_world pose.
func NewReprojCost(id camera.ModelID, observed r2.Point) (autodiff.CostFunction, error) {
	model, err := camera.FromID(id)
	if err != nil {
		return nil, err
	}
	f := &reprojFunctor{model: model, observedX: observed.X, observedY: observed.Y}
	return autodiff.NewCostFunction(f, 2, 4, 3, 3, model.NumParams()), nil
}

// reprojConstantPoseFunctor fixes cam_from_world at construction and
// delegates to the variable-pose formula. Blocks: point3D (3),
// intrinsics (N).
type reprojConstantPoseFunctor struct {
	camFromWorld rigid
	reproj       reprojFunctor
}

func (f *reprojConstantPoseFunctor) Eval(params [][]dual.Number, residuals []dual.Number) {
	rot := constQuat(f.camFromWorld.q)
	trans := constVec(f.camFromWorld.t)
	f.reproj.Eval([][]dual.Number{rot[:], trans[:], params[0], params[1]}, residuals)
}

// NewReprojCostConstantPose is NewReprojCost with the pose captured as a
// constant, leaving blocks {3, N}.
func NewReprojCostConstantPose(id camera.ModelID, camFromWorld spatialmath.Pose, observed r2.Point) (autodiff.CostFunction, error) {
	model, err := camera.FromID(id)
	if err != nil {
		return nil, err
	}
	f := &reprojConstantPoseFunctor{
		camFromWorld: rigidFromPose(camFromWorld),
		reproj:       reprojFunctor{model: model, observedX: observed.X, observedY: observed.Y},
	}
	return autodiff.NewCostFunction(f, 2, 3, model.NumParams()), nil
}

// reprojConstantPointFunctor fixes the 3D point at construction. Blocks:
// rotation (4), translation (3), intrinsics (N).
type reprojConstantPointFunctor struct {
	point  r3.Vector
	reproj reprojFunctor
}

func (f *reprojConstantPointFunctor) Eval(params [][]dual.Number, residuals []dual.Number) {
	point := constVec(f.point)
	f.reproj.Eval([][]dual.Number{params[0], params[1], point[:], params[2]}, residuals)
}

// NewReprojCostConstantPoint is NewReprojCost with the 3D point captured
// as a constant, leaving blocks {4, 3, N}.
func NewReprojCostConstantPoint(id camera.ModelID, observed r2.Point, point r3.Vector) (autodiff.CostFunction, error) {
	model, err := camera.FromID(id)
	if err != nil {
		return nil, err
	}
	f := &reprojConstantPointFunctor{
		point:  point,
		reproj: reprojFunctor{model: model, observedX: observed.X, observedY: observed.Y},
	}
	return autodiff.NewCostFunction(f, 2, 4, 3, model.NumParams()), nil
}

// rigReprojFunctor projects through a camera rig: the point goes into the
// rig frame first, then into the individual camera. Blocks:
// cam_from_rig rotation (4), cam_from_rig translation (3),
// rig_from_world rotation (4), rig_from_world translation (3),
// point3D (3), intrinsics (N).
type rigReprojFunctor struct {
	model     camera.Model
	observedX float64
	observedY float64
}

func (f *rigReprojFunctor) Eval(params [][]dual.Number, residuals []dual.Number) {
	camFromRigRot := quatFromParams(params[0])
	camFromRigTrans := vecFromParams(params[1])
	rigFromWorldRot := quatFromParams(params[2])
	rigFromWorldTrans := vecFromParams(params[3])
	point := vecFromParams(params[4])

	pointInRig := addVec(quatRotate(rigFromWorldRot, point), rigFromWorldTrans)
	pointInCam := addVec(quatRotate(camFromRigRot, pointInRig), camFromRigTrans)
	u, v := f.model.ImgFromCam(params[5], pointInCam[0], pointInCam[1], pointInCam[2])

	residuals[0] = dual.Sub(u, autodiff.Const(f.observedX))
	residuals[1] = dual.Sub(v, autodiff.Const(f.observedY))
}

// NewRigReprojCost returns the rig reprojection residual with both
// cam_from_rig and rig_from_world variable, blocks {4, 3, 4, 3, 3, N}.
func NewRigReprojCost(id camera.ModelID, observed r2.Point) (autodiff.CostFunction, error) {
	model, err := camera.FromID(id)
	if err != nil {
		return nil, err
	}
	f := &rigReprojFunctor{model: model, observedX: observed.X, observedY: observed.Y}
	return autodiff.NewCostFunction(f, 2, 4, 3, 4, 3, 3, model.NumParams()), nil
}

// rigReprojConstantRigFunctor fixes the rig extrinsic cam_from_rig at
// construction. Blocks: rig_from_world rotation (4), translation (3),
// point3D (3), intrinsics (N).
type rigReprojConstantRigFunctor struct {
	camFromRig rigid
	reproj     rigReprojFunctor
}

func (f *rigReprojConstantRigFunctor) Eval(params [][]dual.Number, residuals []dual.Number) {
	rot := constQuat(f.camFromRig.q)
	trans := constVec(f.camFromRig.t)
	f.reproj.Eval([][]dual.Number{rot[:], trans[:], params[0], params[1], params[2], params[3]}, residuals)
}

// NewRigReprojCostConstantRig is NewRigReprojCost with a constant rig
// extrinsic, leaving blocks {4, 3, 3, N}.
func NewRigReprojCostConstantRig(id camera.ModelID, camFromRig spatialmath.Pose, observed r2.Point) (autodiff.CostFunction, error) {
	model, err := camera.FromID(id)
	if err != nil {
		return nil, err
	}
	f := &rigReprojConstantRigFunctor{
		camFromRig: rigidFromPose(camFromRig),
		reproj:     rigReprojFunctor{model: model, observedX: observed.X, observedY: observed.Y},
	}
	return autodiff.NewCostFunction(f, 2, 4, 3, 3, model.NumParams()), nil
}
