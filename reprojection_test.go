package sfmcost

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/dual"

	"github.com/erh/sfmcost/autodiff"
	"github.com/erh/sfmcost/camera"
)

var testIntrinsics = map[camera.ModelID][]float64{
	camera.SimplePinhole: {120, 320, 240},
	camera.Pinhole:       {120, 130, 320, 240},
	camera.SimpleRadial:  {120, 320, 240, 0.05},
	camera.Radial:        {120, 320, 240, 0.05, -0.01},
	camera.OpenCV:        {120, 130, 320, 240, 0.05, -0.01, 0.001, 0.002},
	camera.OpenCVFisheye: {120, 130, 320, 240, 0.05, -0.01, 0.001, 0.002},
}

func constDuals(vals []float64) []dual.Number {
	out := make([]dual.Number, len(vals))
	for i, v := range vals {
		out[i] = autodiff.Const(v)
	}
	return out
}

// projectPoint computes where a world point lands in the image, using
// spatialmath for the transform so the functor's own pose math is checked
// against it.
func projectPoint(m camera.Model, intrinsics []float64, camFromWorld spatialmath.Pose, point r3.Vector) r2.Point {
	pc := transformPoint(camFromWorld, point)
	u, v := m.ImgFromCam(constDuals(intrinsics), autodiff.Const(pc.X), autodiff.Const(pc.Y), autodiff.Const(pc.Z))
	return r2.Point{X: u.Real, Y: v.Real}
}

func evalCost(cf autodiff.CostFunction, blocks ...[]float64) []float64 {
	residuals := make([]float64, cf.NumResiduals())
	cf.Evaluate(blocks, residuals, nil)
	return residuals
}

func testScene() (spatialmath.Pose, r3.Vector) {
	camFromWorld := spatialmath.NewPose(
		r3.Vector{X: 0.2, Y: -0.1, Z: 0.4},
		&spatialmath.R4AA{Theta: 0.5, RZ: 1},
	)
	point := r3.Vector{X: 0.3, Y: 0.2, Z: 3}
	return camFromWorld, point
}

func TestReprojZeroResidualEveryModel(t *testing.T) {
	camFromWorld, point := testScene()
	rot, trans := poseParams(camFromWorld)
	pointBlock := []float64{point.X, point.Y, point.Z}

	for _, id := range camera.ModelIDs() {
		model, err := camera.FromID(id)
		test.That(t, err, test.ShouldBeNil)

		intrinsics := testIntrinsics[id]
		observed := projectPoint(model, intrinsics, camFromWorld, point)

		// Variable pose.
		cf, err := NewReprojCost(id, observed)
		test.That(t, err, test.ShouldBeNil)
		res := evalCost(cf, rot, trans, pointBlock, intrinsics)
		test.That(t, res[0], test.ShouldAlmostEqual, 0, 1e-9)
		test.That(t, res[1], test.ShouldAlmostEqual, 0, 1e-9)

		// Constant pose.
		cf, err = NewReprojCostConstantPose(id, camFromWorld, observed)
		test.That(t, err, test.ShouldBeNil)
		res = evalCost(cf, pointBlock, intrinsics)
		test.That(t, res[0], test.ShouldAlmostEqual, 0, 1e-9)
		test.That(t, res[1], test.ShouldAlmostEqual, 0, 1e-9)

		// Constant point.
		cf, err = NewReprojCostConstantPoint(id, observed, point)
		test.That(t, err, test.ShouldBeNil)
		res = evalCost(cf, rot, trans, intrinsics)
		test.That(t, res[0], test.ShouldAlmostEqual, 0, 1e-9)
		test.That(t, res[1], test.ShouldAlmostEqual, 0, 1e-9)
	}
}

func TestRigReprojZeroResidual(t *testing.T) {
	camFromWorld, point := testScene()
	rigFromWorld := spatialmath.NewPose(
		r3.Vector{X: -0.1, Y: 0.25, Z: 0.1},
		&spatialmath.R4AA{Theta: 0.4, RX: 1},
	)
	camFromRig := spatialmath.Compose(camFromWorld, spatialmath.PoseInverse(rigFromWorld))

	rigRot, rigTrans := poseParams(rigFromWorld)
	camRot, camTrans := poseParams(camFromRig)
	pointBlock := []float64{point.X, point.Y, point.Z}

	for _, id := range camera.ModelIDs() {
		model, err := camera.FromID(id)
		test.That(t, err, test.ShouldBeNil)

		intrinsics := testIntrinsics[id]
		observed := projectPoint(model, intrinsics, camFromWorld, point)

		cf, err := NewRigReprojCost(id, observed)
		test.That(t, err, test.ShouldBeNil)
		res := evalCost(cf, camRot, camTrans, rigRot, rigTrans, pointBlock, intrinsics)
		test.That(t, res[0], test.ShouldAlmostEqual, 0, 1e-8)
		test.That(t, res[1], test.ShouldAlmostEqual, 0, 1e-8)

		cf, err = NewRigReprojCostConstantRig(id, camFromRig, observed)
		test.That(t, err, test.ShouldBeNil)
		res = evalCost(cf, rigRot, rigTrans, pointBlock, intrinsics)
		test.That(t, res[0], test.ShouldAlmostEqual, 0, 1e-8)
		test.That(t, res[1], test.ShouldAlmostEqual, 0, 1e-8)
	}
}

func TestReprojBlockShapes(t *testing.T) {
	observed := r2.Point{X: 10, Y: 20}

	for _, id := range camera.ModelIDs() {
		model, err := camera.FromID(id)
		test.That(t, err, test.ShouldBeNil)
		n := model.NumParams()

		cf, err := NewReprojCost(id, observed)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cf.NumResiduals(), test.ShouldEqual, 2)
		test.That(t, cf.ParameterBlockSizes(), test.ShouldResemble, []int{4, 3, 3, n})

		cf, err = NewReprojCostConstantPose(id, spatialmath.NewZeroPose(), observed)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cf.ParameterBlockSizes(), test.ShouldResemble, []int{3, n})

		cf, err = NewReprojCostConstantPoint(id, observed, r3.Vector{Z: 1})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cf.ParameterBlockSizes(), test.ShouldResemble, []int{4, 3, n})

		cf, err = NewRigReprojCost(id, observed)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cf.ParameterBlockSizes(), test.ShouldResemble, []int{4, 3, 4, 3, 3, n})

		cf, err = NewRigReprojCostConstantRig(id, spatialmath.NewZeroPose(), observed)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cf.ParameterBlockSizes(), test.ShouldResemble, []int{4, 3, 3, n})
	}

	_, err := NewReprojCost(camera.ModelID(999), observed)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReprojIdentityScenario(t *testing.T) {
	// Identity pose and identity-projection intrinsics: the point
	// (100, 50, 1) lands exactly on the observation (100, 50).
	cf, err := NewReprojCost(camera.SimplePinhole, r2.Point{X: 100, Y: 50})
	test.That(t, err, test.ShouldBeNil)

	res := evalCost(cf,
		[]float64{1, 0, 0, 0},
		[]float64{0, 0, 0},
		[]float64{100, 50, 1},
		[]float64{1, 0, 0},
	)
	test.That(t, res[0], test.ShouldEqual, 0)
	test.That(t, res[1], test.ShouldEqual, 0)
}

func TestReprojJacobian(t *testing.T) {
	camFromWorld, point := testScene()
	rot, trans := poseParams(camFromWorld)

	cf, err := NewReprojCost(camera.Pinhole, r2.Point{X: 300, Y: 200})
	test.That(t, err, test.ShouldBeNil)

	params := [][]float64{rot, trans, {point.X, point.Y, point.Z}, testIntrinsics[camera.Pinhole]}
	checkAgainstFiniteDifferences(t, cf, params)
}
