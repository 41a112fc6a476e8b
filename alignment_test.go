package sfmcost

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/test"
)

func TestPointAlignmentZeroResidual(t *testing.T) {
	pointInA := r3.Vector{X: 0.5, Y: -1, Z: 2}
	bFromA := spatialmath.NewPose(
		r3.Vector{X: 1, Y: 2, Z: -0.5},
		&spatialmath.R4AA{Theta: 0.7, RZ: 1},
	)
	scale := 1.4

	prior := transformPoint(bFromA, pointInA.Mul(scale))

	cf, err := NewPointAlignmentCost(prior, scaledEye(3, 0.25))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cf.NumResiduals(), test.ShouldEqual, 3)
	test.That(t, cf.ParameterBlockSizes(), test.ShouldResemble, []int{3, 4, 3, 1})

	rot, trans := poseParams(bFromA)
	res := evalCost(cf,
		[]float64{pointInA.X, pointInA.Y, pointInA.Z},
		rot, trans, []float64{scale},
	)
	for i := 0; i < 3; i++ {
		test.That(t, res[i], test.ShouldAlmostEqual, 0, 1e-9)
	}
}

func TestPointAlignmentWhitening(t *testing.T) {
	// Identity transform with unit scale: residual is the offset from the
	// prior, whitened by 1/3 for covariance 9*I.
	point := r3.Vector{X: 1, Y: 2, Z: 3}
	offset := r3.Vector{X: 0.3, Y: -0.6, Z: 0.9}
	prior := point.Sub(offset)

	cf, err := NewPointAlignmentCost(prior, scaledEye(3, 9))
	test.That(t, err, test.ShouldBeNil)

	res := evalCost(cf,
		[]float64{point.X, point.Y, point.Z},
		[]float64{1, 0, 0, 0},
		[]float64{0, 0, 0},
		[]float64{1},
	)
	test.That(t, res[0], test.ShouldAlmostEqual, offset.X/3)
	test.That(t, res[1], test.ShouldAlmostEqual, offset.Y/3)
	test.That(t, res[2], test.ShouldAlmostEqual, offset.Z/3)
}

func TestPointAlignmentJacobian(t *testing.T) {
	cf, err := NewPointAlignmentCost(r3.Vector{X: 2, Y: 1, Z: 0.5}, scaledEye(3, 0.25))
	test.That(t, err, test.ShouldBeNil)

	bFromA := spatialmath.NewPose(
		r3.Vector{X: 0.4, Y: -0.1, Z: 0.8},
		&spatialmath.R4AA{Theta: 0.3, RX: 1},
	)
	rot, trans := poseParams(bFromA)
	checkAgainstFiniteDifferences(t, cf, [][]float64{
		{0.5, -1, 2}, rot, trans, {1.2},
	})
}

func TestPointAlignmentRejectsBadCovariance(t *testing.T) {
	_, err := NewPointAlignmentCost(r3.Vector{}, scaledEye(6, 1))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewPointAlignmentCost(r3.Vector{}, scaledEye(3, -2))
	test.That(t, err, test.ShouldNotBeNil)
}
