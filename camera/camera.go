// Package camera defines the closed set of camera projection models the
// cost functions can be specialized on. Each model maps a 3D point in
// camera space to 2D image coordinates and declares how many intrinsic
// parameters it consumes. Projection is written over dual numbers so the
// same formula feeds both residual and Jacobian evaluation.
package camera

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/dual"
)

// ModelID identifies one camera model in the closed enumeration.
type ModelID int

const (
	// SimplePinhole has parameters f, cx, cy.
	SimplePinhole ModelID = iota
	// Pinhole has parameters fx, fy, cx, cy.
	Pinhole
	// SimpleRadial has parameters f, cx, cy, k.
	SimpleRadial
	// Radial has parameters f, cx, cy, k1, k2.
	Radial
	// OpenCV has parameters fx, fy, cx, cy, k1, k2, p1, p2.
	OpenCV
	// OpenCVFisheye has parameters fx, fy, cx, cy, k1, k2, k3, k4.
	OpenCVFisheye
)

// Model is one parametric projection from camera space to image space.
// ImgFromCam assumes the point is in front of the camera; dividing by z is
// the caller's contract, not checked here.
type Model interface {
	ID() ModelID
	Name() string
	NumParams() int
	ImgFromCam(params []dual.Number, x, y, z dual.Number) (u, v dual.Number)
}

// FromID returns the model for an identifier. This switch is the dispatch
// table: adding a model means adding an enumeration value and a case here.
func FromID(id ModelID) (Model, error) {
	switch id {
	case SimplePinhole:
		return simplePinholeModel{}, nil
	case Pinhole:
		return pinholeModel{}, nil
	case SimpleRadial:
		return simpleRadialModel{}, nil
	case Radial:
		return radialModel{}, nil
	case OpenCV:
		return openCVModel{}, nil
	case OpenCVFisheye:
		return openCVFisheyeModel{}, nil
	}
	return nil, errors.Errorf("unknown camera model id %d", id)
}

// FromName returns the model with the given name, e.g. "simple_radial".
func FromName(name string) (Model, error) {
	for _, id := range ModelIDs() {
		m, err := FromID(id)
		if err != nil {
			return nil, err
		}
		if m.Name() == name {
			return m, nil
		}
	}
	return nil, errors.Errorf("unknown camera model name [%s]", name)
}

// ModelIDs returns every identifier in the enumeration.
func ModelIDs() []ModelID {
	return []ModelID{SimplePinhole, Pinhole, SimpleRadial, Radial, OpenCV, OpenCVFisheye}
}

func (id ModelID) String() string {
	m, err := FromID(id)
	if err != nil {
		return "unknown"
	}
	return m.Name()
}
