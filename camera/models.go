package camera

import (
	"gonum.org/v1/gonum/num/dual"

	"github.com/erh/sfmcost/autodiff"
)

func normalize(x, y, z dual.Number) (dual.Number, dual.Number) {
	return autodiff.Div(x, z), autodiff.Div(y, z)
}

type simplePinholeModel struct{}

func (simplePinholeModel) ID() ModelID    { return SimplePinhole }
func (simplePinholeModel) Name() string   { return "simple_pinhole" }
func (simplePinholeModel) NumParams() int { return 3 }

func (simplePinholeModel) ImgFromCam(params []dual.Number, x, y, z dual.Number) (dual.Number, dual.Number) {
	f, cx, cy := params[0], params[1], params[2]
	u, v := normalize(x, y, z)
	return dual.Add(dual.Mul(f, u), cx), dual.Add(dual.Mul(f, v), cy)
}

type pinholeModel struct{}

func (pinholeModel) ID() ModelID    { return Pinhole }
func (pinholeModel) Name() string   { return "pinhole" }
func (pinholeModel) NumParams() int { return 4 }

func (pinholeModel) ImgFromCam(params []dual.Number, x, y, z dual.Number) (dual.Number, dual.Number) {
	fx, fy, cx, cy := params[0], params[1], params[2], params[3]
	u, v := normalize(x, y, z)
	return dual.Add(dual.Mul(fx, u), cx), dual.Add(dual.Mul(fy, v), cy)
}

type simpleRadialModel struct{}

func (simpleRadialModel) ID() ModelID    { return SimpleRadial }
func (simpleRadialModel) Name() string   { return "simple_radial" }
func (simpleRadialModel) NumParams() int { return 4 }

func (simpleRadialModel) ImgFromCam(params []dual.Number, x, y, z dual.Number) (dual.Number, dual.Number) {
	f, cx, cy, k := params[0], params[1], params[2], params[3]
	u, v := normalize(x, y, z)
	r2 := dual.Add(dual.Mul(u, u), dual.Mul(v, v))
	factor := dual.Add(autodiff.Const(1), dual.Mul(k, r2))
	u = dual.Mul(u, factor)
	v = dual.Mul(v, factor)
	return dual.Add(dual.Mul(f, u), cx), dual.Add(dual.Mul(f, v), cy)
}

type radialModel struct{}

func (radialModel) ID() ModelID    { return Radial }
func (radialModel) Name() string   { return "radial" }
func (radialModel) NumParams() int { return 5 }

func (radialModel) ImgFromCam(params []dual.Number, x, y, z dual.Number) (dual.Number, dual.Number) {
	f, cx, cy, k1, k2 := params[0], params[1], params[2], params[3], params[4]
	u, v := normalize(x, y, z)
	r2 := dual.Add(dual.Mul(u, u), dual.Mul(v, v))
	factor := dual.Add(autodiff.Const(1),
		dual.Add(dual.Mul(k1, r2), dual.Mul(k2, dual.Mul(r2, r2))))
	u = dual.Mul(u, factor)
	v = dual.Mul(v, factor)
	return dual.Add(dual.Mul(f, u), cx), dual.Add(dual.Mul(f, v), cy)
}

type openCVModel struct{}

func (openCVModel) ID() ModelID    { return OpenCV }
func (openCVModel) Name() string   { return "opencv" }
func (openCVModel) NumParams() int { return 8 }

// Radial plus tangential distortion, same formulation as OpenCV's
// projectPoints and the rimage/transform Brown-Conrady model.
func (openCVModel) ImgFromCam(params []dual.Number, x, y, z dual.Number) (dual.Number, dual.Number) {
	fx, fy, cx, cy := params[0], params[1], params[2], params[3]
	k1, k2, p1, p2 := params[4], params[5], params[6], params[7]

	u, v := normalize(x, y, z)
	u2 := dual.Mul(u, u)
	v2 := dual.Mul(v, v)
	uv := dual.Mul(u, v)
	r2 := dual.Add(u2, v2)

	radial := dual.Add(autodiff.Const(1),
		dual.Add(dual.Mul(k1, r2), dual.Mul(k2, dual.Mul(r2, r2))))
	du := dual.Add(dual.Scale(2, dual.Mul(p1, uv)),
		dual.Mul(p2, dual.Add(r2, dual.Scale(2, u2))))
	dv := dual.Add(dual.Scale(2, dual.Mul(p2, uv)),
		dual.Mul(p1, dual.Add(r2, dual.Scale(2, v2))))

	u = dual.Add(dual.Mul(u, radial), du)
	v = dual.Add(dual.Mul(v, radial), dv)
	return dual.Add(dual.Mul(fx, u), cx), dual.Add(dual.Mul(fy, v), cy)
}

type openCVFisheyeModel struct{}

func (openCVFisheyeModel) ID() ModelID    { return OpenCVFisheye }
func (openCVFisheyeModel) Name() string   { return "opencv_fisheye" }
func (openCVFisheyeModel) NumParams() int { return 8 }

func (openCVFisheyeModel) ImgFromCam(params []dual.Number, x, y, z dual.Number) (dual.Number, dual.Number) {
	fx, fy, cx, cy := params[0], params[1], params[2], params[3]
	k1, k2, k3, k4 := params[4], params[5], params[6], params[7]

	u, v := normalize(x, y, z)
	r := autodiff.Hypot(u, v)

	// At the optical axis the distortion factor tends to 1.
	if r.Real > 1e-8 {
		theta := dual.Atan(r)
		theta2 := dual.Mul(theta, theta)
		theta4 := dual.Mul(theta2, theta2)
		theta6 := dual.Mul(theta4, theta2)
		theta8 := dual.Mul(theta4, theta4)
		thetaD := dual.Mul(theta, dual.Add(autodiff.Const(1),
			dual.Add(dual.Add(dual.Mul(k1, theta2), dual.Mul(k2, theta4)),
				dual.Add(dual.Mul(k3, theta6), dual.Mul(k4, theta8)))))
		scale := autodiff.Div(thetaD, r)
		u = dual.Mul(u, scale)
		v = dual.Mul(v, scale)
	}
	return dual.Add(dual.Mul(fx, u), cx), dual.Add(dual.Mul(fy, v), cy)
}
