package autodiff

import (
	"math"

	"gonum.org/v1/gonum/num/dual"
)

// Const lifts a plain value into a dual number with no infinitesimal part.
func Const(v float64) dual.Number {
	return dual.Number{Real: v}
}

// Div returns x / y.
func Div(x, y dual.Number) dual.Number {
	return dual.Number{
		Real: x.Real / y.Real,
		Emag: (x.Emag*y.Real - x.Real*y.Emag) / (y.Real * y.Real),
	}
}

// Atan2 returns the dual arc tangent of y/x, using the signs of the real
// parts to determine the quadrant.
func Atan2(y, x dual.Number) dual.Number {
	d := x.Real*x.Real + y.Real*y.Real
	return dual.Number{
		Real: math.Atan2(y.Real, x.Real),
		Emag: (x.Real*y.Emag - y.Real*x.Emag) / d,
	}
}

// Hypot returns sqrt(x*x + y*y) without the branch cuts of calling Sqrt on
// an exactly-zero argument.
func Hypot(x, y dual.Number) dual.Number {
	r := math.Hypot(x.Real, y.Real)
	if r == 0 {
		return dual.Number{}
	}
	return dual.Number{
		Real: r,
		Emag: (x.Real*x.Emag + y.Real*y.Emag) / r,
	}
}
