package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/dual"

	"github.com/erh/sfmcost"
	"github.com/erh/sfmcost/autodiff"
	"github.com/erh/sfmcost/camera"
)

func main() {
	goutils.ContextualMain(mainWithArgs, logging.NewLogger("costcheck"))
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	flags := flag.NewFlagSet(args[0], flag.ExitOnError)
	cmd := flags.String("cmd", "", "command")
	modelName := flags.String("model", "", "camera model name, empty for all")
	stddev := flags.Float64("stddev", 1, "isotropic noise level for reprojection residuals")
	noise := flags.Float64("noise", 0.5, "pixel noise added to the synthetic observations")
	seed := flags.Int64("seed", 1, "")

	err := flags.Parse(args[1:])
	if err != nil {
		return err
	}

	if *cmd == "" {
		return fmt.Errorf("need a cmd")
	}

	if *cmd == "models" {
		for _, id := range camera.ModelIDs() {
			m, err := camera.FromID(id)
			if err != nil {
				return err
			}
			logger.Infof("%s: %d intrinsics", m.Name(), m.NumParams())
		}
		return nil
	}

	if *cmd == "reproj" {
		ids := camera.ModelIDs()
		if *modelName != "" {
			m, err := camera.FromName(*modelName)
			if err != nil {
				return err
			}
			ids = []camera.ModelID{m.ID()}
		}

		rnd := rand.New(rand.NewSource(*seed))
		for _, id := range ids {
			err := checkReproj(logger, id, *stddev, *noise, rnd)
			if err != nil {
				return err
			}
		}
		return nil
	}

	if *cmd == "sampson" {
		return checkSampson(logger)
	}

	return fmt.Errorf("invalid command [%s]", *cmd)
}

// checkReproj builds a one-camera scene, projects a point with noise, and
// evaluates the noise-wrapped reprojection cost and its Jacobians.
func checkReproj(logger logging.Logger, id camera.ModelID, stddev, noise float64, rnd *rand.Rand) error {
	model, err := camera.FromID(id)
	if err != nil {
		return err
	}

	intrinsics := sceneIntrinsics(model)
	rot := []float64{1, 0, 0, 0}
	trans := []float64{0.1, -0.05, 0.2}
	point := r3.Vector{X: 0.2, Y: -0.1, Z: 4}

	pc := r3.Vector{X: point.X + trans[0], Y: point.Y + trans[1], Z: point.Z + trans[2]}
	u, v := model.ImgFromCam(constDuals(intrinsics),
		autodiff.Const(pc.X), autodiff.Const(pc.Y), autodiff.Const(pc.Z))
	observed := r2.Point{
		X: u.Real + noise*rnd.NormFloat64(),
		Y: v.Real + noise*rnd.NormFloat64(),
	}

	inner, err := sfmcost.NewReprojCost(id, observed)
	if err != nil {
		return err
	}
	cf, err := sfmcost.WrapIsotropicNoise(inner, stddev)
	if err != nil {
		return err
	}

	params := [][]float64{rot, trans, {point.X, point.Y, point.Z}, intrinsics}
	residuals := make([]float64, cf.NumResiduals())
	jacobians := make([][]float64, len(cf.ParameterBlockSizes()))
	for i, size := range cf.ParameterBlockSizes() {
		jacobians[i] = make([]float64, cf.NumResiduals()*size)
	}
	cf.Evaluate(params, residuals, jacobians)

	logger.Infof("%s: residuals %v", model.Name(), residuals)
	for i, j := range jacobians {
		logger.Infof("  block %d jacobian norm %.6f", i, mat.Norm(mat.NewDense(cf.NumResiduals(), cf.ParameterBlockSizes()[i], j), 2))
	}
	return nil
}

func checkSampson(logger logging.Logger) error {
	rot := []float64{1, 0, 0, 0}
	trans := []float64{1, 0, 0}

	// A pair on the same epipolar line and a pair off it.
	exact := sfmcost.NewSampsonCost(r2.Point{X: 0.1, Y: 0.2}, r2.Point{X: 0.3, Y: 0.2})
	off := sfmcost.NewSampsonCost(r2.Point{X: 0.1, Y: 0.2}, r2.Point{X: 0.3, Y: 0.25})

	residuals := make([]float64, 1)
	exact.Evaluate([][]float64{rot, trans}, residuals, nil)
	logger.Infof("exact correspondence: %g", residuals[0])

	off.Evaluate([][]float64{rot, trans}, residuals, nil)
	logger.Infof("off epipolar line: %g", residuals[0])
	return nil
}

func sceneIntrinsics(m camera.Model) []float64 {
	out := make([]float64, m.NumParams())
	// Focal lengths and principal point, distortion left at zero.
	out[0] = 120
	switch m.ID() {
	case camera.SimplePinhole, camera.SimpleRadial, camera.Radial:
		out[1], out[2] = 320, 240
	default:
		out[1], out[2], out[3] = 130, 320, 240
	}
	return out
}

func constDuals(vals []float64) []dual.Number {
	out := make([]dual.Number, len(vals))
	for i, v := range vals {
		out[i] = autodiff.Const(v)
	}
	return out
}
