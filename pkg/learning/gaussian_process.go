package learning

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// errNotPositiveDefinite is returned when the kernel matrix cannot be factorised.
var errNotPositiveDefinite = errors.New("kernel matrix is not positive definite")

// GPConfig holds the Gaussian-process hyper-parameters.
type GPConfig struct {
	LengthScale    float64 `mapstructure:"length_scale"`
	SignalVariance float64 `mapstructure:"signal_variance"`
	NoiseVariance  float64 `mapstructure:"noise_variance"`
}

// DefaultGPConfig suits ratings in [0, 1] and label-count features.
func DefaultGPConfig() GPConfig {
	return GPConfig{
		LengthScale:    1.5,
		SignalVariance: 0.25,
		NoiseVariance:  0.01,
	}
}

// gaussianProcess is a GP regressor with an RBF kernel over feature vectors.
// It predicts residuals around a prior mean supplied by the caller.
type gaussianProcess struct {
	cfg GPConfig

	inputs [][]float64
	chol   *mat.Cholesky
	alpha  *mat.VecDense
}

func newGaussianProcess(cfg GPConfig) *gaussianProcess {
	def := DefaultGPConfig()
	if cfg.LengthScale <= 0 {
		cfg.LengthScale = def.LengthScale
	}
	if cfg.SignalVariance <= 0 {
		cfg.SignalVariance = def.SignalVariance
	}
	if cfg.NoiseVariance <= 0 {
		cfg.NoiseVariance = def.NoiseVariance
	}
	return &gaussianProcess{cfg: cfg}
}

func (gp *gaussianProcess) kernel(a, b []float64) float64 {
	d := 0.0
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return gp.cfg.SignalVariance * math.Exp(-d/(2*gp.cfg.LengthScale*gp.cfg.LengthScale))
}

// factorize computes the Cholesky factor of K + noise*I for inputs.
// It returns a nil factor for no inputs.
func (gp *gaussianProcess) factorize(inputs [][]float64) (*mat.Cholesky, error) {
	n := len(inputs)
	if n == 0 {
		return nil, nil
	}
	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := gp.kernel(inputs[i], inputs[j])
			if i == j {
				v += gp.cfg.NoiseVariance
			}
			k.SetSym(i, j, v)
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(k); !ok {
		return nil, errNotPositiveDefinite
	}
	return &chol, nil
}

// fit conditions the process on observed residuals.
func (gp *gaussianProcess) fit(inputs [][]float64, residuals []float64) error {
	if len(inputs) == 0 {
		gp.inputs, gp.chol, gp.alpha = nil, nil, nil
		return nil
	}
	chol, err := gp.factorize(inputs)
	if err != nil {
		return err
	}
	alpha := mat.NewVecDense(len(inputs), nil)
	if err := chol.SolveVecTo(alpha, mat.NewVecDense(len(residuals), append([]float64(nil), residuals...))); err != nil {
		return err
	}
	gp.inputs = inputs
	gp.chol = chol
	gp.alpha = alpha
	return nil
}

// predictResidual returns the posterior mean residual and variance at x.
func (gp *gaussianProcess) predictResidual(x []float64) (float64, float64) {
	prior := gp.kernel(x, x)
	if gp.chol == nil {
		return 0, prior
	}
	kStar := gp.kernelVector(gp.inputs, x)
	mean := mat.Dot(kStar, gp.alpha)
	return mean, gp.posteriorVariance(gp.chol, kStar, prior)
}

// varianceGiven returns the posterior variance at x given a set of observed
// inputs. GP variance does not depend on the observed values, which is what
// makes greedy batch selection possible before any rating arrives.
func (gp *gaussianProcess) varianceGiven(chol *mat.Cholesky, inputs [][]float64, x []float64) float64 {
	prior := gp.kernel(x, x)
	if chol == nil || len(inputs) == 0 {
		return prior
	}
	return gp.posteriorVariance(chol, gp.kernelVector(inputs, x), prior)
}

func (gp *gaussianProcess) kernelVector(inputs [][]float64, x []float64) *mat.VecDense {
	k := mat.NewVecDense(len(inputs), nil)
	for i, in := range inputs {
		k.SetVec(i, gp.kernel(in, x))
	}
	return k
}

func (gp *gaussianProcess) posteriorVariance(chol *mat.Cholesky, kStar *mat.VecDense, prior float64) float64 {
	v := mat.NewVecDense(kStar.Len(), nil)
	if err := chol.SolveVecTo(v, kStar); err != nil {
		return prior
	}
	variance := prior - mat.Dot(kStar, v)
	if variance < 0 {
		return 0
	}
	return variance
}
