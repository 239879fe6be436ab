package inference

import (
	"math"

	"github.com/epicast/epicast/pkg/gp"
)

// layout maps between the sampler's unconstrained vector and the model sites.
// The vector is ordered as
//
//	log noise, log sigma_obs, log rw_var, [logit amp, log leng...], fitted_resid...
type layout struct {
	rbf     bool
	nLeng   int
	horizon int
}

func newLayout(cfg *gp.Config) layout {
	l := layout{horizon: cfg.Horizon()}
	if cfg.HasRBF() {
		l.rbf = true
		l.nLeng = cfg.NumLengthscales()
	}
	return l
}

// hyper is the number of hyperparameter coordinates.
func (l layout) hyper() int {
	if l.rbf {
		return 4 + l.nLeng
	}
	return 3
}

func (l layout) dim() int { return l.hyper() + l.horizon }

// constrain maps u to model values and returns the log-Jacobian of the map.
func (l layout) constrain(u []float64) (gp.Params, []float64, float64) {
	p := gp.Params{
		Noise:    math.Exp(u[0]),
		SigmaObs: math.Exp(u[1]),
		RWVar:    math.Exp(u[2]),
	}
	logJac := u[0] + u[1] + u[2]

	if l.rbf {
		p.Amp = sigmoid(u[3])
		logJac += -softplus(-u[3]) - softplus(u[3])
		p.Leng = make([]float64, l.nLeng)
		for k := range p.Leng {
			v := u[4+k]
			p.Leng[k] = math.Exp(v)
			logJac += v
		}
	}

	resid := make([]float64, l.horizon)
	copy(resid, u[l.hyper():])
	return p, resid, logJac
}

// unconstrain is the inverse of constrain.
func (l layout) unconstrain(p gp.Params, resid []float64) []float64 {
	u := make([]float64, l.dim())
	u[0] = math.Log(p.Noise)
	u[1] = math.Log(p.SigmaObs)
	u[2] = math.Log(p.RWVar)
	if l.rbf {
		u[3] = math.Log(p.Amp) - math.Log1p(-p.Amp)
		for k := 0; k < l.nLeng; k++ {
			u[4+k] = math.Log(p.Leng[k])
		}
	}
	copy(u[l.hyper():], resid)
	return u
}

func validParams(p gp.Params) bool {
	for _, v := range []float64{p.Noise, p.SigmaObs, p.RWVar, p.Amp} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, v := range p.Leng {
		if math.IsNaN(v) || math.IsInf(v, 0) || v == 0 {
			return false
		}
	}
	return true
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// softplus is log(1 + e^x) without overflow.
func softplus(x float64) float64 {
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}
