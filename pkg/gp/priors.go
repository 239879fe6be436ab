package gp

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

var logTwoOverPi = math.Log(2 / math.Pi)

// HalfCauchyLogProb is the log density of a Half-Cauchy(scale) at x.
func HalfCauchyLogProb(x, scale float64) float64 {
	if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return math.Inf(-1)
	}
	z := x / scale
	return logTwoOverPi - math.Log(scale) - math.Log1p(z*z)
}

var ampPrior = distuv.Beta{Alpha: 1, Beta: 1}

// LogPrior returns the joint log prior of p under the model's priors:
// Half-Cauchy(1) on noise, sigma_obs, rw_var and every length-scale, and
// Beta(1, 1) on the amplitude. Out-of-support values give -Inf.
func (c *Config) LogPrior(p Params) float64 {
	lp := HalfCauchyLogProb(p.Noise, 1) +
		HalfCauchyLogProb(p.SigmaObs, 1) +
		HalfCauchyLogProb(p.RWVar, 1)

	if !c.HasRBF() {
		return lp
	}
	if len(p.Leng) != c.NumLengthscales() {
		return math.Inf(-1)
	}
	if !(p.Amp > 0 && p.Amp < 1) {
		return math.Inf(-1)
	}
	lp += ampPrior.LogProb(p.Amp)
	for _, l := range p.Leng {
		if !(l > 0) {
			return math.Inf(-1)
		}
		lp += HalfCauchyLogProb(l, 1)
	}
	return lp
}
