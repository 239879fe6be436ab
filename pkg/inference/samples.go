package inference

import (
	"gonum.org/v1/gonum/mat"

	"github.com/epicast/epicast/pkg/gp"
)

// Site names of the model.
const (
	SiteNoise       = "noise"
	SiteSigmaObs    = "sigma_obs"
	SiteRWVar       = "rw_var"
	SiteAmp         = "amp"
	SiteLeng        = "leng"
	SiteFittedResid = "fitted_resid"
	SiteYHat        = "yhat"
)

// Samples maps a site name to its draws, one row per retained draw and one
// column per element of the site.
type Samples map[string]*mat.Dense

// Draws is the number of retained draws.
func (s Samples) Draws() int {
	m, ok := s[SiteNoise]
	if !ok {
		return 0
	}
	r, _ := m.Dims()
	return r
}

// Scalar returns the draws of a one-column site.
func (s Samples) Scalar(site string) []float64 {
	m, ok := s[site]
	if !ok {
		return nil
	}
	return mat.Col(nil, 0, m)
}

// Params returns the hyperparameters of draw i.
func (s Samples) Params(i int) gp.Params {
	p := gp.Params{
		Noise:    s[SiteNoise].At(i, 0),
		SigmaObs: s[SiteSigmaObs].At(i, 0),
		RWVar:    s[SiteRWVar].At(i, 0),
	}
	if amp, ok := s[SiteAmp]; ok {
		p.Amp = amp.At(i, 0)
	}
	if leng, ok := s[SiteLeng]; ok {
		p.Leng = mat.Row(nil, i, leng)
	}
	return p
}

// samplesFrom converts unconstrained draws to model sites, including the
// deterministic forecast site.
func samplesFrom(cfg *gp.Config, l layout, draws *mat.Dense) Samples {
	n, _ := draws.Dims()
	s := Samples{
		SiteNoise:       mat.NewDense(n, 1, nil),
		SiteSigmaObs:    mat.NewDense(n, 1, nil),
		SiteRWVar:       mat.NewDense(n, 1, nil),
		SiteFittedResid: mat.NewDense(n, l.horizon, nil),
		SiteYHat:        mat.NewDense(n, cfg.Len(), nil),
	}
	if l.rbf {
		s[SiteAmp] = mat.NewDense(n, 1, nil)
		s[SiteLeng] = mat.NewDense(n, l.nLeng, nil)
	}

	for i := 0; i < n; i++ {
		p, resid, _ := l.constrain(draws.RawRowView(i))
		s[SiteNoise].Set(i, 0, p.Noise)
		s[SiteSigmaObs].Set(i, 0, p.SigmaObs)
		s[SiteRWVar].Set(i, 0, p.RWVar)
		if l.rbf {
			s[SiteAmp].Set(i, 0, p.Amp)
			s[SiteLeng].SetRow(i, p.Leng)
		}
		s[SiteFittedResid].SetRow(i, resid)
		s[SiteYHat].SetRow(i, cfg.Forecast(resid))
	}
	return s
}
