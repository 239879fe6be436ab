package inference

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// SiteSummary holds posterior statistics of one element of a site.
type SiteSummary struct {
	Name   string
	Mean   float64
	StdDev float64
	Q05    float64
	Median float64
	Q95    float64
}

// Summarize computes posterior statistics for the hyperparameter sites.
// Vector sites get one entry per element, named site[k].
func Summarize(s Samples) []SiteSummary {
	var out []SiteSummary
	for _, site := range []string{SiteNoise, SiteSigmaObs, SiteRWVar, SiteAmp, SiteLeng} {
		m, ok := s[site]
		if !ok {
			continue
		}
		_, cols := m.Dims()
		for k := 0; k < cols; k++ {
			name := site
			if cols > 1 || site == SiteLeng {
				name = fmt.Sprintf("%s[%d]", site, k)
			}
			out = append(out, summarizeColumn(name, mat.Col(nil, k, m)))
		}
	}
	return out
}

func summarizeColumn(name string, x []float64) SiteSummary {
	sorted := slices.Clone(x)
	sort.Float64s(sorted)
	mean, sd := stat.MeanStdDev(sorted, nil)
	return SiteSummary{
		Name:   name,
		Mean:   mean,
		StdDev: sd,
		Q05:    stat.Quantile(0.05, stat.LinInterp, sorted, nil),
		Median: stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		Q95:    stat.Quantile(0.95, stat.LinInterp, sorted, nil),
	}
}

// LogSummary writes one debug record per summarized site.
func LogSummary(log *slog.Logger, summary []SiteSummary) {
	for _, s := range summary {
		log.Debug("posterior",
			"site", s.Name,
			"mean", s.Mean,
			"sd", s.StdDev,
			"q05", s.Q05,
			"median", s.Median,
			"q95", s.Q95,
		)
	}
}
