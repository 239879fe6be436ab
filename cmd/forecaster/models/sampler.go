// Package models selects the MCMC sampler used to fit the forecast model.
package models

import (
	"fmt"
	"log/slog"

	"github.com/epicast/epicast/cmd/forecaster/config"
	"github.com/epicast/epicast/pkg/mcmc"
)

// NewSampler returns the sampler named by cfg.Sampler.
func NewSampler(cfg *config.Config, logger *slog.Logger) (mcmc.Sampler, error) {
	switch cfg.Sampler {
	case "nuts":
		logger.Info("initializing NUTS sampler", "max_tree_depth", cfg.MaxTreeDepth)
		return mcmc.NUTS{MaxTreeDepth: cfg.MaxTreeDepth}, nil

	case "mh":
		logger.Info("initializing Metropolis-Hastings sampler", "scale", cfg.MHScale)
		return mcmc.MetropolisHastings{Scale: cfg.MHScale}, nil

	default:
		return nil, fmt.Errorf("invalid sampler %q (must be nuts or mh)", cfg.Sampler)
	}
}
