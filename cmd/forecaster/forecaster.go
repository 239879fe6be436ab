// Package main implements the forecast run orchestration.
//
// This file contains the Forecaster type, which runs the pipeline
//
//	collect → pad to horizon → fit → bands → store snapshot → publish event
//
// either once or at a fixed interval. Each run gets a fresh run ID; a failed
// run stores nothing, so readers keep seeing the previous forecast.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/epicast/epicast/cmd/forecaster/metrics"
	"github.com/epicast/epicast/pkg/adapters"
	"github.com/epicast/epicast/pkg/bands"
	"github.com/epicast/epicast/pkg/inference"
	"github.com/epicast/epicast/pkg/publish"
	"github.com/epicast/epicast/pkg/series"
	"github.com/epicast/epicast/pkg/storage"
)

// Model describes the outbreak and feature layout passed to every fit.
type Model struct {
	Population       int
	InfectiousPeriod float64
	// Weeks is the full forecast length; shorter sources are padded with
	// unobserved weeks.
	Weeks          int
	FeatureColumns int
}

// Forecaster runs the forecast pipeline for one series.
type Forecaster struct {
	series    string
	adapter   adapters.Adapter
	store     storage.Store
	publisher publish.Publisher
	model     Model
	opts      inference.Options
	levels    []float64
	logger    *slog.Logger
	metrics   *metrics.Metrics

	newRunID func() string
	// onStored, when set, is called after every stored snapshot.
	onStored func(storage.Snapshot)
}

// New creates a Forecaster. A nil publisher disables events and a nil
// metrics disables instrumentation.
func New(
	seriesName string,
	adapter adapters.Adapter,
	store storage.Store,
	publisher publish.Publisher,
	model Model,
	opts inference.Options,
	levels []float64,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Forecaster {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = publish.Noop{}
	}
	if len(levels) == 0 {
		levels = bands.DefaultLevels
	}
	opts.Logger = logger

	return &Forecaster{
		series:    seriesName,
		adapter:   adapter,
		store:     store,
		publisher: publisher,
		model:     model,
		opts:      opts,
		levels:    levels,
		logger:    logger.With("series", seriesName),
		metrics:   m,
		newRunID:  uuid.NewString,
	}
}

// Run executes one forecast immediately and then one per interval until ctx is
// done. With interval <= 0 it runs once and returns that run's error.
func (f *Forecaster) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		_, err := f.Tick(ctx)
		return err
	}

	f.logger.Info("starting forecast loop", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := f.Tick(ctx); err != nil {
		f.logger.Error("initial forecast failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("forecast loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := f.Tick(ctx); err != nil {
				f.logger.Error("forecast failed", "error", err)
			}
		}
	}
}

// Tick performs one forecast run and returns the stored snapshot.
func (f *Forecaster) Tick(ctx context.Context) (storage.Snapshot, error) {
	start := time.Now()
	runID := f.newRunID()
	log := f.logger.With("run_id", runID)

	s, err := f.collect(ctx, log)
	if err != nil {
		f.recordError("source", "collect_failed")
		return storage.Snapshot{}, fmt.Errorf("collect: %w", err)
	}

	fitStart := time.Now()
	res, err := inference.Fit(ctx, inference.Request{
		Y:                s.Values,
		X:                series.TimeFeatures(s.Len(), f.model.FeatureColumns),
		Times:            s.Times,
		N:                f.model.Population,
		InfectiousPeriod: f.model.InfectiousPeriod,
	}, f.opts)
	if err != nil {
		f.recordError("fit", fitReason(err))
		return storage.Snapshot{}, fmt.Errorf("fit: %w", err)
	}
	d := res.Diagnostics
	if f.metrics != nil {
		f.metrics.RecordFit(time.Since(fitStart).Seconds(), d.Divergences, d.AcceptRate, d.StepSize)
	}

	assembleStart := time.Now()
	b, err := bands.Compute(res.Forecasts, f.levels)
	if err != nil {
		f.recordError("bands", "compute_failed")
		return storage.Snapshot{}, fmt.Errorf("bands: %w", err)
	}

	snap := storage.Snapshot{
		RunID:       runID,
		Series:      f.series,
		GeneratedAt: time.Now().UTC(),
		Times:       res.Times,
		Observed:    append([]float64(nil), s.Values[:res.Nobs]...),
		Nobs:        res.Nobs,
		Mean:        b.Mean,
		Quantiles:   b.Labeled(),
		NumDraws:    d.NumDraws,
		Diagnostics: storage.Diagnostics{
			Sampler:     d.Sampler,
			Chains:      d.NumChains,
			AcceptRate:  d.AcceptRate,
			StepSize:    d.StepSize,
			Divergences: d.Divergences,
			DurationMs:  d.Duration.Milliseconds(),
		},
	}
	if err := f.store.Put(ctx, snap); err != nil {
		f.recordError("store", "put_failed")
		return storage.Snapshot{}, fmt.Errorf("store: %w", err)
	}
	if f.metrics != nil {
		f.metrics.RecordPredictive(time.Since(assembleStart).Seconds())
		f.metrics.SetForecastAge(0)
	}
	if f.onStored != nil {
		f.onStored(snap)
	}

	// the snapshot is already stored, so a broker outage only loses the event
	if err := f.publisher.Publish(ctx, publish.Event{
		RunID:       snap.RunID,
		Series:      snap.Series,
		GeneratedAt: snap.GeneratedAt,
		Nobs:        snap.Nobs,
		Horizon:     len(snap.Times) - snap.Nobs,
		NumDraws:    snap.NumDraws,
		Median:      b.Level(0.5),
	}); err != nil {
		f.recordError("publish", "publish_failed")
		log.Warn("failed to publish forecast event", "error", err)
	}

	log.Info("forecast complete",
		"nobs", snap.Nobs,
		"weeks", len(snap.Times),
		"draws", snap.NumDraws,
		"divergences", d.Divergences,
		"fit_ms", d.Duration.Milliseconds(),
		"total_ms", time.Since(start).Milliseconds(),
	)
	return snap, nil
}

func (f *Forecaster) collect(ctx context.Context, log *slog.Logger) (*adapters.Series, error) {
	start := time.Now()

	s, err := f.adapter.Collect(ctx)
	if err != nil {
		return nil, err
	}
	s.Extend(f.model.Weeks)

	duration := time.Since(start)
	if f.metrics != nil {
		f.metrics.RecordCollect(duration.Seconds())
	}
	log.Info("collected series",
		"source", f.adapter.Name(),
		"weeks", s.Len(),
		"duration_ms", duration.Milliseconds(),
	)
	return s, nil
}

func (f *Forecaster) recordError(component, reason string) {
	if f.metrics != nil {
		f.metrics.RecordError(component, reason)
	}
}

func fitReason(err error) string {
	switch {
	case errors.Is(err, inference.ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "sampling_failed"
	}
}
