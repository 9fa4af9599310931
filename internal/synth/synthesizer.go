// Package synth turns the mined pattern distribution into weekly
// multiplicative template weights per platform, and exposes the current
// effective weight set consumed by bandit arm scoring.
package synth

import (
	"context"
	"fmt"
	"time"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/pkg/logger"
)

const (
	// Weight bounds. A value at the dimension's max average buzz maps
	// to 2.0; a value with data but negligible buzz approaches 0.5.
	minWeight = 0.5
	maxWeight = 2.0

	// minSamples guards against a single noisy observation producing
	// an extreme weight.
	minSamples = 2

	// maxBuzzFloor avoids a zero denominator when every observed value
	// has zero average buzz.
	maxBuzzFloor = 0.01
)

// WeightStore persists template weights, upserted on the natural key
// (weekStart, platform, dimension value).
type WeightStore interface {
	Upsert(ctx context.Context, w *domain.TemplateWeight) error
	ListForWeek(ctx context.Context, weekStart time.Time, platform domain.Platform) ([]domain.TemplateWeight, error)
}

// DistributionSource computes the trailing pattern distribution.
type DistributionSource interface {
	Distribution(ctx context.Context, days int) (*domain.PatternDistribution, error)
}

// Config carries the configured value lists and window.
type Config struct {
	Platforms    []domain.Platform
	Formats      []string
	HookTypes    []string
	PayloadTypes []string
	WindowDays   int
	Location     *time.Location
}

// Result summarizes one synthesis run.
type Result struct {
	WeekStart time.Time `json:"week_start"`
	Upserted  int       `json:"upserted"`
	Errors    []string  `json:"errors,omitempty"`
}

// Synthesizer recomputes weekly template weights from mined patterns.
type Synthesizer struct {
	store WeightStore
	dist  DistributionSource
	cfg   Config
	now   func() time.Time
}

// New creates a Synthesizer. A nil Location defaults to UTC and a zero
// window to 7 days.
func New(store WeightStore, dist DistributionSource, cfg Config) *Synthesizer {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 7
	}
	return &Synthesizer{store: store, dist: dist, cfg: cfg, now: time.Now}
}

// Synthesize recomputes weights for the current week from the trailing
// distribution and upserts one row per (platform, configured value) for
// every configured format, hook type, and payload type — observed or
// not. Values with fewer than 2 samples stay neutral.
func (s *Synthesizer) Synthesize(ctx context.Context) (*Result, error) {
	dist, err := s.dist.Distribution(ctx, s.cfg.WindowDays)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	weekStart := WeekStart(s.now().In(s.cfg.Location))
	res := &Result{WeekStart: weekStart}

	type dimension struct {
		values []string
		stats  map[string]domain.DimensionStat
		set    func(w *domain.TemplateWeight, value string)
	}
	dims := []dimension{
		{s.cfg.Formats, dist.Formats, func(w *domain.TemplateWeight, v string) { w.Format = v }},
		{s.cfg.HookTypes, dist.HookTypes, func(w *domain.TemplateWeight, v string) { w.HookType = v }},
		{s.cfg.PayloadTypes, dist.PayloadTypes, func(w *domain.TemplateWeight, v string) { w.PayloadType = v }},
	}

	for _, platform := range s.cfg.Platforms {
		for _, dim := range dims {
			maxBuzz := maxBuzzFloor
			for _, stat := range dim.stats {
				if stat.Count >= minSamples && stat.AvgBuzz > maxBuzz {
					maxBuzz = stat.AvgBuzz
				}
			}

			for _, value := range dim.values {
				stat := dim.stats[value]
				weight := 1.0
				if stat.Count >= minSamples {
					weight = clampWeight(minWeight + 1.5*(stat.AvgBuzz/maxBuzz))
				}

				row := &domain.TemplateWeight{
					WeekStart:    weekStart,
					Platform:     platform,
					Weight:       weight,
					SampleCount:  stat.Count,
					AvgBuzzScore: stat.AvgBuzz,
				}
				dim.set(row, value)

				if err := s.store.Upsert(ctx, row); err != nil {
					res.Errors = append(res.Errors, fmt.Sprintf("%s %s: %v", platform, value, err))
					continue
				}
				res.Upserted++
			}
		}
	}

	logger.Info("template synthesis complete",
		"week_start", weekStart.Format("2006-01-02"),
		"upserted", res.Upserted,
		"errors", len(res.Errors))
	return res, nil
}

// CurrentWeights returns the effective weight set for a platform: every
// configured value initialized to neutral 1.0, overlaid with any rows
// stored for the current week. No configured value is ever missing.
func (s *Synthesizer) CurrentWeights(ctx context.Context, platform domain.Platform) (domain.WeightSet, error) {
	ws := domain.WeightSet{
		Formats:      neutral(s.cfg.Formats),
		HookTypes:    neutral(s.cfg.HookTypes),
		PayloadTypes: neutral(s.cfg.PayloadTypes),
	}

	weekStart := WeekStart(s.now().In(s.cfg.Location))
	rows, err := s.store.ListForWeek(ctx, weekStart, platform)
	if err != nil {
		return ws, fmt.Errorf("current weights: %w", err)
	}

	for _, row := range rows {
		switch {
		case row.Format != "":
			ws.Formats[row.Format] = row.Weight
		case row.HookType != "":
			ws.HookTypes[row.HookType] = row.Weight
		case row.PayloadType != "":
			ws.PayloadTypes[row.PayloadType] = row.Weight
		}
	}
	return ws, nil
}

// WeekStart rolls a time back to the most recent Monday at 00:00 in its
// location.
func WeekStart(t time.Time) time.Time {
	daysBack := (int(t.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -daysBack)
}

func neutral(values []string) map[string]float64 {
	m := make(map[string]float64, len(values))
	for _, v := range values {
		m[v] = 1.0
	}
	return m
}

func clampWeight(w float64) float64 {
	if w < minWeight {
		return minWeight
	}
	if w > maxWeight {
		return maxWeight
	}
	return w
}
