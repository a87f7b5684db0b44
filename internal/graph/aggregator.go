// Package graph turns logged toolkit answers into fixed, time-bucketed series.
//
// Every series covers the full bucket set of its window (24 hours, 7 weekdays,
// the days of the month or 12 months). Buckets without answers are zero.
package graph

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/terra-clan/toolkit-engine/internal/metrics"
	"github.com/terra-clan/toolkit-engine/internal/models"
	"github.com/terra-clan/toolkit-engine/internal/storage"
)

// Definitions resolves a toolkit capability
type Definitions interface {
	Require(t models.ToolkitType, c models.Capability) (models.ToolkitDefinition, error)
}

// Store runs the aggregation queries
type Store interface {
	BucketAggregate(ctx context.Context, def models.ToolkitDefinition, userID, toolkitID string, g models.Granularity, window models.DateWindow) ([]storage.BucketRow, error)
	ScatterPoints(ctx context.Context, def models.ToolkitDefinition, userID, toolkitID string, g models.Granularity, window models.DateWindow) ([][2]float64, error)
	AverageValue(ctx context.Context, def models.ToolkitDefinition, avg models.AverageSpec, userID, toolkitID string, window models.DateWindow) (float64, error)
}

// Labeler translates label keys for display
type Labeler interface {
	Label(ctx context.Context, key string) string
}

// KeyLabeler returns label keys unchanged
type KeyLabeler struct{}

func (KeyLabeler) Label(_ context.Context, key string) string { return key }

// Aggregator builds graph data for a user's toolkit
type Aggregator struct {
	defs    Definitions
	store   Store
	labeler Labeler
	logger  *slog.Logger
}

// NewAggregator creates an aggregator. A nil labeler leaves labels as keys.
func NewAggregator(defs Definitions, store Store, labeler Labeler) *Aggregator {
	if labeler == nil {
		labeler = KeyLabeler{}
	}
	return &Aggregator{
		defs:    defs,
		store:   store,
		labeler: labeler,
		logger:  slog.Default().With("component", "graph"),
	}
}

// Graph builds the series of a toolkit for the window of granularity g containing anchor.
// Averages declared by the toolkit are computed concurrently over the same window.
func (a *Aggregator) Graph(ctx context.Context, userID string, toolkit models.Toolkit, anchor time.Time, g models.Granularity) (data *models.GraphData, err error) {
	started := time.Now()
	defer func() {
		metrics.RecordGraph(string(toolkit.Type), string(g), started, err)
	}()

	def, err := a.defs.Require(toolkit.Type, models.CapabilityGraph)
	if err != nil {
		return nil, err
	}

	window, err := Window(anchor, g)
	if err != nil {
		return nil, err
	}
	keys := BucketKeys(g, window)

	var points []models.GraphPoint
	averages := []models.AverageValue{}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		points, err = a.series(egCtx, def, userID, toolkit.ID, g, window, keys)
		return err
	})
	if def.Supports(models.CapabilityAverages) {
		eg.Go(func() error {
			var err error
			averages, err = a.computeAverages(egCtx, def, userID, toolkit.ID, window)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		a.logger.Error("graph build failed", "toolkit_type", toolkit.Type, "graph_range", g, "error", err)
		return nil, err
	}

	axis := axisKeys(g, keys)
	labels := make([]string, len(axis))
	for i, k := range axis {
		labels[i] = a.labeler.Label(ctx, LabelKey(g, k))
	}

	return &models.GraphData{
		ToolkitType: toolkit.Type,
		GraphType:   def.Graph.Shape,
		GraphRange:  g,
		Window:      window,
		Data:        points,
		Labels:      labels,
		Averages:    averages,
	}, nil
}

// Averages computes the declared averages of a toolkit over the window containing anchor
func (a *Aggregator) Averages(ctx context.Context, userID string, toolkit models.Toolkit, anchor time.Time, g models.Granularity) ([]models.AverageValue, error) {
	def, err := a.defs.Require(toolkit.Type, models.CapabilityAverages)
	if err != nil {
		return nil, err
	}
	window, err := Window(anchor, g)
	if err != nil {
		return nil, err
	}
	return a.computeAverages(ctx, def, userID, toolkit.ID, window)
}

func (a *Aggregator) series(ctx context.Context, def models.ToolkitDefinition, userID, toolkitID string, g models.Granularity, window models.DateWindow, keys []int) ([]models.GraphPoint, error) {
	if def.Graph.Shape == models.GraphScattered {
		raw, err := a.store.ScatterPoints(ctx, def, userID, toolkitID, g, window)
		if err != nil {
			return nil, err
		}
		return fillScatter(raw, keys), nil
	}

	rows, err := a.store.BucketAggregate(ctx, def, userID, toolkitID, g, window)
	if err != nil {
		return nil, err
	}
	byKey := make(map[int]storage.BucketRow, len(rows))
	for _, r := range rows {
		byKey[r.Key] = r
	}

	points := make([]models.GraphPoint, 0, len(keys))
	for _, k := range keys {
		label := a.labeler.Label(ctx, LabelKey(g, k))
		r := byKey[k]
		if def.Graph.Shape == models.GraphRange {
			points = append(points, models.RangePoint(label, r.Min, r.Max))
		} else {
			points = append(points, models.BarPoint(label, r.Value))
		}
	}
	return points, nil
}

// fillScatter keeps every real point and adds a zero point for each bucket with none,
// ordered by x
func fillScatter(raw [][2]float64, keys []int) []models.GraphPoint {
	covered := make(map[int]bool, len(raw))
	points := make([]models.GraphPoint, 0, len(raw)+len(keys))
	for _, p := range raw {
		covered[int(math.Floor(p[0]))] = true
		points = append(points, models.ScatterPoint(p[0], p[1]))
	}
	for _, k := range keys {
		if !covered[k] {
			points = append(points, models.ScatterPoint(float64(k), 0))
		}
	}
	sort.SliceStable(points, func(i, j int) bool { return *points[i].X < *points[j].X })
	return points
}

func (a *Aggregator) computeAverages(ctx context.Context, def models.ToolkitDefinition, userID, toolkitID string, window models.DateWindow) ([]models.AverageValue, error) {
	out := make([]models.AverageValue, len(def.Averages))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, spec := range def.Averages {
		eg.Go(func() error {
			value, err := a.store.AverageValue(egCtx, def, spec, userID, toolkitID, window)
			if err != nil {
				return err
			}
			out[i] = models.AverageValue{Name: spec.Name, Value: math.Round(value*100) / 100}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
