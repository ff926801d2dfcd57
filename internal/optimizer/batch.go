package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/towerworks/foundation-core/pkg/config"
	"github.com/towerworks/foundation-core/pkg/logger"
	"github.com/towerworks/foundation-core/pkg/models"
)

// SoilProvider resolves the soil profile of a tower. An error means the
// profile is invalid or unavailable.
type SoilProvider interface {
	Profile(ctx context.Context, tower models.Tower) (models.SoilProfile, error)
}

// LoadsProvider resolves the design loads of a tower.
type LoadsProvider interface {
	Loads(ctx context.Context, tower models.Tower) (models.Loads, error)
}

// TowerSink receives each completed tower result.
type TowerSink interface {
	RecordTower(ctx context.Context, runID string, result models.TowerResult) error
}

// Batch optimizes a fixed tower list for one foundation kind. A tower's
// data problem is recorded in its result and never aborts the batch.
type Batch struct {
	RunID     string
	Optimizer *Optimizer
	Params    *config.Parameters
	Soil      SoilProvider
	Loads     LoadsProvider
	Sink      TowerSink    // optional
	Logger    *slog.Logger // optional
}

// Summary counts tower outcomes of a batch.
type Summary struct {
	Towers           int `json:"towers"`
	Solved           int `json:"solved"`
	NoSolution       int `json:"no_solution"`
	ProfileErrors    int `json:"profile_errors"`
	EvaluationErrors int `json:"evaluation_errors"`
	ConfigErrors     int `json:"config_errors"`
	NotApplicable    int `json:"not_applicable"`
}

// Report is the outcome of a batch, one result per input tower in order.
type Report struct {
	RunID   string               `json:"run_id"`
	Kind    models.Kind          `json:"kind"`
	Results []models.TowerResult `json:"results"`
	Summary Summary              `json:"summary"`
}

// Summarize counts results by status.
func Summarize(results []models.TowerResult) Summary {
	s := Summary{Towers: len(results)}
	for _, r := range results {
		switch r.Status {
		case models.TowerSuccess:
			if r.Solved() {
				s.Solved++
			} else {
				s.NoSolution++
			}
		case models.TowerNoSolution:
			s.NoSolution++
		case models.TowerProfileError:
			s.ProfileErrors++
		case models.TowerEvaluationError:
			s.EvaluationErrors++
		case models.TowerConfigError:
			s.ConfigErrors++
		case models.TowerNotApplicable:
			s.NotApplicable++
		}
	}
	return s
}

// Run optimizes every tower. Towers run concurrently up to Params.Workers.
// The returned error is reserved for cancellation and sink failures.
func (b *Batch) Run(ctx context.Context, towers []models.Tower) (*Report, error) {
	if b.Optimizer == nil || b.Params == nil || b.Soil == nil || b.Loads == nil {
		return nil, fmt.Errorf("%w: batch requires optimizer, parameters, soil and loads providers", ErrInvalidConfig)
	}
	log := b.Logger
	if log == nil {
		log = logger.Default
	}
	log = log.With("run_id", b.RunID, "kind", b.Optimizer.Kind())

	workers := b.Params.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]models.TowerResult, len(towers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, tower := range towers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := b.tower(gctx, tower)
			results[i] = res
			log.Info("tower processed",
				"tower", res.Tower.Name,
				"status", res.Status,
				"solutions", len(res.Solutions),
				"evaluated", res.Evaluated)
			if b.Sink != nil {
				if err := b.Sink.RecordTower(gctx, b.RunID, res); err != nil {
					return fmt.Errorf("record tower %s: %w", tower.Name, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:   b.RunID,
		Kind:    b.Optimizer.Kind(),
		Results: results,
		Summary: Summarize(results),
	}
	log.Info("batch completed",
		"towers", report.Summary.Towers,
		"solved", report.Summary.Solved,
		"no_solution", report.Summary.NoSolution,
		"profile_errors", report.Summary.ProfileErrors)
	return report, nil
}

func (b *Batch) tower(ctx context.Context, tower models.Tower) models.TowerResult {
	kind := b.Optimizer.Kind()
	if w := b.Params.FillUnitWeightOverride; w != nil {
		tower = tower.WithFillUnitWeight(*w)
	}
	res := models.TowerResult{Tower: tower, Kind: kind}

	if !tower.Recommends(kind) {
		res.Status = models.TowerNotApplicable
		return res
	}

	soil, err := b.Soil.Profile(ctx, tower)
	if err == nil {
		err = soil.Validate()
	}
	if err != nil {
		res.Status = models.TowerProfileError
		res.Error = err.Error()
		return res
	}

	loads, err := b.Loads.Loads(ctx, tower)
	if err != nil {
		res.Status = models.TowerEvaluationError
		res.Error = err.Error()
		return res
	}

	out, err := b.Optimizer.Run(tower, soil, loads, b.Params, b.Params.MaxSolutions)
	switch {
	case errors.Is(err, ErrInvalidConfig):
		res.Status = models.TowerConfigError
		res.Error = err.Error()
	case err != nil:
		res.Status = models.TowerEvaluationError
		res.Error = err.Error()
	default:
		res.Status = models.TowerSuccess
		res.Solutions = out.Solutions
		res.Evaluated = out.Evaluated
	}
	return res
}
