// Package designd runs foundation design batches on behalf of the CLI and
// the HTTP daemon and records them in a store.
package designd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/towerworks/foundation-core/internal/grouping"
	"github.com/towerworks/foundation-core/internal/optimizer"
	"github.com/towerworks/foundation-core/internal/site"
	"github.com/towerworks/foundation-core/internal/store"
	"github.com/towerworks/foundation-core/pkg/config"
	"github.com/towerworks/foundation-core/pkg/logger"
	"github.com/towerworks/foundation-core/pkg/models"
)

var ErrInvalidRequest = errors.New("invalid run request")

// Job is a validated unit of work: optimize every tower of a site for
// one foundation kind, or group the site's micropile towers.
type Job struct {
	Mode   store.Mode
	Kind   models.Kind
	Site   *config.Site
	Params *config.Parameters

	// Callback, when set, is notified once the run reaches a final status.
	Callback *Callback
}

// Request is the wire form of a job. Site and parameters travel as YAML
// documents.
type Request struct {
	RunID      string     `json:"run_id,omitempty"`
	Mode       store.Mode `json:"mode"`
	Kind       string     `json:"kind,omitempty"`
	SiteYAML   string     `json:"site_yaml"`
	ParamsYAML string     `json:"params_yaml"`

	CallbackURL    string `json:"callback_url,omitempty"`
	CallbackSecret string `json:"callback_secret,omitempty"`
}

// ParseRequest decodes and validates the YAML payloads of req.
func ParseRequest(req Request) (Job, error) {
	if req.SiteYAML == "" {
		return Job{}, fmt.Errorf("%w: site_yaml is required", ErrInvalidRequest)
	}
	s, err := config.ParseSiteYAMLString(req.SiteYAML)
	if err != nil {
		return Job{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	params, err := config.ParseParametersYAMLString(req.ParamsYAML)
	if err != nil {
		return Job{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	job := Job{Mode: req.Mode, Site: s, Params: params}
	if req.Kind != "" {
		if job.Kind, err = config.ParseKind(req.Kind); err != nil {
			return Job{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	if req.CallbackURL != "" {
		if err := ValidateCallbackURL(req.CallbackURL); err != nil {
			return Job{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		job.Callback = &Callback{URL: req.CallbackURL, Secret: req.CallbackSecret}
	}
	if err := job.Validate(); err != nil {
		return Job{}, err
	}
	return job, nil
}

// Validate checks that the job names a mode, a kind the mode supports and
// the geometry block that kind needs. Group jobs always use micropiles.
func (j *Job) Validate() error {
	if j.Site == nil || j.Params == nil {
		return fmt.Errorf("%w: site and parameters are required", ErrInvalidRequest)
	}
	switch j.Mode {
	case store.ModeOptimize:
		if !j.Kind.Valid() {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, &config.UnknownKindError{Kind: string(j.Kind)})
		}
	case store.ModeGroup:
		if j.Kind != "" && j.Kind != models.KindMicropile {
			return fmt.Errorf("%w: group runs only support %s, got %s", ErrInvalidRequest, models.KindMicropile, j.Kind)
		}
		j.Kind = models.KindMicropile
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, j.Mode)
	}
	if err := j.Params.ValidateFor(j.Kind); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// Record returns the pending run record describing j.
func (j Job) Record(runID string) (store.Run, error) {
	paramsYAML, err := config.MarshalParametersYAML(j.Params)
	if err != nil {
		return store.Run{}, err
	}
	return store.Run{
		ID:         runID,
		Mode:       j.Mode,
		Kind:       j.Kind,
		Site:       j.Site.Name,
		ParamsYAML: paramsYAML,
	}, nil
}

// Result is what a finished job produced. Exactly one of Batch and
// Coverage is set.
type Result struct {
	RunID    string                   `json:"run_id"`
	Batch    *optimizer.Report        `json:"batch,omitempty"`
	Coverage *grouping.CoverageReport `json:"coverage,omitempty"`
	Excluded []grouping.Exclusion     `json:"excluded,omitempty"`
	Summary  optimizer.Summary        `json:"summary"`
}

// Execute runs j under runID, streaming tower results and picks into st
// and storing the final summary on the run record. The record must exist.
func (j Job) Execute(ctx context.Context, runID string, st store.Store, log *slog.Logger) (*Result, error) {
	if log == nil {
		log = logger.Default
	}
	provider := site.New(j.Site)

	var (
		res *Result
		err error
	)
	switch j.Mode {
	case store.ModeOptimize:
		res, err = j.optimize(ctx, runID, provider, st, log)
	case store.ModeGroup:
		res, err = j.group(ctx, runID, provider, st, log)
	default:
		err = fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, j.Mode)
	}
	if err != nil {
		return nil, err
	}

	out := store.Outcome{Summary: res.Summary}
	if res.Coverage != nil {
		out.Uncovered = res.Coverage.Uncovered
	}
	if err := st.SetOutcome(ctx, runID, out); err != nil {
		return nil, fmt.Errorf("record outcome: %w", err)
	}
	return res, nil
}

func (j Job) optimize(ctx context.Context, runID string, provider *site.Provider, st store.Store, log *slog.Logger) (*Result, error) {
	opt, err := optimizer.New(j.Kind, nil)
	if err != nil {
		return nil, err
	}
	batch := &optimizer.Batch{
		RunID:     runID,
		Optimizer: opt,
		Params:    j.Params,
		Soil:      provider,
		Loads:     provider,
		Sink:      st,
		Logger:    log,
	}
	report, err := batch.Run(ctx, provider.Towers())
	if err != nil {
		return nil, err
	}
	return &Result{RunID: runID, Batch: report, Summary: report.Summary}, nil
}

func (j Job) group(ctx context.Context, runID string, provider *site.Provider, st store.Store, log *slog.Logger) (*Result, error) {
	builder := &grouping.Builder{
		Params: j.Params,
		Soil:   provider,
		Loads:  provider,
		Logger: log,
	}
	cat, err := builder.Build(ctx, provider.Towers())
	if err != nil {
		return nil, err
	}
	selector := &grouping.Selector{
		Query:    cat,
		Coverage: j.Params.Coverage,
		Sink:     st,
		Logger:   log,
	}
	universe := provider.Accepting(models.KindMicropile)
	report, err := selector.Run(ctx, runID, universe)
	if err != nil {
		return nil, err
	}
	return &Result{
		RunID:    runID,
		Coverage: report,
		Excluded: cat.Excluded(),
		Summary:  coverageSummary(len(provider.Towers()), len(universe), cat.Excluded(), report),
	}, nil
}

// coverageSummary counts a group run in batch terms: covered towers are
// solved, excluded towers keep their status and towers left uncovered by
// the selector count as having no solution.
func coverageSummary(towers, universe int, excluded []grouping.Exclusion, report *grouping.CoverageReport) optimizer.Summary {
	s := optimizer.Summary{
		Towers:        towers,
		Solved:        len(report.Covered),
		NotApplicable: towers - universe,
	}
	accounted := 0
	for _, e := range excluded {
		switch e.Status {
		case models.TowerProfileError:
			s.ProfileErrors++
		case models.TowerEvaluationError:
			s.EvaluationErrors++
		case models.TowerConfigError:
			s.ConfigErrors++
		case models.TowerNoSolution:
			s.NoSolution++
		default:
			continue
		}
		accounted++
	}
	s.NoSolution += max(len(report.Uncovered)-accounted, 0)
	return s
}
