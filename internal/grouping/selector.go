package grouping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/towerworks/foundation-core/pkg/config"
	"github.com/towerworks/foundation-core/pkg/logger"
	"github.com/towerworks/foundation-core/pkg/models"
)

// ErrReselected is returned when the group query hands back a group that
// was already picked in the run.
var ErrReselected = errors.New("group query returned an already selected group")

// GroupQuery finds the best group not yet selected whose cost overrun is
// within thresholdPct. It must be deterministic for a fixed state and
// threshold. ok is false when no group qualifies.
type GroupQuery interface {
	BestGroup(ctx context.Context, state CoverageState, thresholdPct float64, runID string) (g models.Group, ok bool, err error)
}

// GroupSink persists accepted picks.
type GroupSink interface {
	RecordGroup(ctx context.Context, runID string, pick Pick) error
}

// Pick is one accepted group with the threshold it was queried under.
type Pick struct {
	Iteration    int          `json:"iteration"`
	Group        models.Group `json:"group"`
	ThresholdPct float64      `json:"threshold_pct"`
	NetNew       []string     `json:"net_new"`
}

// CoverageReport is the outcome of a selector run. Covered and Uncovered
// partition the universe and keep its order. Thresholds holds the initial
// threshold followed by the one computed after each pick.
type CoverageReport struct {
	RunID      string    `json:"run_id"`
	Picks      []Pick    `json:"picks"`
	Covered    []string  `json:"covered"`
	Uncovered  []string  `json:"uncovered"`
	Thresholds []float64 `json:"thresholds"`
	Queries    int       `json:"queries"`
}

// Selector greedily covers a tower universe with groups from Query.
type Selector struct {
	Query    GroupQuery
	Coverage config.Coverage
	Sink     GroupSink    // optional
	Logger   *slog.Logger // optional
}

// Run covers universe until every tower is covered, the query returns
// nothing, or a pick adds no new tower. Towers left uncovered are a normal
// outcome.
func (s *Selector) Run(ctx context.Context, runID string, universe []string) (*CoverageReport, error) {
	if s.Query == nil {
		return nil, errors.New("group query is required")
	}
	log := s.Logger
	if log == nil {
		log = logger.Default
	}
	log = log.With("run_id", runID)

	members := make(map[string]struct{}, len(universe))
	for _, t := range universe {
		members[t] = struct{}{}
	}

	schedule := NewSchedule(s.Coverage, len(members))
	state := NewCoverageState()
	threshold := schedule.Initial()
	report := &CoverageReport{RunID: runID, Thresholds: []float64{threshold}}

	for iter := 1; iter <= len(members) && state.CoveredCount() < len(members); iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		g, ok, err := s.Query.BestGroup(ctx, state, threshold, runID)
		report.Queries++
		if err != nil {
			return nil, fmt.Errorf("query best group (iteration %d): %w", iter, err)
		}
		if !ok {
			log.Info("no group within threshold", "iteration", iter, "threshold_pct", threshold)
			break
		}
		if state.IsSelected(g.ID) {
			return nil, fmt.Errorf("%w: %s", ErrReselected, g.ID)
		}

		netNew := state.NetNew(g, members)
		if len(netNew) == 0 {
			log.Info("group adds no tower", "iteration", iter, "group", g.ID)
			break
		}

		pick := Pick{Iteration: iter, Group: g, ThresholdPct: threshold, NetNew: netNew}
		if s.Sink != nil {
			if err := s.Sink.RecordGroup(ctx, runID, pick); err != nil {
				return nil, fmt.Errorf("record group %s: %w", g.ID, err)
			}
		}
		state = state.With(g.ID, netNew)
		report.Picks = append(report.Picks, pick)

		threshold = schedule.Next(g.Coverage)
		report.Thresholds = append(report.Thresholds, threshold)
		log.Info("group selected",
			"iteration", iter,
			"group", g.ID,
			"coverage", g.Coverage,
			"net_new", len(netNew),
			"threshold_pct", pick.ThresholdPct,
			"next_threshold_pct", threshold)
	}

	for _, t := range universe {
		if state.IsCovered(t) {
			report.Covered = append(report.Covered, t)
		} else {
			report.Uncovered = append(report.Uncovered, t)
		}
	}
	return report, nil
}
