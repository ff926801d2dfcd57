package metrics

import (
	"time"

	"github.com/towerworks/foundation-core/internal/grouping"
	"github.com/towerworks/foundation-core/internal/optimizer"
)

// Metric names recorded for design runs.
const (
	MetricRunDurationMs       = "run_duration_ms"
	MetricRunCount            = "run_count"
	MetricCandidatesEvaluated = "candidates_evaluated"
	MetricSolutionsKept       = "solutions_kept"
	MetricGroupPicks          = "group_picks"
	MetricGroupOverrunPct     = "group_overrun_pct"
	MetricTowersUncovered     = "towers_uncovered"
)

// RunLabels identifies a run by mode, foundation kind and final status.
func RunLabels(mode, kind, status string) map[string]string {
	return map[string]string{
		"mode":   mode,
		"kind":   kind,
		"status": status,
	}
}

// RecordRun counts one finished run and its wall-clock duration.
func RecordRun(c *Collector, d time.Duration, labels map[string]string) {
	now := time.Now()
	c.Record(MetricRunCount, 1, now, labels)
	c.Record(MetricRunDurationMs, float64(d.Microseconds())/1000, now, labels)
}

// RecordBatch records per-tower search effort of an optimization batch.
func RecordBatch(c *Collector, report *optimizer.Report) {
	if report == nil {
		return
	}
	now := time.Now()
	for _, r := range report.Results {
		labels := map[string]string{"kind": string(r.Kind), "status": string(r.Status)}
		c.Record(MetricCandidatesEvaluated, float64(r.Evaluated), now, labels)
		c.Record(MetricSolutionsKept, float64(len(r.Solutions)), now, labels)
	}
}

// RecordCoverage records the picks and leftovers of a grouping run.
func RecordCoverage(c *Collector, report *grouping.CoverageReport) {
	if report == nil {
		return
	}
	now := time.Now()
	c.Record(MetricGroupPicks, float64(len(report.Picks)), now, nil)
	c.Record(MetricTowersUncovered, float64(len(report.Uncovered)), now, nil)
	for _, p := range report.Picks {
		c.Record(MetricGroupOverrunPct, p.Group.OverrunPct, now, map[string]string{"descriptor": p.Group.Descriptor.ID()})
	}
}
