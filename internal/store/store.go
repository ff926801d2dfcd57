// Package store persists design runs together with their per-tower results
// and group picks. MemoryStore backs tests and short-lived CLI runs;
// SQLiteStore keeps history on disk.
package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/towerworks/foundation-core/internal/grouping"
	"github.com/towerworks/foundation-core/internal/optimizer"
	"github.com/towerworks/foundation-core/pkg/models"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrRunExists   = errors.New("run already exists")
)

// Mode is the kind of work a run performs.
type Mode string

const (
	ModeOptimize Mode = "optimize"
	ModeGroup    Mode = "group"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeOptimize || m == ModeGroup
}

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Run is the persisted record of one optimize or group invocation.
// ParamsYAML holds the serialized parameter set the run was started with.
type Run struct {
	ID              string             `json:"id"`
	Mode            Mode               `json:"mode"`
	Kind            models.Kind        `json:"kind,omitempty"`
	Status          Status             `json:"status"`
	Site            string             `json:"site,omitempty"`
	ParamsYAML      string             `json:"params_yaml,omitempty"`
	CreatedAtUnixMs int64              `json:"created_at_unix_ms"`
	StartedAtUnixMs int64              `json:"started_at_unix_ms"`
	EndedAtUnixMs   int64              `json:"ended_at_unix_ms"`
	Error           string             `json:"error,omitempty"`
	Summary         *optimizer.Summary `json:"summary,omitempty"`
	Uncovered       []string           `json:"uncovered,omitempty"`
}

// Outcome is what a finished run reports back to its record.
type Outcome struct {
	Summary   optimizer.Summary
	Uncovered []string
}

// Store is implemented by MemoryStore and SQLiteStore. Every Store is
// also an optimizer.TowerSink and a grouping.GroupSink.
type Store interface {
	Create(ctx context.Context, run Run) (Run, error)
	Get(ctx context.Context, id string) (Run, error)
	List(ctx context.Context, filter Filter) ([]Run, error)
	SetStatus(ctx context.Context, id string, status Status, errMsg string) (Run, error)
	SetOutcome(ctx context.Context, id string, out Outcome) error
	RecordTower(ctx context.Context, runID string, result models.TowerResult) error
	RecordGroup(ctx context.Context, runID string, pick grouping.Pick) error
	Towers(ctx context.Context, runID string) ([]models.TowerResult, error)
	Picks(ctx context.Context, runID string) ([]grouping.Pick, error)
	Close() error
}

// Filter selects runs for List. Runs come back oldest first.
type Filter struct {
	Limit  int
	Offset int
	Status Status // empty matches any
}

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultListLimit
	case f.Limit > maxListLimit:
		return maxListLimit
	}
	return f.Limit
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

// transition applies status to run and stamps start and end times.
func transition(run *Run, status Status, errMsg string) {
	run.Status = status
	if errMsg != "" {
		run.Error = errMsg
	}
	switch {
	case status == StatusRunning:
		if run.StartedAtUnixMs == 0 {
			run.StartedAtUnixMs = nowUnixMs()
		}
	case status.Terminal():
		run.EndedAtUnixMs = nowUnixMs()
	}
}

func (r Run) clone() Run {
	if r.Summary != nil {
		s := *r.Summary
		r.Summary = &s
	}
	r.Uncovered = slices.Clone(r.Uncovered)
	return r
}
