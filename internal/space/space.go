// Package space enumerates candidate foundation geometries as the
// Cartesian product of configured search dimensions.
package space

import (
	"fmt"
	"iter"
	"math"

	"github.com/towerworks/foundation-core/pkg/config"
	"github.com/towerworks/foundation-core/pkg/models"
	"github.com/towerworks/foundation-core/pkg/utils"
)

// Dimension is one axis of the design space. Apply writes a value of the
// axis into a geometry under construction.
type Dimension struct {
	Name   string
	Values []float64
	Apply  func(g *models.Geometry, v float64)
}

// Filter reports whether a fully assembled geometry is admissible.
// Filters must be pure.
type Filter func(g models.Geometry) bool

// Space is an ordered set of dimensions plus pruning filters. The
// dimension order is fixed at construction, so enumeration order is
// stable for a given parameter set.
type Space struct {
	kind    models.Kind
	dims    []Dimension
	filters []Filter
}

// New creates a space over dims for geometries of kind.
func New(kind models.Kind, dims ...Dimension) *Space {
	return &Space{kind: kind, dims: dims}
}

// WithFilter adds a pruning filter
func (s *Space) WithFilter(f Filter) *Space {
	s.filters = append(s.filters, f)
	return s
}

// Kind returns the kind of every geometry in the space.
func (s *Space) Kind() models.Kind {
	return s.kind
}

// Dimensions returns the dimension names in enumeration order.
func (s *Space) Dimensions() []string {
	names := make([]string, len(s.dims))
	for i, d := range s.dims {
		names[i] = d.Name
	}
	return names
}

// Count returns the size of the unfiltered product, saturating at
// math.MaxInt.
func (s *Space) Count() int {
	if len(s.dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range s.dims {
		k := len(d.Values)
		if k == 0 {
			return 0
		}
		if n > math.MaxInt/k {
			n = math.MaxInt
			continue
		}
		n *= k
	}
	return n
}

// All returns a lazy sequence over the admissible geometries. Each call
// restarts the enumeration from the first combination; the last
// dimension varies fastest.
func (s *Space) All() iter.Seq[models.Geometry] {
	return func(yield func(models.Geometry) bool) {
		if s.Count() == 0 {
			return
		}
		idx := make([]int, len(s.dims))
		for {
			g := models.Geometry{Kind: s.kind}
			for i, d := range s.dims {
				d.Apply(&g, d.Values[idx[i]])
			}
			if s.admit(g) && !yield(g) {
				return
			}
			if !s.advance(idx) {
				return
			}
		}
	}
}

func (s *Space) admit(g models.Geometry) bool {
	for _, f := range s.filters {
		if !f(g) {
			return false
		}
	}
	return true
}

// advance steps the odometer; false once every combination was visited.
func (s *Space) advance(idx []int) bool {
	for i := len(idx) - 1; i >= 0; i-- {
		idx[i]++
		if idx[i] < len(s.dims[i].Values) {
			return true
		}
		idx[i] = 0
	}
	return false
}

// Values expands an inclusive range into floor((max-min)/step)+1 values.
// min > max yields no values. A non-positive step, or a range with more
// than limit values, is an error. A non-positive limit selects
// config.DefaultMaxCandidates.
func Values(field string, r config.Range, limit int) ([]float64, error) {
	if err := config.ValidateRange(field, r); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = config.DefaultMaxCandidates
	}
	count := config.RangeCount(r)
	if count == 0 {
		return nil, nil
	}
	if count > float64(limit) {
		return nil, &config.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("range expands to %.0f values, above max_candidates %d", count, limit),
		}
	}
	out := make([]float64, int(count))
	for i := range out {
		out[i] = utils.Round(r.Min+float64(i)*r.Step, 9)
	}
	return out, nil
}

// RangeDimension builds a dimension from a range of at most limit values.
func RangeDimension(name string, r config.Range, limit int, apply func(*models.Geometry, float64)) (Dimension, error) {
	values, err := Values(name, r, limit)
	if err != nil {
		return Dimension{}, err
	}
	return Dimension{Name: name, Values: values, Apply: apply}, nil
}

// ListDimension builds a dimension from explicit values. An empty list
// collapses to the single value fallback.
func ListDimension(name string, values []float64, fallback float64, apply func(*models.Geometry, float64)) Dimension {
	if len(values) == 0 {
		values = []float64{fallback}
	}
	return Dimension{Name: name, Values: append([]float64(nil), values...), Apply: apply}
}

func rangeDims(limit int, specs ...rangeSpec) ([]Dimension, error) {
	dims := make([]Dimension, 0, len(specs))
	for _, spec := range specs {
		d, err := RangeDimension(spec.name, spec.r, limit, spec.apply)
		if err != nil {
			return nil, fmt.Errorf("dimension %s: %w", spec.name, err)
		}
		dims = append(dims, d)
	}
	return dims, nil
}

type rangeSpec struct {
	name  string
	r     config.Range
	apply func(*models.Geometry, float64)
}
