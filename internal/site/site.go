// Package site serves soil profiles and design loads from a parsed site file.
package site

import (
	"context"
	"errors"
	"fmt"

	"github.com/towerworks/foundation-core/pkg/config"
	"github.com/towerworks/foundation-core/pkg/models"
)

var (
	// ErrProfileUnavailable is returned when a tower has no usable soil profile.
	ErrProfileUnavailable = errors.New("soil profile unavailable")
	// ErrLoadsUnavailable is returned when a tower's loads reference resolves to nothing.
	ErrLoadsUnavailable = errors.New("loads unavailable")
)

// Provider answers soil and loads lookups from an in-memory site. It
// satisfies optimizer.SoilProvider and optimizer.LoadsProvider.
type Provider struct {
	site *config.Site
}

// New creates a provider over s. The site must not be modified afterwards.
func New(s *config.Site) *Provider {
	return &Provider{site: s}
}

// Load parses the site file at path and returns a provider over it.
func Load(path string) (*Provider, error) {
	s, err := config.LoadSite(path)
	if err != nil {
		return nil, err
	}
	return New(s), nil
}

// Site returns the underlying site.
func (p *Provider) Site() *config.Site {
	return p.site
}

// Towers returns the site's tower list.
func (p *Provider) Towers() []models.Tower {
	return p.site.Towers
}

// Profile returns a copy of the tower's soil profile. A missing entry or
// one flagged invalid or unavailable yields ErrProfileUnavailable.
func (p *Provider) Profile(ctx context.Context, tower models.Tower) (models.SoilProfile, error) {
	if err := ctx.Err(); err != nil {
		return models.SoilProfile{}, err
	}
	entry, ok := p.site.Soils[tower.Name]
	if !ok {
		return models.SoilProfile{}, fmt.Errorf("%w: no soil entry for tower %s", ErrProfileUnavailable, tower.Name)
	}
	if !entry.Usable() {
		if entry.Note != "" {
			return models.SoilProfile{}, fmt.Errorf("%w: tower %s marked %s (%s)", ErrProfileUnavailable, tower.Name, entry.Status, entry.Note)
		}
		return models.SoilProfile{}, fmt.Errorf("%w: tower %s marked %s", ErrProfileUnavailable, tower.Name, entry.Status)
	}
	return entry.SoilProfile.Clone(), nil
}

// Loads returns the design loads referenced by the tower.
func (p *Provider) Loads(ctx context.Context, tower models.Tower) (models.Loads, error) {
	if err := ctx.Err(); err != nil {
		return models.Loads{}, err
	}
	l, ok := p.site.Loads[tower.LoadsKey()]
	if !ok {
		return models.Loads{}, fmt.Errorf("%w: no loads %q for tower %s", ErrLoadsUnavailable, tower.LoadsKey(), tower.Name)
	}
	return l, nil
}

// Accepting returns the names of towers that accept kind, in file order.
func (p *Provider) Accepting(kind models.Kind) []string {
	var out []string
	for _, t := range p.site.Towers {
		if t.Recommends(kind) {
			out = append(out, t.Name)
		}
	}
	return out
}
