package config

import "github.com/towerworks/foundation-core/pkg/models"

// Site is a batch input: the tower list plus the soil and load data the
// file-backed providers serve.
type Site struct {
	Name   string                  `yaml:"name"`
	Towers []models.Tower          `yaml:"towers"`
	Soils  map[string]SoilEntry    `yaml:"soils"`
	Loads  map[string]models.Loads `yaml:"loads"`
}

// SoilStatus marks whether a retrieved profile is usable.
type SoilStatus string

const (
	SoilOK          SoilStatus = "ok"
	SoilInvalid     SoilStatus = "invalid"
	SoilUnavailable SoilStatus = "unavailable"
)

// SoilEntry is one tower's soil investigation result.
type SoilEntry struct {
	Status SoilStatus `yaml:"status,omitempty"`
	Note   string     `yaml:"note,omitempty"`

	models.SoilProfile `yaml:",inline"`
}

// Usable reports whether the entry carries a profile marked valid.
func (e SoilEntry) Usable() bool {
	return e.Status == "" || e.Status == SoilOK
}
