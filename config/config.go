// Package config loads the versioned scenario parameter matrices that drive
// the check batteries. The matrices are specification data, not logic: a new
// specification version ships as a new embedded YAML file.
package config

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed scenarios/*.yaml
var scenarioFS embed.FS

// Scenarios holds the parameter matrices for one specification version.
type Scenarios struct {
	Version string `yaml:"version"`

	Limit struct {
		Valid   []int `yaml:"valid"`
		Invalid []int `yaml:"invalid"`
		Max     int   `yaml:"max"`
	} `yaml:"limit"`

	BBox struct {
		Valid   []string  `yaml:"valid"`
		Invalid []string  `yaml:"invalid"`
		Probe   []float64 `yaml:"probe"`
	} `yaml:"bbox"`

	Datetime struct {
		Valid   []string `yaml:"valid"`
		Invalid []string `yaml:"invalid"`
	} `yaml:"datetime"`

	Pagination struct {
		Limit int `yaml:"limit"`
	} `yaml:"pagination"`

	IDs struct {
		SampleLimit int `yaml:"sample_limit"`
	} `yaml:"ids"`

	Collections struct {
		SampleLimit int `yaml:"sample_limit"`
	} `yaml:"collections"`
}

// Load returns the scenario matrices for a specification version.
func Load(version string) (*Scenarios, error) {
	data, err := scenarioFS.ReadFile("scenarios/" + version + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("no scenario configuration for version %q: %w", version, err)
	}

	var s Scenarios
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario configuration %q: %w", version, err)
	}
	if s.Version != version {
		return nil, fmt.Errorf("scenario configuration %q declares version %q", version, s.Version)
	}
	return &s, nil
}

// MustLoad is Load for process-start configuration that is known to exist.
func MustLoad(version string) *Scenarios {
	s, err := Load(version)
	if err != nil {
		panic(err)
	}
	return s
}
