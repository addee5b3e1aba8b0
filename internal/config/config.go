// Package config loads the reference scheme definitions from YAML.
//
// The file is optional; without it the service runs with the two built-in
// schemes (asli and externa). Environment variables handled by the binaries
// take precedence over the allocation section.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"logiref/internal/domain/reference"
)

// File is the top-level YAML document.
type File struct {
	Season     string         `yaml:"season"`
	Allocation AllocationFile `yaml:"allocation"`
	Schemes    []SchemeFile   `yaml:"schemes"`
}

// AllocationFile tunes the allocation cycle. Durations use Go syntax ("24h", "25ms").
type AllocationFile struct {
	MaxRetries     *int   `yaml:"max_retries"`
	ReservationTTL string `yaml:"reservation_ttl"`
	RetryBackoff   string `yaml:"retry_backoff"`
	MaxCount       *int   `yaml:"max_count"`
}

// SchemeFile describes one scheme.
type SchemeFile struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	Prefix    string `yaml:"prefix"`
	Separator string `yaml:"separator"`
	PadWidth  int    `yaml:"pad_width"`
	Season    string `yaml:"season"`
	Table     string `yaml:"table"`
	Column    string `yaml:"column"`
	PageSize  int    `yaml:"page_size"`
}

// Load reads and parses path. An empty path yields an empty File (built-in defaults).
func Load(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty document decodes to io.EOF.
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &f, nil
}

// ResolveSchemes returns the validated scheme list. Built-in schemes not overridden by
// name in the file are kept; a file-level season applies to composite schemes
// that do not set their own.
func (f *File) ResolveSchemes() ([]reference.Scheme, error) {
	byName := make(map[string]reference.Scheme)
	var order []string
	for _, sc := range reference.DefaultSchemes() {
		byName[sc.Name] = sc
		order = append(order, sc.Name)
	}

	for i, sf := range f.Schemes {
		name := strings.TrimSpace(sf.Name)
		if name == "" {
			return nil, fmt.Errorf("schemes[%d]: name is required", i)
		}
		base, known := byName[name]
		if !known {
			base = reference.Scheme{Name: name, PageSize: reference.DefaultPageSize}
			order = append(order, name)
		}
		byName[name] = sf.apply(base)
	}

	out := make([]reference.Scheme, 0, len(order))
	for _, name := range order {
		sc := byName[name]
		if sc.Kind == reference.KindComposite && f.Season != "" && !f.hasSchemeSeason(name) {
			sc.Season = f.Season
		}
		if err := sc.Validate(); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func (f *File) hasSchemeSeason(name string) bool {
	for _, sf := range f.Schemes {
		if strings.TrimSpace(sf.Name) == name && sf.Season != "" {
			return true
		}
	}
	return false
}

func (sf SchemeFile) apply(sc reference.Scheme) reference.Scheme {
	if sf.Kind != "" {
		sc.Kind = reference.Kind(strings.ToLower(sf.Kind))
	}
	if sf.Prefix != "" {
		sc.Prefix = sf.Prefix
	}
	if sf.Separator != "" {
		sc.Separator = sf.Separator
	}
	if sf.PadWidth != 0 {
		sc.PadWidth = sf.PadWidth
	}
	if sf.Season != "" {
		sc.Season = sf.Season
	}
	if sf.Table != "" {
		sc.Source.Table = sf.Table
	}
	if sf.Column != "" {
		sc.Source.Column = sf.Column
	}
	if sf.PageSize != 0 {
		sc.PageSize = sf.PageSize
	}
	return sc
}

// ServiceConfig overlays the allocation section on the defaults.
func (f *File) ServiceConfig() (reference.Config, error) {
	cfg := reference.DefaultConfig()
	a := f.Allocation
	if a.MaxRetries != nil {
		if *a.MaxRetries < 0 {
			return cfg, fmt.Errorf("allocation.max_retries must not be negative")
		}
		cfg.MaxRetries = *a.MaxRetries
	}
	if a.MaxCount != nil {
		if *a.MaxCount < 0 {
			return cfg, fmt.Errorf("allocation.max_count must not be negative")
		}
		cfg.MaxCount = *a.MaxCount
	}
	if a.ReservationTTL != "" {
		d, err := time.ParseDuration(a.ReservationTTL)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("allocation.reservation_ttl: invalid duration %q", a.ReservationTTL)
		}
		cfg.ReservationTTL = d
	}
	if a.RetryBackoff != "" {
		d, err := time.ParseDuration(a.RetryBackoff)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("allocation.retry_backoff: invalid duration %q", a.RetryBackoff)
		}
		cfg.RetryBackoff = d
	}
	return cfg, nil
}
