// Package reference implements allocation of shipment reference identifiers.
//
// Two schemes are supported: a flat scheme (A0001, A0002, ...) and a composite
// scheme where a per-group counter follows a prefix derived from client and
// species (FAS2526KIW001). Both share the same contract: read the identifiers
// already present, pick the lowest free sequence numbers, and reserve them in
// the same serializable transaction.
package reference

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"logiref/internal/core/numerator"
)

// Kind selects how a scheme derives its identifier prefix.
type Kind string

const (
	KindFlat      Kind = "flat"
	KindComposite Kind = "composite"
)

// Built-in scheme names exposed over HTTP.
const (
	SchemeAsli    = "asli"
	SchemeExterna = "externa"
)

// DefaultPageSize is the number of rows fetched per page when scanning the source column.
const DefaultPageSize = 1000

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Source names the table and column holding identifiers already in use.
type Source struct {
	Table  string
	Column string
}

// Validate rejects names that cannot be safely interpolated into SQL.
func (s Source) Validate() error {
	if !identPattern.MatchString(s.Table) {
		return fmt.Errorf("invalid source table %q", s.Table)
	}
	if !identPattern.MatchString(s.Column) || strings.Contains(s.Column, ".") {
		return fmt.Errorf("invalid source column %q", s.Column)
	}
	return nil
}

// Scheme describes one identifier family.
type Scheme struct {
	Name      string
	Kind      Kind
	Prefix    string // flat only
	Separator string
	PadWidth  int
	Season    string // composite only
	Source    Source
	PageSize  int
}

// AsliScheme is the flat scheme backed by registros.ref_asli.
func AsliScheme() Scheme {
	return Scheme{
		Name:     SchemeAsli,
		Kind:     KindFlat,
		Prefix:   numerator.DefaultFlatPrefix,
		PadWidth: numerator.DefaultFlatPadWidth,
		Source:   Source{Table: "registros", Column: "ref_asli"},
		PageSize: DefaultPageSize,
	}
}

// ExternaScheme is the composite client+species scheme backed by registros.ref_cliente.
func ExternaScheme() Scheme {
	return Scheme{
		Name:     SchemeExterna,
		Kind:     KindComposite,
		PadWidth: numerator.DefaultCompositePadWidth,
		Season:   numerator.DefaultSeasonCode,
		Source:   Source{Table: "registros", Column: "ref_cliente"},
		PageSize: DefaultPageSize,
	}
}

// DefaultSchemes returns the schemes used when no configuration file is given.
func DefaultSchemes() []Scheme {
	return []Scheme{AsliScheme(), ExternaScheme()}
}

// Validate checks the scheme definition.
func (s Scheme) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("scheme name is required")
	}
	switch s.Kind {
	case KindFlat:
		if strings.TrimSpace(s.Prefix) == "" {
			return fmt.Errorf("scheme %s: flat scheme requires a prefix", s.Name)
		}
	case KindComposite:
	default:
		return fmt.Errorf("scheme %s: unknown kind %q", s.Name, s.Kind)
	}
	if s.PadWidth <= 0 {
		return fmt.Errorf("scheme %s: pad width must be positive", s.Name)
	}
	if s.PageSize <= 0 {
		return fmt.Errorf("scheme %s: page size must be positive", s.Name)
	}
	if err := s.Source.Validate(); err != nil {
		return fmt.Errorf("scheme %s: %w", s.Name, err)
	}
	return nil
}

// Group resolves the group key and identifier format for a request.
// The flat scheme has a single group with an empty key.
func (s Scheme) Group(client, species string) (string, numerator.Format) {
	if s.Kind == KindComposite {
		prefix := numerator.GroupPrefix(client, species, s.Season)
		return prefix, numerator.CompositeFormat(prefix, s.Separator, s.PadWidth)
	}
	return "", numerator.Format{
		Prefix:    strings.ToUpper(s.Prefix),
		Separator: s.Separator,
		PadWidth:  s.PadWidth,
	}
}

// Request asks for Count identifiers of a scheme. Client and Species are
// required for composite schemes and ignored otherwise.
type Request struct {
	Scheme  string
	Client  string
	Species string
	Count   int
}

// Reservation is one identifier held in the reservation ledger.
type Reservation struct {
	ID         uuid.UUID `db:"id"`
	Scheme     string    `db:"scheme"`
	GroupKey   string    `db:"group_key"`
	Seq        int64     `db:"seq"`
	Reference  string    `db:"reference"`
	ReservedBy string    `db:"reserved_by"`
	ReservedAt time.Time `db:"reserved_at"`
	ExpiresAt  time.Time `db:"expires_at"`
}

// Allocation is the result of a successful (or previewed) allocation.
type Allocation struct {
	Scheme     string
	GroupKey   string
	References []string
	Numbers    []int64
	// Skipped counts source rows ignored because they did not match the format.
	Skipped       int
	ReservedUntil time.Time
	Attempts      int
}
