package dto

import (
	"strings"
	"time"

	"logiref/internal/domain/reference"
)

// AsliRequest is the body of POST /references/asli. An empty body means count 1.
type AsliRequest struct {
	Count *int `json:"count"`
}

// ExternaRequest is the body of POST /references/externa.
// The Spanish field names of the legacy clients are accepted as aliases.
type ExternaRequest struct {
	Client  string `json:"client"`
	Cliente string `json:"cliente"`
	Species string `json:"species"`
	Especie string `json:"especie"`
	Count   *int   `json:"count"`
}

// ClientName returns client, falling back to cliente.
func (r ExternaRequest) ClientName() string {
	if strings.TrimSpace(r.Client) != "" {
		return r.Client
	}
	return r.Cliente
}

// SpeciesName returns species, falling back to especie.
func (r ExternaRequest) SpeciesName() string {
	if strings.TrimSpace(r.Species) != "" {
		return r.Species
	}
	return r.Especie
}

// AllocateRequest is the body of POST /references/:scheme for configured schemes.
type AllocateRequest struct {
	Client  string `json:"client"`
	Species string `json:"species"`
	Count   *int   `json:"count"`
}

// AsliResponse carries a single identifier for count 1 and a list otherwise.
type AsliResponse struct {
	RefAsli     string   `json:"refAsli,omitempty"`
	RefAsliList []string `json:"refAsliList,omitempty"`
}

// NewAsliResponse unwraps a singleton list.
func NewAsliResponse(refs []string) AsliResponse {
	if len(refs) == 1 {
		return AsliResponse{RefAsli: refs[0]}
	}
	return AsliResponse{RefAsliList: refs}
}

// ExternaResponse carries a single identifier for count 1 and a list otherwise.
type ExternaResponse struct {
	RefExterna  string   `json:"refExterna,omitempty"`
	RefExternas []string `json:"refExternas,omitempty"`
}

// NewExternaResponse unwraps a singleton list.
func NewExternaResponse(refs []string) ExternaResponse {
	if len(refs) == 1 {
		return ExternaResponse{RefExterna: refs[0]}
	}
	return ExternaResponse{RefExternas: refs}
}

// AllocationResponse is the generic allocation result. References is always a list.
type AllocationResponse struct {
	Scheme        string     `json:"scheme"`
	GroupKey      string     `json:"groupKey,omitempty"`
	References    []string   `json:"references"`
	ReservedUntil *time.Time `json:"reservedUntil,omitempty"`
	SkippedRows   int        `json:"skippedRows"`
}

// FromAllocation maps a domain allocation. Previews carry no reservation deadline.
func FromAllocation(a *reference.Allocation) AllocationResponse {
	resp := AllocationResponse{
		Scheme:      a.Scheme,
		GroupKey:    a.GroupKey,
		References:  a.References,
		SkippedRows: a.Skipped,
	}
	if !a.ReservedUntil.IsZero() {
		until := a.ReservedUntil
		resp.ReservedUntil = &until
	}
	return resp
}

// PreviewQuery holds the query parameters of GET /references/:scheme/preview.
type PreviewQuery struct {
	Count   *int   `form:"count"`
	Client  string `form:"client"`
	Species string `form:"species"`
}

// SchemeResponse describes a configured scheme.
type SchemeResponse struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Prefix    string `json:"prefix,omitempty"`
	Separator string `json:"separator,omitempty"`
	PadWidth  int    `json:"padWidth"`
	Season    string `json:"season,omitempty"`
	Source    string `json:"source"`
	PageSize  int    `json:"pageSize"`
}

// FromScheme maps a domain scheme.
func FromScheme(s reference.Scheme) SchemeResponse {
	return SchemeResponse{
		Name:      s.Name,
		Kind:      string(s.Kind),
		Prefix:    s.Prefix,
		Separator: s.Separator,
		PadWidth:  s.PadWidth,
		Season:    s.Season,
		Source:    s.Source.Table + "." + s.Source.Column,
		PageSize:  s.PageSize,
	}
}
