package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"logiref/internal/domain/reference"
	"logiref/internal/infrastructure/http/v1/dto"
)

// ReferenceService is the part of reference.Service used over HTTP.
type ReferenceService interface {
	Allocate(ctx context.Context, req reference.Request) (*reference.Allocation, error)
	Preview(ctx context.Context, req reference.Request) (*reference.Allocation, error)
	Schemes() []reference.Scheme
}

// ReferenceHandler serves reference allocation endpoints.
type ReferenceHandler struct {
	*BaseHandler
	service ReferenceService
}

// NewReferenceHandler creates a new reference handler.
func NewReferenceHandler(base *BaseHandler, service ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{BaseHandler: base, service: service}
}

// AllocateAsli handles POST /references/asli.
// Responds {"refAsli": "A0007"} for a single identifier, {"refAsliList": [...]} otherwise.
func (h *ReferenceHandler) AllocateAsli(c *gin.Context) {
	var req dto.AsliRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	alloc, err := h.service.Allocate(c.Request.Context(), reference.Request{
		Scheme: reference.SchemeAsli,
		Count:  dto.CountOrDefault(req.Count),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewAsliResponse(alloc.References))
}

// AllocateExterna handles POST /references/externa.
func (h *ReferenceHandler) AllocateExterna(c *gin.Context) {
	var req dto.ExternaRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	alloc, err := h.service.Allocate(c.Request.Context(), reference.Request{
		Scheme:  reference.SchemeExterna,
		Client:  req.ClientName(),
		Species: req.SpeciesName(),
		Count:   dto.CountOrDefault(req.Count),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewExternaResponse(alloc.References))
}

// Allocate handles POST /references/:scheme for any configured scheme.
func (h *ReferenceHandler) Allocate(c *gin.Context) {
	var req dto.AllocateRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	alloc, err := h.service.Allocate(c.Request.Context(), reference.Request{
		Scheme:  c.Param("scheme"),
		Client:  req.Client,
		Species: req.Species,
		Count:   dto.CountOrDefault(req.Count),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromAllocation(alloc))
}

// Preview handles GET /references/:scheme/preview.
func (h *ReferenceHandler) Preview(c *gin.Context) {
	var q dto.PreviewQuery
	if !h.BindQuery(c, &q) {
		return
	}

	alloc, err := h.service.Preview(c.Request.Context(), reference.Request{
		Scheme:  c.Param("scheme"),
		Client:  q.Client,
		Species: q.Species,
		Count:   dto.CountOrDefault(q.Count),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromAllocation(alloc))
}

// ListSchemes handles GET /references/schemes.
func (h *ReferenceHandler) ListSchemes(c *gin.Context) {
	schemes := h.service.Schemes()
	out := make([]dto.SchemeResponse, 0, len(schemes))
	for _, s := range schemes {
		out = append(out, dto.FromScheme(s))
	}
	h.OK(c, gin.H{"items": out})
}
