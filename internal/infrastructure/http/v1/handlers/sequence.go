package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"docnum/internal/core/numerator"
	"docnum/internal/infrastructure/http/v1/dto"
)

// SequenceService is the numbering surface exposed over HTTP.
type SequenceService interface {
	Next(ctx context.Context, t numerator.DocumentType) (numerator.Number, error)
	AllocateN(ctx context.Context, t numerator.DocumentType, n int) ([]int64, error)
	Current(ctx context.Context, t numerator.DocumentType) (int64, error)
	Rebase(ctx context.Context, t numerator.DocumentType, floor int64) (int64, error)
	Counters(ctx context.Context) ([]numerator.SequenceCounter, error)
	Format(t numerator.DocumentType) numerator.FormatConfig
}

// SequenceHandler handles HTTP requests for document number sequences.
type SequenceHandler struct {
	*BaseHandler
	service SequenceService
}

// NewSequenceHandler creates a new sequence handler.
func NewSequenceHandler(base *BaseHandler, service SequenceService) *SequenceHandler {
	return &SequenceHandler{
		BaseHandler: base,
		service:     service,
	}
}

// RegisterRoutes registers sequence endpoints on rg.
func (h *SequenceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	seq := rg.Group("/sequences")
	{
		seq.GET("", h.List)
		seq.GET("/:type", h.Get)
		seq.POST("/:type/next", h.Next)
		seq.POST("/:type/batch", h.Batch)
		seq.PUT("/:type/floor", h.Floor)
	}
	rg.GET("/document-types", h.DocumentTypes)
}

// Next handles POST /sequences/:type/next
func (h *SequenceHandler) Next(c *gin.Context) {
	t, ok := h.DocumentType(c)
	if !ok {
		return
	}

	num, err := h.service.Next(c.Request.Context(), t)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromNumber(num))
}

// Batch handles POST /sequences/:type/batch
func (h *SequenceHandler) Batch(c *gin.Context) {
	t, ok := h.DocumentType(c)
	if !ok {
		return
	}

	var req dto.BatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	nums, err := h.service.AllocateN(c.Request.Context(), t, req.Count)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.NewBatchResponse(t, nums))
}

// Get handles GET /sequences/:type
func (h *SequenceHandler) Get(c *gin.Context) {
	t, ok := h.DocumentType(c)
	if !ok {
		return
	}

	cur, err := h.service.Current(c.Request.Context(), t)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.SequenceResponse{DocumentType: t.String(), LastIssued: cur})
}

// Floor handles PUT /sequences/:type/floor
func (h *SequenceHandler) Floor(c *gin.Context) {
	t, ok := h.DocumentType(c)
	if !ok {
		return
	}

	var req dto.FloorRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cur, err := h.service.Rebase(c.Request.Context(), t, *req.Floor)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.SequenceResponse{DocumentType: t.String(), LastIssued: cur})
}

// List handles GET /sequences
func (h *SequenceHandler) List(c *gin.Context) {
	counters, err := h.service.Counters(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.SequenceResponse, 0, len(counters))
	for _, ctr := range counters {
		items = append(items, dto.FromCounter(ctr))
	}
	h.OK(c, dto.NewListResponse(items))
}

// DocumentTypes handles GET /document-types
func (h *SequenceHandler) DocumentTypes(c *gin.Context) {
	types := numerator.DocumentTypes()
	items := make([]dto.DocumentTypeResponse, 0, len(types))
	for _, t := range types {
		f := h.service.Format(t)
		items = append(items, dto.DocumentTypeResponse{
			DocumentType: t.String(),
			Prefix:       f.Prefix,
			IncludeYear:  f.IncludeYear,
			PadWidth:     f.PadWidth,
		})
	}
	h.OK(c, dto.NewListResponse(items))
}
