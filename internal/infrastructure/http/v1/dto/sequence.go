package dto

import (
	"time"

	"docnum/internal/core/numerator"
)

// --- Requests ---

// BatchRequest reserves a block of numbers.
type BatchRequest struct {
	Count int `json:"count" binding:"required,min=1"`
}

// FloorRequest raises a sequence to at least Floor.
type FloorRequest struct {
	Floor *int64 `json:"floor" binding:"required,min=0"`
}

// --- Responses ---

// NumberResponse is a single allocated number.
type NumberResponse struct {
	DocumentType string `json:"documentType"`
	Number       int64  `json:"number"`
	Formatted    string `json:"formatted"`
}

// FromNumber creates NumberResponse from numerator.Number.
func FromNumber(n numerator.Number) NumberResponse {
	return NumberResponse{
		DocumentType: n.DocumentType.String(),
		Number:       n.Value,
		Formatted:    n.Formatted,
	}
}

// BatchResponse is a contiguous block of allocated numbers.
type BatchResponse struct {
	DocumentType string  `json:"documentType"`
	Numbers      []int64 `json:"numbers"`
	First        int64   `json:"first"`
	Last         int64   `json:"last"`
}

// NewBatchResponse creates BatchResponse for a non-empty ascending block.
func NewBatchResponse(t numerator.DocumentType, nums []int64) BatchResponse {
	return BatchResponse{
		DocumentType: t.String(),
		Numbers:      nums,
		First:        nums[0],
		Last:         nums[len(nums)-1],
	}
}

// SequenceResponse reports the last issued number of a sequence.
type SequenceResponse struct {
	DocumentType string     `json:"documentType"`
	LastIssued   int64      `json:"lastIssued"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// FromCounter creates SequenceResponse from numerator.SequenceCounter.
func FromCounter(c numerator.SequenceCounter) SequenceResponse {
	resp := SequenceResponse{
		DocumentType: c.DocumentType.String(),
		LastIssued:   c.LastIssued,
	}
	if !c.UpdatedAt.IsZero() {
		at := c.UpdatedAt
		resp.UpdatedAt = &at
	}
	return resp
}

// DocumentTypeResponse describes a recognized document type.
type DocumentTypeResponse struct {
	DocumentType string `json:"documentType"`
	Prefix       string `json:"prefix"`
	IncludeYear  bool   `json:"includeYear"`
	PadWidth     int    `json:"padWidth"`
}
