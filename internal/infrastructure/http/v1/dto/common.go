// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"stockledger/internal/core/id"
)

// --- List Response ---

// ListResponse wraps list results.
type ListResponse struct {
	Items any `json:"items"`
	Count int `json:"count"`
}

// NewListResponse creates a list response. Count reflects the returned page,
// not the total; ledger history endpoints page by limit/offset.
func NewListResponse(items any, count int) ListResponse {
	return ListResponse{Items: items, Count: count}
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Success Response ---

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
