// Package v1alpha1 contains API types for the adsign system.
package v1alpha1

// APIVersion is the version string carried by every typed object
const APIVersion = "v1alpha1"

// TypeMeta describes an individual object's type and API version
type TypeMeta struct {
	// Kind is a string value representing the type of this object
	Kind string `json:"kind,omitempty"`
	// APIVersion defines the versioned schema of this object
	APIVersion string `json:"apiVersion,omitempty"`
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	// Code is a machine-readable error code such as NOT_FOUND or INVALID_STATE
	Code string `json:"code"`
	// Message is a human-readable description
	Message string `json:"message"`
	// RequestID correlates the response with server logs
	RequestID string `json:"requestId,omitempty"`
}

// ListResponse wraps lists of items with metadata
type ListResponse[T any] struct {
	// Items contains the listed objects
	Items []T `json:"items"`
	// TotalCount is the number of items returned
	TotalCount int `json:"totalCount"`
}

// NewList builds a ListResponse, never encoding a null items array
func NewList[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, TotalCount: len(items)}
}
