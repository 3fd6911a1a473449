// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// VersionConflictResponse is returned with 409 so clients can merge and retry.
type VersionConflictResponse struct {
	Error           string `json:"error"`
	Code            string `json:"code"`
	ExpectedVersion int    `json:"expected_version"`
	CurrentVersion  int    `json:"current_version"`
}

// MessageResponse acknowledges an operation that has no resource to return.
type MessageResponse struct {
	Message string `json:"message"`
}
