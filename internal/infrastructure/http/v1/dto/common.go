// Package dto provides Data Transfer Objects for API requests/responses.
package dto

// ErrorResponse is the JSON body rendered by middleware.ErrorHandler.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// CountResponse reports how many rows an operation affected.
type CountResponse struct {
	Count int64 `json:"count"`
}

// CountOrDefault returns *count, or 1 when the field was omitted.
// An explicit zero or negative value is passed through for validation.
func CountOrDefault(count *int) int {
	if count == nil {
		return 1
	}
	return *count
}
