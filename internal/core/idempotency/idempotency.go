// Package idempotency defines the contract for replaying responses of retried
// mutating requests carrying X-Idempotency-Key.
package idempotency

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Status is the lifecycle state of a key.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StaleAfter is how long a pending key may sit before another request may take it over.
const StaleAfter = time.Minute

// Replay is a stored HTTP response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store persists idempotency keys.
type Store interface {
	// AcquireKey returns (nil, nil) when the caller owns the key and should run the
	// request, a Replay when the request already completed, or an error when the
	// key is in flight or was used for a different request.
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*Replay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	// ReleaseKey drops a pending key so the same request may be sent again.
	ReleaseKey(ctx context.Context, key string) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// Retryable reports whether a failed response may succeed on a resend and must
// therefore not be stored as final: conflicts and server-side failures.
func Retryable(statusCode int) bool {
	return statusCode == http.StatusConflict || statusCode >= http.StatusInternalServerError
}

// NormalizeStatus defaults a missing status to 200.
func NormalizeStatus(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}

// NormalizeContentType defaults a missing content type to JSON.
func NormalizeContentType(ct string) string {
	if ct == "" {
		return "application/json"
	}
	return ct
}

// EncodeBody marshals response to JSON; nil stays nil.
func EncodeBody(response any) ([]byte, error) {
	if response == nil {
		return nil, nil
	}
	b, err := json.Marshal(response)
	if err != nil {
		return nil, err
	}
	return b, nil
}
