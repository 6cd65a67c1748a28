package api

import "fmt"

// AuthError is returned when the token endpoint answers with a non-success
// status. No token is cached when this happens.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("token request failed with status %d: %s", e.StatusCode, e.Body)
}

// UploadAuthError is returned when the upload endpoint rejects the bearer
// token with 401. The coordinator treats it as a stale credential and
// retries once after invalidating the cache.
type UploadAuthError struct {
	Body string
}

func (e *UploadAuthError) Error() string {
	return fmt.Sprintf("upload rejected with status 401: %s", e.Body)
}

// UploadError is returned for any other non-2xx upload response. It is
// terminal for the attempt; no retry happens.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed with status %d: %s", e.StatusCode, e.Body)
}
