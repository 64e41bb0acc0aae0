package domain

import "errors"

var (
	// ErrContentNotFound signals a missing content item in the host store.
	ErrContentNotFound = errors.New("content not found")
	// ErrEmbeddingNotFound signals that no vector is stored for a content item.
	ErrEmbeddingNotFound = errors.New("embedding not found")
	// ErrNotConfigured signals missing provider credentials.
	ErrNotConfigured = errors.New("embedding provider not configured")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrUnknownProvider signals a provider name with no registered factory.
	ErrUnknownProvider = errors.New("unknown embedding provider")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidInput signals a malformed request parameter.
	ErrInvalidInput = errors.New("invalid input")
)
