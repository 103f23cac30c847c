package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery signals a malformed question or search query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidContent signals an indexing request that cannot be embedded.
	ErrInvalidContent = errors.New("invalid content")
	// ErrUnauthorized signals a missing or invalid tenant identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden signals a tenant acting on content owned by another tenant.
	ErrForbidden = errors.New("forbidden")
	// ErrVectorDimMismatch signals a vector whose length differs from the collection dimension.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrZeroVector signals an attempt to store or search the embedding-failure sentinel.
	ErrZeroVector = errors.New("zero vector")
	// ErrIndexUnavailable signals that the vector index could not serve a request.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingFailed signals that a text produced the zero-vector sentinel.
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationFailed signals a generative model failure or malformed completion.
	ErrGenerationFailed = errors.New("generation failed")
)
