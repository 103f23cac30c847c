package recall

import "github.com/kailas-cloud/recall/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidQuery           = domain.ErrInvalidQuery
	ErrInvalidContent         = domain.ErrInvalidContent
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrIndexUnavailable       = domain.ErrIndexUnavailable
	ErrRateLimited            = domain.ErrRateLimited
	ErrEmbeddingFailed        = domain.ErrEmbeddingFailed
	ErrEmbeddingQuotaExceeded = domain.ErrEmbeddingQuotaExceeded
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrGenerationFailed       = domain.ErrGenerationFailed
)
