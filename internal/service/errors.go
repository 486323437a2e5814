package service

import "errors"

var (
	// ErrStoreUnavailable wraps failures of the listings store.
	ErrStoreUnavailable = errors.New("listing store unavailable")
	// ErrIndexUnavailable wraps failures of the embedding service or vector index.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrMissingAPIKey is returned when the gateway is built without a key.
	ErrMissingAPIKey = errors.New("language model API key is not configured")
	// ErrUnsupportedModel is returned for model names outside the model table.
	ErrUnsupportedModel = errors.New("unsupported language model")
)
