package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrInvalidInput indicates bad arguments from the caller, e.g. empty text
	ErrInvalidInput = goerr.New("invalid input")

	// ErrEmbeddingUnavailable indicates the embedding provider exhausted retries
	ErrEmbeddingUnavailable = goerr.New("embedding provider unavailable")

	// ErrStorageFailure indicates a durable write or read error in the store
	ErrStorageFailure = goerr.New("storage failure")

	// ErrIndexUnavailable indicates vector search is not provisioned. Search
	// treats this as a signal to fall back to text matching, not as a failure.
	ErrIndexUnavailable = goerr.New("vector index unavailable")

	// ErrAgentUnreachable indicates the agent collaborator could not be reached
	ErrAgentUnreachable = goerr.New("agent unreachable")

	// ErrMalformedResponse indicates an external service returned a response
	// that does not match its contract
	ErrMalformedResponse = goerr.New("malformed response")
)
