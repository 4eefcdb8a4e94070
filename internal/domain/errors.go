package domain

import "errors"

var (
	// ErrInvalidRequest signals an empty or missing refinement request.
	ErrInvalidRequest = errors.New("request is required")
	// ErrInvalidUserID signals a missing or malformed user id.
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrLLMProviderError signals a language-model provider failure or an unusable reply.
	ErrLLMProviderError = errors.New("llm provider error")
	// ErrCircuitOpen signals that calls to the provider are short-circuited.
	ErrCircuitOpen = errors.New("llm circuit open")
	// ErrCatalogMismatch signals that prediction ids cannot be reconciled with the catalog.
	ErrCatalogMismatch = errors.New("catalog id mismatch")
)
