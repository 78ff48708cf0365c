package validator

import "errors"

var (
	// ErrInvalidConfig reports an unusable orchestrator configuration or
	// request. Fatal, surfaced immediately, never retried.
	ErrInvalidConfig = errors.New("validator: invalid config")

	// ErrProxyExhausted ends a run: the pool stayed empty even after one
	// reload attempt.
	ErrProxyExhausted = errors.New("validator: proxy pool exhausted")

	// ErrTransient marks a retryable collaborator failure. Implementations
	// wrap it so the cause stays visible:
	// fmt.Errorf("%w: %v", validator.ErrTransient, cause).
	ErrTransient = errors.New("validator: transient failure")

	// ErrNotFound marks a target account that does not exist. It is not a
	// system fault; the run short-circuits to a suspicious zero score.
	ErrNotFound = errors.New("validator: account not found")
)
