package proxypool

import "errors"

var (
	// ErrInvalidSource reports an empty, unreadable or malformed proxy source.
	ErrInvalidSource = errors.New("proxypool: invalid source")

	// ErrNoProxiesAvailable reports that the active set is empty.
	ErrNoProxiesAvailable = errors.New("proxypool: no proxies available")

	// ErrUnknownStrategy reports an unrecognized rotation strategy name.
	ErrUnknownStrategy = errors.New("proxypool: unknown rotation strategy")
)
