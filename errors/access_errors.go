package errors

import "errors"

var (
	ErrInvalidAccessRequest = errors.New("invalid access request")
	ErrPolicyRetrieval      = errors.New("failed to retrieve applicable policies")
	ErrCacheUnavailable     = errors.New("cache backend unavailable")
	ErrInvalidAuditQuery    = errors.New("invalid audit query parameters")
)
