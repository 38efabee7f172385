package domain

import "errors"

var (
	// ErrUnauthorized means the bearer token was missing or wrong.
	ErrUnauthorized = errors.New("invalid or missing token")
	// ErrInvalidQuery means the request parameters cannot be served.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrDispatchFailed means the job queue did not accept a task.
	ErrDispatchFailed = errors.New("task dispatch failed")
)
