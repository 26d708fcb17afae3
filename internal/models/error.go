package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	// Collaborator errors
	ErrSinkUnavailable  = errors.New("audit sink unavailable")
	ErrDispatcherClosed = errors.New("dispatcher is closed")
	ErrQueueFull        = errors.New("queue is full")
	ErrNotifierConfig   = errors.New("alert notifier is not configured")
)
