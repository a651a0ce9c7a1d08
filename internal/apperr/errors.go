// Package apperr holds the sentinel errors shared by every mdql layer.
package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrQuerySyntax      = errors.New("query syntax error")
	ErrUnknownPredicate = errors.New("unknown predicate")
	ErrInvalidPredicate = errors.New("invalid predicate value")
	ErrSectionNotFound  = errors.New("section not found")
	ErrInvalidMutation  = errors.New("invalid mutation")
	ErrNoIndex          = errors.New("task index not available")
	ErrInvalidPath      = errors.New("invalid path")
)
