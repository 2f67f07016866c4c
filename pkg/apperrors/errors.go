package apperrors

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrInvalidRole            = errors.New("invalid role")
	ErrImmutableFact          = errors.New("fact rows cannot be modified")
	ErrModelNotActive         = errors.New("no active semantic model")
	ErrQueryNotPermitted      = errors.New("query not permitted")
	ErrMissingParameter       = errors.New("missing parameter")
	ErrLLMNotConfigured       = errors.New("no llm provider configured")
	ErrCredentialsKeyMismatch = errors.New("credentials were encrypted with a different key")
)
