package service

import "errors"

var (
	ErrRateLimited        = errors.New("rate limit active for task")
	ErrInvalidTask        = errors.New("task must match [A-Za-z0-9][A-Za-z0-9._:-]{0,119}")
	ErrLockNotFound       = errors.New("task has never been granted")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
