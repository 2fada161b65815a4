package store

import "errors"

var (
	ErrNotConnected        = errors.New("store: not connected")
	ErrInvalidURL          = errors.New("store: invalid database url")
	ErrUnsupportedScheme   = errors.New("store: unsupported database scheme")
	ErrUnknownCommand      = errors.New("store: unknown command name")
	ErrGuildNotFound       = errors.New("store: guild not found")
	ErrDuplicatePermission = errors.New("store: permission already granted")
	ErrPermissionNotFound  = errors.New("store: permission not found")
)
