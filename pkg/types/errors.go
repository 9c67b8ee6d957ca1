package types

import "errors"

// Store errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidID         = errors.New("invalid record ID")
	ErrInvalidRecord     = errors.New("invalid record")
	ErrInvalidCollection = errors.New("invalid collection name")
	ErrNotAttached       = errors.New("store is not attached")
	ErrAlreadyAttached   = errors.New("store is already attached")
)

// View errors.
var (
	ErrViewNotFound       = errors.New("view not found")
	ErrInvalidView        = errors.New("invalid view definition")
	ErrInvalidPageSize    = errors.New("page size is not one of the configured options")
	ErrUnknownFilterField = errors.New("field is not filterable")
	ErrInvalidFilter      = errors.New("filter value is not allowed")
)
