package apperrors

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrEntityNotFound = errors.New("business entity not found")
	ErrEmptyUpload    = errors.New("upload contains no usable rows")
	ErrNoTextColumn   = errors.New("no recognizable text column in upload")
	ErrConflict       = errors.New("conflict")
)
