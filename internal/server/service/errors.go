package service

import "errors"

// Sentinel errors for the service layer. The API layer translates these
// into HTTP status codes and {"error": ...} payloads in one place.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrMissingName     = errors.New("missing name")
	ErrMissingType     = errors.New("missing type")
	ErrMissingData     = errors.New("missing data")
	ErrInvalidData     = errors.New("invalid data")
	ErrParentNotFound  = errors.New("parent not found")
	ErrParentNotFolder = errors.New("parent is not a folder")
	ErrFolderContent   = errors.New("a folder doesn't have content")
	ErrInvalidSize     = errors.New("invalid size")
	ErrMissingEmail    = errors.New("missing email")
	ErrMissingPassword = errors.New("missing password")
	ErrEmailExists     = errors.New("already exist")
)
