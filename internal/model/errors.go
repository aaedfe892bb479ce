package model

import (
	"emperror.dev/errors"
)

// Error kinds raised by the listener pipeline. Subkinds wrap these with
// errors.WithMessage, so errors.Is matches on both levels.
var (
	ErrInvalidArgument = errors.NewPlain("invalid argument")
	ErrConfiguration   = errors.NewPlain("invalid configuration")
)
