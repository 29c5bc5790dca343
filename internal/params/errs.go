package params

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is the root of every configuration failure in this package.
	ErrConfig = errors.New("params: configuration error")

	ErrUnknownVariant = fmt.Errorf("%w: unknown model type", ErrConfig)
	ErrIncomplete     = fmt.Errorf("%w: not all parameters defined", ErrConfig)
	ErrDuplicate      = fmt.Errorf("%w: parameter defined twice", ErrConfig)
	ErrMalformed      = fmt.Errorf("%w: malformed parameter entry", ErrConfig)

	// ErrUnknownParameter is a lookup of a name outside the variant's schema.
	ErrUnknownParameter = errors.New("params: unknown parameter")
)
