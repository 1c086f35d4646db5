package pointfield

import "errors"

var (
	// ErrCapacityExceeded is returned by SetPositions when the supplied
	// data does not fit in the current buffer capacity. The buffer
	// contents are left untouched.
	ErrCapacityExceeded = errors.New("pointfield: position data exceeds buffer capacity")

	// ErrAlreadyMapped is returned by MapPositions when the position
	// buffer is already mapped and has not been closed yet.
	ErrAlreadyMapped = errors.New("pointfield: position buffer already mapped")

	// ErrMapped is returned by operations that require an unmapped
	// buffer (draws, Resize, SetPositions) while a mapping is open.
	ErrMapped = errors.New("pointfield: position buffer is mapped")
)
