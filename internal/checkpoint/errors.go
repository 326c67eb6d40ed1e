package checkpoint

import "errors"

var (
	// ErrInvalidTargetID is returned for target ids that are not a single
	// path element.
	ErrInvalidTargetID = errors.New("invalid target id for checkpoint")

	// ErrCorrupt is returned when a checkpoint file cannot be decoded.
	ErrCorrupt = errors.New("corrupt checkpoint file")
)
