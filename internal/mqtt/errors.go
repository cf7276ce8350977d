package mqtt

import "errors"

// ErrMalformed is returned when a fixed header or variable header cannot be
// parsed from the supplied bytes (truncated buffer, bad continuation byte
// on a variable-length integer, and similar).
var ErrMalformed = errors.New("mqtt: malformed packet")

// ErrUnknownType is returned when the fixed header names a packet type
// outside the fifteen known kinds.
var ErrUnknownType = errors.New("mqtt: unknown packet type")
