package ledger

import "errors"

// ErrInvariantViolation marks a broken I1/I2 invariant. Per spec §7 this is
// a programmer error: it should never be reachable from the documented
// broker API, and callers are expected to treat it as a bug, not a
// business-rejection outcome.
var ErrInvariantViolation = errors.New("ledger invariant violation")
