package recipient

import "errors"

// ErrInvalidTargeting is returned for a targeting rule that cannot be
// evaluated: an unknown rule, an individual rule with no ids, or a period
// whose start is after its end.
var ErrInvalidTargeting = errors.New("invalid targeting rule")
