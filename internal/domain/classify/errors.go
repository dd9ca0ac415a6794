package classify

import "errors"

// ErrInvalidThresholds is returned when percentile bands are not strictly
// increasing inside (0, 100) or a warning band is not nested in them.
var ErrInvalidThresholds = errors.New("invalid classification thresholds")
