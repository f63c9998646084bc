package retention

import (
	"fmt"
	"math"
)

// RangeViolationError reports a model input or output outside its documented
// range. A computed probability outside [0, 1] means the model itself is
// wrong; it is surfaced, never clamped away.
type RangeViolationError struct {
	Quantity string
	Value    float64
	Min      float64
	Max      float64
}

func (e *RangeViolationError) Error() string {
	if math.IsInf(e.Max, 1) {
		return fmt.Sprintf("retention: %s = %v, want >= %v", e.Quantity, e.Value, e.Min)
	}
	return fmt.Sprintf("retention: %s = %v outside [%v, %v]", e.Quantity, e.Value, e.Min, e.Max)
}
