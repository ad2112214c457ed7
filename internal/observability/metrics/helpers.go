package metrics

import (
	"github.com/echoguard/echoguard-go/internal/errors"
)

// categorizeError maps an error to a stable label value for error counters.
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}
	var enhanced *errors.EnhancedError
	if errors.As(err, &enhanced) && enhanced.Category != "" {
		return string(enhanced.Category)
	}
	return "unknown"
}
