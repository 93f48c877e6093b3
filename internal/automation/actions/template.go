package actions

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/brandops/platform-backend/internal/automation"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.\[\]-]+)\s*\}\}`)

// interpolate substitutes {{path}} placeholders in a string with values from
// the trigger scope. Unresolvable placeholders are left as-is so a typo is
// visible in the output instead of silently blank.
func interpolate(template string, scope map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		path := strings.TrimSpace(strings.Trim(match, "{}"))
		value, ok := automation.LookupPath(scope, path)
		if !ok {
			return match
		}
		switch v := value.(type) {
		case string:
			return v
		case float64:
			if v == float64(int64(v)) {
				return fmt.Sprintf("%d", int64(v))
			}
			return fmt.Sprintf("%g", v)
		default:
			return fmt.Sprintf("%v", v)
		}
	})
}

// interpolateValue applies interpolation recursively through params, so nested
// payload templates work for structured action params.
func interpolateValue(value any, scope map[string]any) any {
	switch v := value.(type) {
	case string:
		return interpolate(v, scope)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = interpolateValue(item, scope)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = interpolateValue(item, scope)
		}
		return out
	default:
		return value
	}
}
