package automation

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/brandops/platform-backend/pkg/enums"
	"github.com/brandops/platform-backend/pkg/types"
)

// Evaluate reports whether the payload satisfies the condition config. It is
// total: any malformed config, operator, path, or payload degrades to a
// non-match instead of an error, because it runs inline on the delivery path.
//
// A nil config always matches. When both all and any are present, both
// branches must hold. An empty all list is vacuously true; an empty any list
// is vacuously false.
func Evaluate(cfg *types.ConditionConfig, payload map[string]any) bool {
	if cfg == nil {
		return true
	}
	if cfg.All != nil {
		for _, leaf := range cfg.All {
			if !evaluateLeaf(leaf, payload) {
				return false
			}
		}
	}
	if cfg.Any != nil {
		matched := false
		for _, leaf := range cfg.Any {
			if evaluateLeaf(leaf, payload) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func evaluateLeaf(leaf types.Condition, payload map[string]any) bool {
	resolved, ok := resolvePath(payload, leaf.Path)
	if !ok {
		// An absent value is "not equal" to any present expectation.
		return leaf.Op == enums.OperatorNeq && leaf.Value != nil
	}

	switch leaf.Op {
	case enums.OperatorEq:
		return deepEqual(resolved, leaf.Value)
	case enums.OperatorNeq:
		return !deepEqual(resolved, leaf.Value)
	case enums.OperatorGt:
		left, lok := toNumber(resolved)
		right, rok := toNumber(leaf.Value)
		return lok && rok && left > right
	case enums.OperatorLt:
		left, lok := toNumber(resolved)
		right, rok := toNumber(leaf.Value)
		return lok && rok && left < right
	case enums.OperatorIncludes:
		return includes(resolved, leaf.Value)
	default:
		return false
	}
}

// LookupPath resolves a dot/bracket accessor against a trigger scope. Action
// handlers use it to interpolate event values into their params.
func LookupPath(root map[string]any, path string) (any, bool) {
	return resolvePath(root, path)
}

// resolvePath walks a dot/bracket accessor (for example "items[0].sku")
// through nested maps and slices. It returns false for any missing key,
// out-of-range index, or type mismatch instead of panicking.
func resolvePath(root any, path string) (any, bool) {
	if strings.TrimSpace(path) == "" {
		return nil, false
	}
	current := root
	for _, segment := range splitPath(path) {
		if current == nil {
			return nil, false
		}
		if segment.index >= 0 {
			seq, ok := toSlice(current)
			if !ok || segment.index >= len(seq) {
				return nil, false
			}
			current = seq[segment.index]
			continue
		}
		obj, ok := toMap(current)
		if !ok {
			return nil, false
		}
		value, ok := obj[segment.key]
		if !ok {
			return nil, false
		}
		current = value
	}
	return current, true
}

type pathSegment struct {
	key   string
	index int
}

func splitPath(path string) []pathSegment {
	var segments []pathSegment
	for _, part := range strings.Split(path, ".") {
		for {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				if part != "" {
					segments = append(segments, pathSegment{key: part, index: -1})
				}
				break
			}
			if open > 0 {
				segments = append(segments, pathSegment{key: part[:open], index: -1})
			}
			closing := strings.IndexByte(part, ']')
			if closing <= open {
				// Malformed bracket; treat the remainder as a plain key so the
				// lookup fails instead of panicking.
				segments = append(segments, pathSegment{key: part[open:], index: -1})
				break
			}
			idx, err := strconv.Atoi(part[open+1 : closing])
			if err != nil || idx < 0 {
				segments = append(segments, pathSegment{key: part[open : closing+1], index: -1})
			} else {
				segments = append(segments, pathSegment{index: idx})
			}
			part = part[closing+1:]
		}
	}
	return segments
}

func toMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case types.JSONMap:
		return v, true
	default:
		return nil, false
	}
}

func toSlice(value any) ([]any, bool) {
	if v, ok := value.([]any); ok {
		return v, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// deepEqual compares structurally, treating all numeric representations of the
// same quantity as equal (JSON decoding yields float64, rule authors may send
// ints).
func deepEqual(a, b any) bool {
	if an, ok := toNumber(a); ok {
		if bn, bok := toNumber(b); bok {
			return an == bn
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func includes(resolved, expected any) bool {
	if seq, ok := toSlice(resolved); ok {
		for _, element := range seq {
			if deepEqual(element, expected) {
				return true
			}
		}
		return false
	}
	if str, ok := resolved.(string); ok {
		if sub, ok := expected.(string); ok {
			return strings.Contains(str, sub)
		}
	}
	return false
}
