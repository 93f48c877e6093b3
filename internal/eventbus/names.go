package eventbus

import (
	"fmt"
	"strings"
)

// Wildcard subscribes a handler to every event name.
const Wildcard = "*"

// ValidateName enforces the <module>.<verb> naming convention: at least two
// dot-separated segments of lowercase letters, digits, or dashes. The bus stays
// agnostic to which modules exist; only the shape is checked.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("event name is required")
	}
	segments := strings.Split(name, ".")
	if len(segments) < 2 {
		return fmt.Errorf("event name %q must be dot-namespaced (<module>.<verb>)", name)
	}
	for _, segment := range segments {
		if segment == "" {
			return fmt.Errorf("event name %q has an empty segment", name)
		}
		for _, r := range segment {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
				return fmt.Errorf("event name %q has invalid character %q", name, r)
			}
		}
	}
	return nil
}
