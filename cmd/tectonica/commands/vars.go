package commands

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var varNamePattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// parseVarSpecs parses NAME=VALUE specs into sandbox values. Values parse as
// JSON so numbers, booleans, null and composites come through typed; anything
// that is not valid JSON falls back to the raw string. Later entries override
// earlier ones.
func parseVarSpecs(specs []string) (map[string]any, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	vars := make(map[string]any, len(specs))
	for _, spec := range specs {
		name, raw, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("%q is not NAME=VALUE", spec)
		}
		if !varNamePattern.MatchString(name) {
			return nil, fmt.Errorf("%q is not a valid variable name", name)
		}

		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		vars[name] = v
	}

	return vars, nil
}
