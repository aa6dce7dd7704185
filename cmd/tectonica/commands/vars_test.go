package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVarSpecs(t *testing.T) {
	tests := map[string]struct {
		specs   []string
		expVars map[string]any
		expErr  bool
	}{
		"NAME=VALUE with a JSON number should parse typed": {
			specs:   []string{"n=42"},
			expVars: map[string]any{"n": float64(42)},
		},
		"NAME=VALUE with a JSON bool should parse typed": {
			specs:   []string{"flag=true"},
			expVars: map[string]any{"flag": true},
		},
		"NAME=VALUE with a JSON object should parse typed": {
			specs:   []string{`cfg={"a":1}`},
			expVars: map[string]any{"cfg": map[string]any{"a": float64(1)}},
		},
		"Non JSON values should fall back to the raw string": {
			specs:   []string{"greeting=hello there"},
			expVars: map[string]any{"greeting": "hello there"},
		},
		"Later entries should override earlier ones": {
			specs:   []string{"n=1", "n=2"},
			expVars: map[string]any{"n": float64(2)},
		},
		"No specs should give no vars": {
			specs:   nil,
			expVars: nil,
		},
		"Missing value should fail": {
			specs:  []string{"just_a_name"},
			expErr: true,
		},
		"Invalid name should fail": {
			specs:  []string{"1invalid=x"},
			expErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			vars, err := parseVarSpecs(tc.specs)

			if tc.expErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expVars, vars)
		})
	}
}
