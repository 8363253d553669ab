package engine

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	numberArray = map[string]any{"type": "array", "items": map[string]any{"type": "number"}}

	histogramSchema = gojsonschema.NewGoLoader(map[string]any{
		"type":     "object",
		"required": []any{"counts", "total"},
		"properties": map[string]any{
			"counts": map[string]any{"type": "array", "items": map[string]any{"type": "integer", "minimum": 0}},
			"total":  map[string]any{"type": "integer", "minimum": 0},
		},
	})

	topGuessesSchema = gojsonschema.NewGoLoader(map[string]any{
		"type":     "object",
		"required": []any{"items"},
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"word", "entropy"},
					"properties": map[string]any{
						"word":    map[string]any{"type": "string"},
						"entropy": map[string]any{"type": "number"},
					},
				},
			},
		},
	})

	// Points are only shape-checked as objects; invalid entries are filtered downstream.
	solveGroupsSchema = gojsonschema.NewGoLoader(map[string]any{
		"type":     "object",
		"required": []any{"groups"},
		"properties": map[string]any{
			"groups": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"group_confidence": numberArray,
			"points":           map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
			"variance":         numberArray,
			"lexical_boosted":  map[string]any{"type": "boolean"},
			"lexical_weight":   map[string]any{"type": "number"},
		},
	})

	speedSchema = gojsonschema.NewGoLoader(map[string]any{
		"type":     "object",
		"required": []any{"win_rate", "avg_guesses", "p99_ms"},
		"properties": map[string]any{
			"win_rate":    map[string]any{"type": "number"},
			"avg_guesses": map[string]any{"type": "number"},
			"p99_ms":      map[string]any{"type": "number"},
		},
	})

	stressSchema = gojsonschema.NewGoLoader(map[string]any{
		"type":     "object",
		"required": []any{"worst_ms", "avg_ms", "steps"},
		"properties": map[string]any{
			"worst_ms": map[string]any{"type": "number"},
			"avg_ms":   map[string]any{"type": "number"},
			"steps":    map[string]any{"type": "integer", "minimum": 0},
		},
	})
)

// validate checks a raw payload against a schema.
func validate(schema gojsonschema.JSONLoader, payload []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var details []string
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("payload failed validation: %s", strings.Join(details, "; "))
}
