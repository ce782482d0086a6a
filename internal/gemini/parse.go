package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"parksign-service/internal/domain/parking"
)

// parseInterpretation validates the model's text into a typed
// interpretation. Structured-output mode is requested, but the response
// is never trusted: it must parse, carry a non-empty results array, and
// stay within the enums.
func parseInterpretation(text string) (*parking.Interpretation, error) {
	cleaned := stripFences(strings.TrimSpace(text))
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", ErrValidation)
	}

	var interp parking.Interpretation
	if err := json.Unmarshal([]byte(cleaned), &interp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if len(interp.Results) == 0 {
		return nil, fmt.Errorf("%w: missing results", ErrValidation)
	}

	for i := range interp.Results {
		r := &interp.Results[i]
		if !r.Direction.Valid() {
			return nil, fmt.Errorf("%w: bad direction %q", ErrValidation, r.Direction)
		}
		if !r.Status.Valid() {
			return nil, fmt.Errorf("%w: bad status %q", ErrValidation, r.Status)
		}
		// The schema does not constrain the pair, so the client does:
		// an UNKNOWN verdict is never a green light.
		if r.Status == parking.StatusUnknown {
			r.CanParkNow = false
		}
		if r.Rules == nil {
			r.Rules = []string{}
		}
	}
	return &interp, nil
}

// stripFences unwraps a markdown code block if the model added one
// despite the JSON output mode.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 && strings.TrimSpace(s[:idx]) == "json" {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
