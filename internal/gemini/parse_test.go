package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parksign-service/internal/domain/parking"
)

const validResponse = `{
  "results": [
    {
      "direction": "left",
      "status": "ALLOWED",
      "canParkNow": true,
      "summary": "Parking allowed",
      "explanation": "Free parking on weekdays until 18:00.",
      "rules": ["Mon-Fri 08:00-18:00 free"],
      "permitRequired": false
    },
    {
      "direction": "right",
      "status": "FORBIDDEN",
      "canParkNow": false,
      "summary": "No parking",
      "explanation": "Loading zone to the right of the sign.",
      "rules": [],
      "permitRequired": false
    }
  ]
}`

func TestParseInterpretation(t *testing.T) {
	interp, err := parseInterpretation(validResponse)
	require.NoError(t, err)
	require.Len(t, interp.Results, 2)

	primary := interp.Primary()
	assert.Equal(t, parking.DirectionLeft, primary.Direction)
	assert.Equal(t, parking.StatusAllowed, primary.Status)
	assert.True(t, primary.CanParkNow)
	assert.Equal(t, parking.DirectionRight, interp.Results[1].Direction)
}

func TestParseInterpretationStripsMarkdownFences(t *testing.T) {
	fenced := "```json\n" + validResponse + "\n```"

	interp, err := parseInterpretation(fenced)
	require.NoError(t, err)
	assert.Len(t, interp.Results, 2)
}

func TestParseInterpretationUnknownNeverAllows(t *testing.T) {
	text := `{"results":[{"direction":"general","status":"UNKNOWN","canParkNow":true,"summary":"?","explanation":"?","rules":null,"permitRequired":false}]}`

	interp, err := parseInterpretation(text)
	require.NoError(t, err)

	r := interp.Primary()
	assert.Equal(t, parking.StatusUnknown, r.Status)
	assert.False(t, r.CanParkNow, "UNKNOWN must be coerced to not-parkable")
	assert.NotNil(t, r.Rules)
	assert.Empty(t, r.Rules)
}

func TestParseInterpretationRejectsBadPayloads(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"whitespace":       "   \n ",
		"not json":         "the sign says no parking",
		"empty results":    `{"results":[]}`,
		"missing results":  `{"diagnostic":{"code":"NO_SIGN","message":"no sign found"}}`,
		"bad direction":    `{"results":[{"direction":"up","status":"ALLOWED","canParkNow":true,"summary":"","explanation":"","rules":[],"permitRequired":false}]}`,
		"bad status":       `{"results":[{"direction":"left","status":"MAYBE","canParkNow":false,"summary":"","explanation":"","rules":[],"permitRequired":false}]}`,
		"fenced non-json":  "```json\nnope\n```",
		"truncated object": `{"results":[{"direction":"left`,
	}

	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseInterpretation(text)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestParseInterpretationKeepsDiagnostic(t *testing.T) {
	text := `{
      "results": [{"direction":"general","status":"UNKNOWN","canParkNow":false,"summary":"Unreadable","explanation":"Image too blurry.","rules":[],"permitRequired":false}],
      "diagnostic": {"code":"BLURRY","message":"The sign text is not legible.","suggestion":"Move closer and retake the photo."}
    }`

	interp, err := parseInterpretation(text)
	require.NoError(t, err)
	require.NotNil(t, interp.Diagnostic)
	assert.Equal(t, parking.DiagnosticBlurry, interp.Diagnostic.Code)
	assert.Equal(t, "Move closer and retake the photo.", interp.Diagnostic.Suggestion)
}
