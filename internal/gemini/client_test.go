package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parksign-service/internal/domain/parking"
)

func testContext() ScanContext {
	return ScanContext{
		Image:   []byte{0xFF, 0xD8, 0xFF},
		Now:     time.Date(2025, 6, 12, 14, 30, 0, 0, time.UTC),
		Profile: parking.Profile{Email: "driver@example.com"},
	}
}

func candidateEnvelope(t *testing.T, text string) []byte {
	t.Helper()
	env := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

func TestInterpretRequiresCredential(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewClient("  ", "gemini-2.0-flash", zerolog.Nop())
	c.baseURL = srv.URL

	_, err := c.Interpret(context.Background(), testContext())
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Zero(t, calls.Load(), "no request may leave the process without a credential")
}

func TestInterpretRejectsEmptyImage(t *testing.T) {
	c := NewClient("key", "gemini-2.0-flash", zerolog.Nop())

	sc := testContext()
	sc.Image = nil
	_, err := c.Interpret(context.Background(), sc)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestInterpretParsesCandidateText(t *testing.T) {
	interpJSON := `{"results":[{"direction":"general","status":"FORBIDDEN","canParkNow":false,"summary":"No parking","explanation":"Tow-away zone.","rules":["No parking any time"],"permitRequired":false}]}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, ":generateContent")

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 2)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "DIRECTION DETECTION")
		require.NotNil(t, req.Contents[0].Parts[1].InlineData)
		assert.Equal(t, "image/jpeg", req.Contents[0].Parts[1].InlineData.MimeType)

		w.Write(candidateEnvelope(t, interpJSON))
	}))
	defer srv.Close()

	c := NewClient("key", "gemini-2.0-flash", zerolog.Nop())
	c.baseURL = srv.URL

	interp, err := c.Interpret(context.Background(), testContext())
	require.NoError(t, err)
	require.Len(t, interp.Results, 1)
	assert.Equal(t, parking.StatusForbidden, interp.Results[0].Status)
	assert.False(t, interp.Results[0].CanParkNow)
}

func TestInterpretFallsBackToV1(t *testing.T) {
	interpJSON := `{"results":[{"direction":"general","status":"ALLOWED","canParkNow":true,"summary":"OK","explanation":"Free parking.","rules":[],"permitRequired":false}]}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1beta/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(candidateEnvelope(t, interpJSON))
	}))
	defer srv.Close()

	c := NewClient("key", "gemini-2.0-flash", zerolog.Nop())
	c.baseURL = srv.URL

	interp, err := c.Interpret(context.Background(), testContext())
	require.NoError(t, err)
	assert.True(t, interp.Primary().CanParkNow)
}

func TestInterpretMapsServerErrorToNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("key", "gemini-2.0-flash", zerolog.Nop())
	c.baseURL = srv.URL

	_, err := c.Interpret(context.Background(), testContext())
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestInterpretMapsBadCandidateToValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(candidateEnvelope(t, "the sign is red"))
	}))
	defer srv.Close()

	c := NewClient("key", "gemini-2.0-flash", zerolog.Nop())
	c.baseURL = srv.URL

	_, err := c.Interpret(context.Background(), testContext())
	assert.ErrorIs(t, err, ErrValidation)
}

// Once the model has answered, a bad answer is final: the v1 fallback is
// for transport failures only, never a second chance after a parse
// failure.
func TestInterpretDoesNotRetryAfterBadAnswer(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write(candidateEnvelope(t, "not an interpretation"))
	}))
	defer srv.Close()

	c := NewClient("key", "gemini-2.0-flash", zerolog.Nop())
	c.baseURL = srv.URL

	_, err := c.Interpret(context.Background(), testContext())
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, int32(1), calls.Load(), "a validation failure must not trigger the endpoint fallback")
}

func TestInterpretMapsEmptyCandidatesToValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c := NewClient("key", "gemini-2.0-flash", zerolog.Nop())
	c.baseURL = srv.URL

	_, err := c.Interpret(context.Background(), testContext())
	assert.ErrorIs(t, err, ErrValidation)
}
