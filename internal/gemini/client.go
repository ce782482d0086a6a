package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"parksign-service/internal/domain/parking"
)

var (
	// ErrConfiguration means the model credential is absent or blank.
	// It is raised before any network I/O is attempted.
	ErrConfiguration = errors.New("interpretation not configured")
	// ErrInvalidInput means the scan context cannot be sent at all.
	ErrInvalidInput = errors.New("invalid scan input")
	// ErrNetwork covers transport failures and non-2xx API responses.
	ErrNetwork = errors.New("interpretation request failed")
	// ErrValidation means the model answered but not with a usable
	// interpretation object.
	ErrValidation = errors.New("interpretation response invalid")
)

// ScanContext is everything forwarded to the vision model for one scan.
type ScanContext struct {
	Image    []byte
	Now      time.Time
	Profile  parking.Profile
	Location *parking.Coordinates
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
	ResponseSchema   *schema `json:"response_schema,omitempty"`
}

type generateRequest struct {
	GenerationConfig generationConfig `json:"generationConfig"`
	Contents         []content        `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client calls the Gemini generateContent endpoint with a structured
// output schema. It performs no persistence and no retries: either the
// full interpretation parses or the call is a failure.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(apiKey, model string, log zerolog.Logger) *Client {
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		baseURL: "https://generativelanguage.googleapis.com",
		http:    &http.Client{},
		log:     log,
	}
}

func (c *Client) Interpret(ctx context.Context, sc ScanContext) (*parking.Interpretation, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: model credential is missing", ErrConfiguration)
	}
	if len(sc.Image) == 0 {
		return nil, fmt.Errorf("%w: image is empty", ErrInvalidInput)
	}

	reqBody := generateRequest{
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   interpretationSchema(),
		},
		Contents: []content{
			{
				Role: "user",
				Parts: []part{
					{Text: buildPrompt(sc)},
					{InlineData: &inlineData{
						MimeType: "image/jpeg",
						Data:     base64.StdEncoding.EncodeToString(sc.Image),
					}},
				},
			},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrNetwork, err)
	}

	// v1beta carries the newest models; v1 is the fallback for
	// transport and HTTP-status failures only. Once the model has
	// answered, a bad answer is final.
	endpoints := []string{
		fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey),
		fmt.Sprintf("%s/v1/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey),
	}

	var lastErr error
	for _, ep := range endpoints {
		text, callErr := c.call(ctx, ep, payload)
		if callErr != nil {
			lastErr = callErr
			if errors.Is(callErr, ErrNetwork) {
				continue
			}
			return nil, callErr
		}
		return parseInterpretation(text)
	}
	return nil, lastErr
}

func (c *Client) call(ctx context.Context, url string, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn().Int("status", resp.StatusCode).Msg("vision API returned error status")
		return "", fmt.Errorf("%w: status %d", ErrNetwork, resp.StatusCode)
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return "", fmt.Errorf("%w: parse envelope: %v", ErrValidation, err)
	}
	if gr.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrNetwork, gr.Error.Message)
	}
	if len(gr.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates in response", ErrValidation)
	}
	for _, p := range gr.Candidates[0].Content.Parts {
		if p.Text != "" {
			return p.Text, nil
		}
	}
	return "", fmt.Errorf("%w: no text part in response", ErrValidation)
}
