package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// EmailClient posts a digest to a transactional email endpoint secured by
// a static access key. Delivery is best-effort by contract; the caller
// supplies the timeout.
type EmailClient struct {
	endpoint  string
	accessKey string
	fromName  string
	http      *http.Client
}

func NewEmailClient(endpoint, accessKey, fromName string) *EmailClient {
	return &EmailClient{
		endpoint:  endpoint,
		accessKey: accessKey,
		fromName:  fromName,
		http:      &http.Client{},
	}
}

type emailRequest struct {
	AccessKey string `json:"access_key"`
	Subject   string `json:"subject"`
	FromName  string `json:"from_name"`
	Email     string `json:"email"`
	Message   string `json:"message"`
}

func (c *EmailClient) Notify(ctx context.Context, subject, replyEmail, message string) error {
	payload, err := json.Marshal(emailRequest{
		AccessKey: c.accessKey,
		Subject:   subject,
		FromName:  c.fromName,
		Email:     replyEmail,
		Message:   message,
	})
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email endpoint returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
