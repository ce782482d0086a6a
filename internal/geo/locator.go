// Package geo wraps the one-shot geolocation provider. A location is a
// nice-to-have for a scan, never a requirement: failures and timeouts
// degrade to "no location".
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"parksign-service/internal/domain/parking"
)

const locateTimeout = 5 * time.Second

type Locator interface {
	// Locate returns the current position or an error; callers treat
	// any error as "no location".
	Locate(ctx context.Context) (*parking.Coordinates, error)
}

// HTTPLocator queries a JSON position endpoint, e.g. a companion app's
// local position service.
type HTTPLocator struct {
	endpoint string
	http     *http.Client
}

func NewHTTPLocator(endpoint string) *HTTPLocator {
	return &HTTPLocator{
		endpoint: endpoint,
		http:     &http.Client{Timeout: locateTimeout},
	}
}

func (l *HTTPLocator) Locate(ctx context.Context) (*parking.Coordinates, error) {
	ctx, cancel := context.WithTimeout(ctx, locateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("position endpoint returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var coords parking.Coordinates
	if err := json.Unmarshal(body, &coords); err != nil {
		return nil, fmt.Errorf("decode position: %w", err)
	}
	return &coords, nil
}
