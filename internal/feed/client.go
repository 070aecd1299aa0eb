// Package feed talks to the live driver-location feed.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goccy_json "github.com/goccy/go-json"

	"github.com/example/pickup-dispatch/internal/apperrors"
	"github.com/example/pickup-dispatch/internal/models"
)

// Client fetches the full driver-location snapshot.
type Client interface {
	Locations(ctx context.Context) ([]models.DriverLocation, error)
}

// HTTPClient reads the feed over HTTP. The feed answers with
// {"alfreds": [{"id": ..., "lat": ..., "lng": ..., "lastUpdate": ...}, ...]}.
type HTTPClient struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPClient(endpoint string) *HTTPClient {
	return &HTTPClient{Endpoint: endpoint, Client: &http.Client{Timeout: 5 * time.Second}}
}

// Locations pulls one snapshot. Any transport failure or payload the feed
// contract does not allow (missing "alfreds" key, non-numeric coordinates)
// comes back as ErrUpstreamUnavailable. No retries; the caller decides.
func (c *HTTPClient) Locations(ctx context.Context) ([]models.DriverLocation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUpstreamUnavailable, err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: feed answered %d", apperrors.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var envelope struct {
		Alfreds *[]models.DriverLocation `json:"alfreds"`
	}
	if err := goccy_json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", apperrors.ErrUpstreamUnavailable, err)
	}
	if envelope.Alfreds == nil {
		return nil, fmt.Errorf("%w: payload missing alfreds key", apperrors.ErrUpstreamUnavailable)
	}
	return *envelope.Alfreds, nil
}
