// Package flightmngr is a thin client for the flight-manager service. It
// resolves a flight to its assigned plane and the plane to its cabin
// capacity; failures propagate to the caller with their remote
// classification, no retries.
package flightmngr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ScalabilityIssues/ticket-service/internal/apperrors"
	"github.com/ScalabilityIssues/ticket-service/internal/models"
)

// TokenSource supplies M2M bearer tokens for service-to-service calls. A
// nil source means unauthenticated calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Client struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
}

func NewClient(baseURL string, client *http.Client, tokens TokenSource) *Client {
	return &Client{baseURL: baseURL, client: client, tokens: tokens}
}

type flight struct {
	ID      string `json:"id"`
	PlaneID string `json:"plane_id"`
}

// GetPlaneDetails chains the two flightmngr lookups: flight to plane id,
// plane id to plane record.
func (c *Client) GetPlaneDetails(ctx context.Context, flightID string) (*models.Plane, error) {
	var f flight
	if err := c.getJSON(ctx, "/v1/flights/"+url.PathEscape(flightID), &f); err != nil {
		return nil, err
	}

	var plane models.Plane
	if err := c.getJSON(ctx, "/v1/planes/"+url.PathEscape(f.PlaneID), &plane); err != nil {
		return nil, err
	}
	return &plane, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return apperrors.Internal("failed to create flightmngr request", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return apperrors.Internal("failed to obtain M2M token", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.Internal("flightmngr unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.FromStatusCode(resp.StatusCode, remoteMessage(resp))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Internal("failed to decode flightmngr response", err)
	}
	return nil
}

// remoteMessage extracts the error envelope the platform services share,
// falling back to a status-line message.
func remoteMessage(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return body.Error
	}
	return fmt.Sprintf("flightmngr returned status %d", resp.StatusCode)
}
