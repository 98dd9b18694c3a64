// Package validationsvc is a thin client for the validation service, which
// signs tickets so gate scanners can verify them offline.
package validationsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ScalabilityIssues/ticket-service/internal/apperrors"
	"github.com/ScalabilityIssues/ticket-service/internal/tickets/wire"
)

// TokenSource supplies M2M bearer tokens; nil disables authentication.
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

type signRequest struct {
	Ticket wire.Ticket `json:"ticket"`
}

type signResponse struct {
	Credential []byte `json:"credential"`
}

// SignTicket requests a signed credential for the given ticket. Remote
// failures propagate unmodified, no retry.
func (c *Client) SignTicket(ctx context.Context, ticket wire.Ticket) ([]byte, error) {
	payload, err := json.Marshal(signRequest{Ticket: ticket})
	if err != nil {
		return nil, apperrors.Internal("failed to encode sign request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sign", bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Internal("failed to create sign request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, apperrors.Internal("failed to obtain M2M token", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.Internal("validation service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		msg := fmt.Sprintf("validation service returned status %d", resp.StatusCode)
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
			msg = body.Error
		}
		return nil, apperrors.FromStatusCode(resp.StatusCode, msg)
	}

	var signed signResponse
	if err := json.NewDecoder(resp.Body).Decode(&signed); err != nil {
		return nil, apperrors.Internal("failed to decode sign response", err)
	}
	return signed.Credential, nil
}
