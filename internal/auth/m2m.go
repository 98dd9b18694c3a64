package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ScalabilityIssues/ticket-service/internal/config"
	"github.com/ScalabilityIssues/ticket-service/internal/logger"
)

const m2mTokenKey = "ticketsvc:m2m-token"

// cacheMargin is shaved off the token lifetime so a cached token is never
// handed out moments before it expires.
const cacheMargin = 30 * time.Second

type m2mTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenProvider fetches machine-to-machine tokens for calls to the other
// platform services, caching them in Redis until shortly before expiry.
type TokenProvider struct {
	cfg    config.AuthConfig
	client *http.Client
	cache  *redis.Client
	logger *logger.Logger
}

func NewTokenProvider(cfg config.AuthConfig, client *http.Client, cache *redis.Client, log *logger.Logger) *TokenProvider {
	return &TokenProvider{cfg: cfg, client: client, cache: cache, logger: log}
}

// Token returns a valid M2M access token, from cache when possible.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	if p.cache != nil {
		if token, err := p.cache.Get(ctx, m2mTokenKey).Result(); err == nil && token != "" {
			return token, nil
		}
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", p.cfg.ClientID)
	data.Set("client_secret", p.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting M2M token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %s", resp.Status)
	}

	var tokenResp m2mTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}

	if p.cache != nil {
		if ttl := tokenTTL(tokenResp); ttl > 0 {
			if err := p.cache.Set(ctx, m2mTokenKey, tokenResp.AccessToken, ttl).Err(); err != nil {
				p.logger.Warn("AUTH", fmt.Sprintf("Failed to cache M2M token: %v", err))
			}
		}
	}

	return tokenResp.AccessToken, nil
}

// tokenTTL derives a cache lifetime from the token response, falling back
// to the exp claim when the endpoint omits expires_in.
func tokenTTL(resp m2mTokenResponse) time.Duration {
	if resp.ExpiresIn > 0 {
		return time.Duration(resp.ExpiresIn)*time.Second - cacheMargin
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(resp.AccessToken, claims); err != nil {
		return 0
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	return time.Until(exp.Time) - cacheMargin
}
