// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package zoho

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/zohosync/internal/config"
	"github.com/tomtom215/zohosync/internal/metrics"
)

// TokenSource returns an OAuth access token for a Zoho service.
type TokenSource interface {
	AccessToken(ctx context.Context, service Service) (string, error)
}

// OAuthTokenSource exchanges a per-service refresh token for an access token
// with one POST to the Zoho accounts endpoint. Tokens are not cached; each
// job run performs its own exchange.
type OAuthTokenSource struct {
	httpClient    *http.Client
	accountsURL   string
	clientID      string
	clientSecret  string
	refreshTokens map[Service]string
}

// NewOAuthTokenSource creates a token source from the Zoho configuration.
func NewOAuthTokenSource(cfg *config.ZohoConfig, httpClient *http.Client) *OAuthTokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &OAuthTokenSource{
		httpClient:   httpClient,
		accountsURL:  cfg.AccountsURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		refreshTokens: map[Service]string{
			Books:     cfg.BooksRefreshToken,
			Inventory: cfg.InventoryRefreshToken,
		},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
}

// AccessToken performs the refresh-token exchange for service.
func (s *OAuthTokenSource) AccessToken(ctx context.Context, service Service) (token string, err error) {
	defer func() { metrics.RecordTokenRefresh(string(service), err) }()

	refresh := s.refreshTokens[service]
	if refresh == "" {
		return "", fmt.Errorf("no refresh token configured for %s", service)
	}

	params := url.Values{}
	params.Set("refresh_token", refresh)
	params.Set("client_id", s.clientID)
	params.Set("client_secret", s.clientSecret)
	params.Set("grant_type", "refresh_token")

	sep := "?"
	if strings.Contains(s.accountsURL, "?") {
		sep = "&"
	}
	reqURL := s.accountsURL + sep + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return "", fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if result.AccessToken == "" {
		if result.Error != "" {
			return "", fmt.Errorf("token exchange rejected: %s", result.Error)
		}
		return "", fmt.Errorf("token response has no access_token")
	}
	return result.AccessToken, nil
}
