// Package api provides a client for the IBM App Connect REST API, covering
// token acquisition and BAR file uploads.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	tokenPath   = "/api/v1/tokens"
	barFilePath = "/api/v1/bar-files/"
)

// Credentials holds the instance identity sent on every App Connect call.
type Credentials struct {
	InstanceID   string
	ClientID     string
	ClientSecret string
	APIKey       string
}

// Client is a client for the App Connect REST API.
type Client struct {
	baseURL string
	creds   Credentials
	client  *http.Client
}

// NewClient creates a new App Connect client.
func NewClient(baseURL string, creds Credentials) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type tokenRequest struct {
	APIKey string `json:"apiKey"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// RequestToken exchanges the API key for a fresh bearer token.
// A non-success status yields an *AuthError carrying the status and body.
func (c *Client) RequestToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(tokenRequest{APIKey: c.creds.APIKey})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("X-IBM-Instance-Id", c.creds.InstanceID)
	req.Header.Set("X-IBM-Client-Id", c.creds.ClientID)
	req.Header.Set("X-IBM-Client-Secret", c.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		b, _ := io.ReadAll(resp.Body)
		return "", &AuthError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var result tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}
	return result.AccessToken, nil
}

// UploadBAR streams the file at path to the BAR file endpoint under fileName.
// The server stores BAR files under a ".bar" suffix appended to the given
// name, so "order-flow.bar" lands at /api/v1/bar-files/order-flow.bar.bar.
//
// A 401 yields *UploadAuthError, any other non-2xx yields *UploadError, and
// a transport failure is returned wrapped. On success the parsed response
// body is returned.
func (c *Client) UploadBAR(ctx context.Context, path, fileName, token string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bar file: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat bar file: %w", err)
	}

	target := c.baseURL + barFilePath + url.PathEscape(fileName) + ".bar"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, f)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("X-IBM-Instance-Id", c.creds.InstanceID)
	req.Header.Set("X-IBM-Client-Id", c.creds.ClientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		b, _ := io.ReadAll(resp.Body)
		return nil, &UploadAuthError{Body: string(b)}
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		b, _ := io.ReadAll(resp.Body)
		return nil, &UploadError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if errors.Is(err, io.EOF) {
			// Some deployments answer 2xx with an empty body.
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return result, nil
}
