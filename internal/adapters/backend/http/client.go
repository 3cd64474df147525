// Package backendhttp talks to the job backend's REST endpoints.
package backendhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/bnema/buswork-cli/internal/ports"
)

const (
	LoginPath    = "/auth/login"
	RegisterPath = "/auth/register"
	APIPrefix    = "/api/"

	SessionHeader = "X-Client-Session"

	maxResponseBytes = 1 << 20
	maxMessageRunes  = 200
)

// StatusError is a server-side failure (5xx) on an auth call. It is reported
// as a transport failure, not a rejection.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	// SessionID is sent as X-Client-Session for correlation in backend logs.
	SessionID string
	UserAgent string
}

var _ ports.Backend = Client{}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c Client) Login(ctx context.Context, username, password string) (string, error) {
	status, body, err := c.post(ctx, LoginPath, "", credentialsRequest{Username: username, Password: password})
	if err != nil {
		return "", err
	}

	if status != http.StatusOK {
		return "", authFailure(domain.ErrAuthRejected, status, body)
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: decode login response: %w", domain.ErrTransport, err)
	}
	if payload.Token == "" {
		return "", fmt.Errorf("%w: login response missing token", domain.ErrTransport)
	}

	return payload.Token, nil
}

func (c Client) Register(ctx context.Context, username, password string) (string, error) {
	status, body, err := c.post(ctx, RegisterPath, "", credentialsRequest{Username: username, Password: password})
	if err != nil {
		return "", err
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return "", authFailure(domain.ErrRegistrationRejected, status, body)
	}

	// The token is optional; an empty or non-JSON body just means none.
	var payload tokenResponse
	if len(bytes.TrimSpace(body)) > 0 {
		_ = json.Unmarshal(body, &payload)
	}

	return payload.Token, nil
}

func (c Client) Dispatch(ctx context.Context, credential domain.Credential, command domain.JobCommand) (string, error) {
	status, body, err := c.post(ctx, APIPrefix+url.PathEscape(command.Name), credential.Token, nil)
	if err != nil {
		return "", err
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return "", &domain.Rejection{Kind: domain.ErrDispatchRejected, Status: status, Message: extractMessage(status, body)}
	}

	var payload messageResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message, nil
	}
	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "{") {
		return truncate(text), nil
	}

	return fmt.Sprintf("%s accepted", command), nil
}

func (c Client) post(ctx context.Context, path, token string, payload any) (int, []byte, error) {
	endpoint, err := buildAPIURL(c.BaseURL, path)
	if err != nil {
		return 0, nil, err
	}

	var reqBody io.Reader = http.NoBody
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.SessionID != "" {
		req.Header.Set(SessionHeader, c.SessionID)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: post %s: %w", domain.ErrTransport, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read %s response: %w", domain.ErrTransport, path, err)
	}

	return resp.StatusCode, body, nil
}

func (c Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	return context.WithTimeout(ctx, requestTimeout)
}

// authFailure maps a non-success auth response: 4xx is the backend refusing,
// anything else is a server or protocol failure.
func authFailure(kind error, status int, body []byte) error {
	message := extractMessage(status, body)
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		return &domain.Rejection{Kind: kind, Status: status, Message: message}
	}
	return fmt.Errorf("%w: %w", domain.ErrTransport, &StatusError{StatusCode: status, Message: message})
}

func extractMessage(status int, body []byte) string {
	var payload messageResponse
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "<") {
		return truncate(text)
	}

	return http.StatusText(status)
}

func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxMessageRunes {
		return text
	}
	return string(runes[:maxMessageRunes]) + "…"
}

func buildAPIURL(baseURL string, path string) (string, error) {
	if baseURL == "" {
		return "", errors.New("api base url is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("api base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("api base url host is required")
	}

	parsed.Path = strings.TrimRight(parsed.Path, "/") + path
	return parsed.String(), nil
}
