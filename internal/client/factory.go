package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"factory-hook/internal/config"
	"factory-hook/internal/factory"
)

// ErrNoSessionObtained is returned when the login call yields no token.
var ErrNoSessionObtained = errors.New("no session token obtained")

// APIError is a non-success response from a remote API.
type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("received non-success status code %d from %s", e.StatusCode, e.URL)
}

// FactoryClient implements FactoryAPI over HTTP/JSON
type FactoryClient struct {
	httpClient *http.Client
}

// NewFactoryClient creates a new provisioning service client
func NewFactoryClient(cfg *config.Config) *FactoryClient {
	slog.Debug("Initializing factory client",
		"skip_tls", cfg.FactorySkipTLS,
		"timeout", cfg.HTTPTimeout,
	)

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	if cfg.FactorySkipTLS {
		slog.Warn("TLS verification disabled for factory client")
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}

	return &FactoryClient{httpClient: httpClient}
}

// NewFactoryClientWithHTTP creates a client around an existing http.Client
func NewFactoryClientWithHTTP(httpClient *http.Client) *FactoryClient {
	return &FactoryClient{httpClient: httpClient}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Value string `json:"value"`
}

// Authenticate logs in on the provisioning service. A single attempt is made.
func (c *FactoryClient) Authenticate(ctx context.Context, baseURL, username, password string) (Session, error) {
	endpoint := apiURL(baseURL, "/auth/login", nil)
	slog.Debug("Authenticating on provisioning service", "url", endpoint, "username", username)

	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return Session{}, fmt.Errorf("error marshaling login request: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Session{}, err
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		slog.Warn("No session token obtained", "username", username)
		return Session{}, ErrNoSessionObtained
	}

	var resp loginResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		slog.Error("Failed to decode login response", "error", err, "url", endpoint)
		return Session{}, fmt.Errorf("error decoding login response: %w", err)
	}
	if resp.Value == "" {
		slog.Warn("No session token obtained", "username", username)
		return Session{}, ErrNoSessionObtained
	}

	slog.Debug("Session obtained", "username", username, "token", "***")
	return Session{Token: resp.Value}, nil
}

// ResolveOwnerID fetches the current user object but always resolves to an
// empty owner id, so every creator filter is sent empty.
// TODO: read the id from the user object once lookups are meant to be owner-scoped.
func (c *FactoryClient) ResolveOwnerID(ctx context.Context, baseURL, username string) (string, error) {
	endpoint := apiURL(baseURL, "/user", nil)
	slog.Debug("Resolving owner id", "url", endpoint, "username", username)

	raw, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		slog.Warn("No remote user found", "username", username, "error", err)
		return "", nil
	}

	var user map[string]interface{}
	if err := json.Unmarshal(raw, &user); err != nil || user == nil {
		slog.Warn("No remote user found", "username", username)
		return "", nil
	}

	return "", nil
}

// FindByName searches factories by exact name and creator. The remote
// service's ordering is returned unchanged.
func (c *FactoryClient) FindByName(ctx context.Context, baseURL, name, ownerID string, session Session) ([]factory.Factory, error) {
	query := url.Values{}
	query.Set("name", name)
	query.Set("creator.userId", ownerID)
	query.Set("token", session.Token)
	endpoint := apiURL(baseURL, "/factory/find", query)

	slog.Debug("Searching factories", "factory_name", name, "owner_id", ownerID)

	raw, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var factories []factory.Factory
	if len(bytes.TrimSpace(raw)) == 0 {
		return factories, nil
	}
	if err := json.Unmarshal(raw, &factories); err != nil {
		slog.Error("Failed to decode factory search response", "error", err, "factory_name", name)
		return nil, fmt.Errorf("error decoding factory search response: %w", err)
	}

	slog.Debug("Factory search completed", "factory_name", name, "owner_id", ownerID, "count", len(factories))
	return factories, nil
}

// Create posts a new factory and returns the created resource as sent back
// by the service.
func (c *FactoryClient) Create(ctx context.Context, baseURL string, f factory.Factory, session Session) (factory.Factory, error) {
	query := url.Values{}
	query.Set("token", session.Token)
	endpoint := apiURL(baseURL, "/factory", query)

	body, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("error marshaling factory: %w", err)
	}

	slog.Debug("Creating factory", "factory_name", f.Name(), "policy", f.CreatePolicy())
	raw, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}

	var created factory.Factory
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &created); err != nil {
			slog.Error("Failed to decode created factory", "error", err, "factory_name", f.Name())
			return nil, fmt.Errorf("error decoding created factory: %w", err)
		}
	}
	if created == nil {
		created = factory.Factory{}
	}

	slog.Info("Factory created", "factory_name", f.Name(), "factory_id", created.ID())
	return created, nil
}

// Delete removes a factory by id. Success is the absence of a transport or status error.
func (c *FactoryClient) Delete(ctx context.Context, baseURL, id string, session Session) error {
	query := url.Values{}
	query.Set("token", session.Token)
	endpoint := apiURL(baseURL, "/factory/"+url.PathEscape(id), query)

	slog.Debug("Deleting factory", "factory_id", id)
	if _, err := c.do(ctx, http.MethodDelete, endpoint, nil); err != nil {
		return err
	}

	slog.Info("Factory deleted", "factory_id", id)
	return nil
}

func (c *FactoryClient) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		slog.Error("Failed to create HTTP request", "error", err, "url", redact(endpoint))
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("Failed to send HTTP request", "error", err, "method", method, "url", redact(endpoint))
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	slog.Debug("Received response from provisioning service",
		"method", method,
		"url", redact(endpoint),
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("Provisioning service returned error status",
			"status_code", resp.StatusCode,
			"method", method,
			"url", redact(endpoint),
		)
		return nil, &APIError{StatusCode: resp.StatusCode, URL: redact(endpoint)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	return raw, nil
}

func apiURL(baseURL, path string, query url.Values) string {
	endpoint := strings.TrimRight(baseURL, "/") + "/api" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

// redact masks the session token in URLs before they reach logs or errors.
func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	query := u.Query()
	if query.Has("token") {
		query.Set("token", "***")
		u.RawQuery = query.Encode()
	}
	return u.String()
}
