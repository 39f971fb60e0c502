//go:build unit

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factory-hook/internal/config"
	"factory-hook/internal/factory"
)

// getTestConfig returns a test configuration for the factory client
func getTestConfig() *config.Config {
	cfg := config.Default()
	cfg.HTTPTimeout = 5 * time.Second
	return cfg
}

// TestFactoryClient_Authenticate tests the login call
func TestFactoryClient_Authenticate(t *testing.T) {
	tests := []struct {
		name             string
		mockResponseCode int
		mockResponseBody string
		expectedToken    string
		expectedErr      error
		expectError      bool
	}{
		{
			name:             "successful login",
			mockResponseCode: 200,
			mockResponseBody: `{"value": "tok-123"}`,
			expectedToken:    "tok-123",
		},
		{
			name:             "empty body",
			mockResponseCode: 200,
			mockResponseBody: ``,
			expectedErr:      ErrNoSessionObtained,
			expectError:      true,
		},
		{
			name:             "empty token value",
			mockResponseCode: 200,
			mockResponseBody: `{"value": ""}`,
			expectedErr:      ErrNoSessionObtained,
			expectError:      true,
		},
		{
			name:             "rejected credentials",
			mockResponseCode: 401,
			mockResponseBody: `{"message": "Authentication failed"}`,
			expectError:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/auth/login", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var credentials map[string]string
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&credentials))
				assert.Equal(t, "admin", credentials["username"])
				assert.Equal(t, "secret", credentials["password"])

				w.WriteHeader(tt.mockResponseCode)
				_, _ = w.Write([]byte(tt.mockResponseBody))
			}))
			defer mockServer.Close()

			client := NewFactoryClient(getTestConfig())
			session, err := client.Authenticate(context.Background(), mockServer.URL, "admin", "secret")

			if tt.expectError {
				assert.Error(t, err)
				if tt.expectedErr != nil {
					assert.ErrorIs(t, err, tt.expectedErr)
				}
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedToken, session.Token)
		})
	}
}

// TestFactoryClient_ResolveOwnerID pins that the owner filter always resolves empty
func TestFactoryClient_ResolveOwnerID(t *testing.T) {
	calls := 0
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/user", r.URL.Path)
		_, _ = w.Write([]byte(`{"id": "user-1", "email": "admin@example.com"}`))
	}))
	defer mockServer.Close()

	client := NewFactoryClient(getTestConfig())
	ownerID, err := client.ResolveOwnerID(context.Background(), mockServer.URL, "admin")

	require.NoError(t, err)
	assert.Equal(t, 1, calls, "the user object is still fetched")
	assert.Equal(t, "", ownerID, "owner id is never taken from the user object")
}

// TestFactoryClient_FindByName tests the factory search call
func TestFactoryClient_FindByName(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/factory/find", r.URL.Path)
		assert.Equal(t, "abc", r.URL.Query().Get("name"))
		assert.Equal(t, "", r.URL.Query().Get("creator.userId"))
		assert.True(t, r.URL.Query().Has("creator.userId"))
		assert.Equal(t, "tok", r.URL.Query().Get("token"))

		_, _ = w.Write([]byte(`[{"id": "f-1", "name": "abc"}, {"id": "f-2", "name": "abc"}]`))
	}))
	defer mockServer.Close()

	client := NewFactoryClient(getTestConfig())
	factories, err := client.FindByName(context.Background(), mockServer.URL, "abc", "", Session{Token: "tok"})

	require.NoError(t, err)
	require.Len(t, factories, 2)
	assert.Equal(t, "f-1", factories[0].ID(), "remote ordering is preserved")
}

// TestFactoryClient_Create tests factory creation
func TestFactoryClient_Create(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/factory", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("token"))

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ABC-1-develop-factory", body["name"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": "dev-1", "name": "ABC-1-develop-factory", "links": [{"rel": "accept-named", "href": "http://x/f?name=ABC-1-develop-factory"}]}`))
	}))
	defer mockServer.Close()

	client := NewFactoryClient(getTestConfig())
	created, err := client.Create(context.Background(), mockServer.URL+"/", factory.Factory{"name": "ABC-1-develop-factory"}, Session{Token: "tok"})

	require.NoError(t, err)
	assert.Equal(t, "dev-1", created.ID())
	url, ok := factory.NamedURL(created)
	assert.True(t, ok)
	assert.Equal(t, "http://x/f?name=ABC-1-develop-factory", url)
}

// TestFactoryClient_Delete tests factory deletion
func TestFactoryClient_Delete(t *testing.T) {
	tests := []struct {
		name             string
		mockResponseCode int
		expectError      bool
	}{
		{name: "successful deletion", mockResponseCode: 204},
		{name: "server error", mockResponseCode: 500, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/api/factory/dev-1", r.URL.Path)
				assert.Equal(t, "tok", r.URL.Query().Get("token"))
				w.WriteHeader(tt.mockResponseCode)
			}))
			defer mockServer.Close()

			client := NewFactoryClient(getTestConfig())
			err := client.Delete(context.Background(), mockServer.URL, "dev-1", Session{Token: "tok"})

			if tt.expectError {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.mockResponseCode, apiErr.StatusCode)
				assert.NotContains(t, apiErr.URL, "tok", "token is redacted")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFactoryClient_TransportError(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := mockServer.URL
	mockServer.Close()

	client := NewFactoryClient(getTestConfig())
	_, err := client.Authenticate(context.Background(), baseURL, "admin", "secret")
	assert.Error(t, err)
}
