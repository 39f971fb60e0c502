//go:build unit

package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRedisRepository_Get tests single setting reads
func TestRedisRepository_Get(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		key           string
		setupMock     func(mock redismock.ClientMock)
		expectError   bool
		expectedValue string
	}{
		{
			name: "existing setting",
			key:  "codenvy.admin.instanceurl",
			setupMock: func(mock redismock.ClientMock) {
				mock.ExpectGet("codenvy.admin.instanceurl").SetVal("http://x")
			},
			expectedValue: "http://x",
		},
		{
			name: "missing setting",
			key:  "codenvy.admin.username",
			setupMock: func(mock redismock.ClientMock) {
				mock.ExpectGet("codenvy.admin.username").RedisNil()
			},
			expectedValue: "",
		},
		{
			name: "redis failure",
			key:  "codenvy.admin.password",
			setupMock: func(mock redismock.ClientMock) {
				mock.ExpectGet("codenvy.admin.password").SetErr(errors.New("connection refused"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := redismock.NewClientMock()
			repo := NewRedisRepository(client)

			tt.setupMock(mock)

			value, err := repo.Get(ctx, tt.key)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedValue, value)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// TestRedisRepository_PutSettings tests storing all settings at once
func TestRedisRepository_PutSettings(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	repo := NewRedisRepository(client)

	mock.ExpectMSet(
		"codenvy.admin.instanceurl", "http://x",
		"codenvy.admin.username", "a",
		"codenvy.admin.password", "b",
	).SetVal("OK")

	err := repo.PutSettings(ctx, "codenvy.admin", ConnectionSettings{InstanceURL: "http://x", Username: "a", Password: "b"})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestLoadSettings tests reading the three connection settings through the store
func TestLoadSettings(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	repo := NewRedisRepository(client)

	mock.ExpectGet("codenvy.admin.instanceurl").SetVal("http://x")
	mock.ExpectGet("codenvy.admin.username").SetVal("a")
	mock.ExpectGet("codenvy.admin.password").RedisNil()

	settings, err := LoadSettings(ctx, repo, "codenvy.admin")

	require.NoError(t, err)
	assert.Equal(t, ConnectionSettings{InstanceURL: "http://x", Username: "a", Password: ""}, settings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSettings_StoreFailure(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	repo := NewRedisRepository(client)

	mock.ExpectGet("codenvy.admin.instanceurl").SetErr(errors.New("timeout"))

	_, err := LoadSettings(ctx, repo, "codenvy.admin")

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
