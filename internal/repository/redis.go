package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisRepository implements SettingsStore on Redis string keys
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository creates a new Redis repository instance
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{
		client: client,
	}
}

// Get returns the value stored under key, empty when the key does not exist
func (r *RedisRepository) Get(ctx context.Context, key string) (string, error) {
	slog.Debug("Reading setting", "key", key)

	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			slog.Debug("Setting not found", "key", key)
			return "", nil
		}
		slog.Error("Failed to read setting", "key", key, "error", err)
		return "", fmt.Errorf("error reading setting %s: %w", key, err)
	}

	return value, nil
}

// PutSettings stores the three connection settings in a single MSET
func (r *RedisRepository) PutSettings(ctx context.Context, namespace string, settings ConnectionSettings) error {
	slog.Debug("Storing connection settings",
		"namespace", namespace,
		"instance_url", settings.InstanceURL,
		"username", settings.Username,
		"password_set", settings.Password != "",
	)

	err := r.client.MSet(ctx,
		SettingsKey(namespace, KeyInstanceURL), settings.InstanceURL,
		SettingsKey(namespace, KeyUsername), settings.Username,
		SettingsKey(namespace, KeyPassword), settings.Password,
	).Err()
	if err != nil {
		slog.Error("Failed to store connection settings", "namespace", namespace, "error", err)
		return fmt.Errorf("error storing connection settings: %w", err)
	}

	slog.Info("Connection settings stored", "namespace", namespace, "instance_url", settings.InstanceURL)
	return nil
}

// Ping checks connectivity to Redis
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
