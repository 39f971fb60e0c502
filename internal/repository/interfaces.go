package repository

import "context"

// Keys of the connection settings, relative to the settings namespace.
const (
	KeyInstanceURL = "instanceurl"
	KeyUsername    = "username"
	KeyPassword    = "password"
)

// ConnectionSettings locate and authenticate the provisioning service
type ConnectionSettings struct {
	InstanceURL string `json:"instanceUrl"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

// ConfigurationProvider is the read side of the settings store
type ConfigurationProvider interface {
	// Get returns the value stored under key, empty when unset
	Get(ctx context.Context, key string) (string, error)
}

// SettingsStore persists the connection settings
type SettingsStore interface {
	ConfigurationProvider

	// PutSettings stores all three connection settings under namespace
	PutSettings(ctx context.Context, namespace string, settings ConnectionSettings) error
}

// SettingsKey builds the fully qualified key of a setting, e.g. codenvy.admin.instanceurl
func SettingsKey(namespace, key string) string {
	return namespace + "." + key
}

// LoadSettings reads the three connection settings under namespace. Missing
// values come back empty; deciding whether that is acceptable is up to the caller.
func LoadSettings(ctx context.Context, provider ConfigurationProvider, namespace string) (ConnectionSettings, error) {
	var settings ConnectionSettings
	targets := []struct {
		key string
		dst *string
	}{
		{KeyInstanceURL, &settings.InstanceURL},
		{KeyUsername, &settings.Username},
		{KeyPassword, &settings.Password},
	}
	for _, target := range targets {
		value, err := provider.Get(ctx, SettingsKey(namespace, target.key))
		if err != nil {
			return ConnectionSettings{}, err
		}
		*target.dst = value
	}
	return settings, nil
}
