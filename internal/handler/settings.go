package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"factory-hook/internal/repository"
)

// SettingsHandler reads and writes the provisioning service connection settings
type SettingsHandler struct {
	store     repository.SettingsStore
	namespace string
	writer    ResponseWriter
}

// NewSettingsHandler creates a new settings handler instance
func NewSettingsHandler(store repository.SettingsStore, namespace string, writer ResponseWriter) *SettingsHandler {
	return &SettingsHandler{store: store, namespace: namespace, writer: writer}
}

// HandleGet processes GET /admin/settings
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	settings, err := repository.LoadSettings(r.Context(), h.store, h.namespace)
	if err != nil {
		slog.Error("Failed to load connection settings", "error", err, "namespace", h.namespace)
		_ = h.writer.WriteError(w, "Failed to load settings", http.StatusInternalServerError)
		return
	}
	_ = h.writer.WriteJSON(w, http.StatusOK, settings)
}

// HandlePut processes PUT /admin/settings
func (h *SettingsHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	var settings repository.ConnectionSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		_ = h.writer.WriteError(w, "Error parsing JSON payload", http.StatusBadRequest)
		return
	}

	settings.InstanceURL = strings.TrimRight(strings.TrimSpace(settings.InstanceURL), "/")
	settings.Username = strings.TrimSpace(settings.Username)
	if msg := validateSettings(settings); msg != "" {
		_ = h.writer.WriteError(w, msg, http.StatusBadRequest)
		return
	}

	if err := h.store.PutSettings(r.Context(), h.namespace, settings); err != nil {
		slog.Error("Failed to store connection settings", "error", err, "namespace", h.namespace)
		_ = h.writer.WriteError(w, "Failed to store settings", http.StatusInternalServerError)
		return
	}

	slog.Info("Connection settings updated",
		"namespace", h.namespace,
		"instance_url", settings.InstanceURL,
		"username", settings.Username,
		"password", "***",
	)
	_ = h.writer.WriteJSON(w, http.StatusOK, settings)
}

func validateSettings(settings repository.ConnectionSettings) string {
	if settings.InstanceURL == "" || settings.Username == "" || settings.Password == "" {
		return "instanceUrl, username and password are required"
	}
	u, err := url.Parse(settings.InstanceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "instanceUrl must be an absolute http(s) URL"
	}
	return ""
}
