package client

import (
	"context"

	"factory-hook/internal/factory"
)

// Session is an authenticated session on the provisioning service. It is
// obtained per orchestration and never cached.
type Session struct {
	Token string
}

// FactoryAPI defines the calls made against the remote provisioning service.
// baseURL is the instance URL from the connection settings.
type FactoryAPI interface {
	// Authenticate logs in and returns a session token
	Authenticate(ctx context.Context, baseURL, username, password string) (Session, error)

	// ResolveOwnerID resolves the remote user id owning template factories
	ResolveOwnerID(ctx context.Context, baseURL, username string) (string, error)

	// FindByName searches factories by exact name and creator id
	FindByName(ctx context.Context, baseURL, name, ownerID string, session Session) ([]factory.Factory, error)

	// Create stores a new factory and returns the created resource
	Create(ctx context.Context, baseURL string, f factory.Factory, session Session) (factory.Factory, error)

	// Delete removes the factory with the given id
	Delete(ctx context.Context, baseURL, id string, session Session) error
}

// CustomField is a custom field available on an issue.
type CustomField struct {
	ID      string
	Name    string
	TypeKey string
}

// Issue identifies an issue in the tracker.
type Issue struct {
	ID  string
	Key string
}

// ErrorCollection gathers validation errors of an issue update, keyed by field id.
type ErrorCollection struct {
	Errors   map[string]string
	Messages []string
}

// HasAnyErrors reports whether validation rejected the update.
func (e ErrorCollection) HasAnyErrors() bool {
	return len(e.Errors) > 0 || len(e.Messages) > 0
}

// UpdateValidationResult is the outcome of validating an update; only a
// result without errors may be committed.
type UpdateValidationResult struct {
	Issue  Issue
	Fields map[string]string
	Errors ErrorCollection
}

// IssueTracker defines the issue tracker calls used to bind and write the link fields
type IssueTracker interface {
	// AvailableCustomFields lists the custom fields available on an issue
	AvailableCustomFields(ctx context.Context, issueKey string) ([]CustomField, error)

	// GetIssue loads an issue by key
	GetIssue(ctx context.Context, issueKey string) (*Issue, error)

	// ValidateUpdate checks that the given field values may be set on the issue
	ValidateUpdate(ctx context.Context, issue *Issue, fields map[string]string) (*UpdateValidationResult, error)

	// Update commits a validated update
	Update(ctx context.Context, result *UpdateValidationResult) error
}
