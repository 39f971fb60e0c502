package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	jira "github.com/andygrunwald/go-jira"

	"factory-hook/internal/config"
)

// JiraClient implements IssueTracker on the Jira REST API
type JiraClient struct {
	client *jira.Client
}

// NewJiraClient creates a new Jira client authenticated with the configured service account
func NewJiraClient(cfg *config.Config) (*JiraClient, error) {
	slog.Debug("Initializing Jira client",
		"base_url", cfg.JiraBaseURL,
		"skip_tls", cfg.JiraSkipTLS,
		"username", cfg.JiraUsername,
		"token_configured", cfg.JiraToken != "",
	)

	transport := jira.BasicAuthTransport{
		Username: cfg.JiraUsername,
		Password: cfg.JiraToken,
	}
	if cfg.JiraSkipTLS {
		slog.Warn("TLS verification disabled for Jira client")
		transport.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}

	httpClient := transport.Client()
	httpClient.Timeout = cfg.HTTPTimeout

	return NewJiraClientWithHTTP(httpClient, cfg.JiraBaseURL)
}

// NewJiraClientWithHTTP creates a Jira client around an existing http.Client
func NewJiraClientWithHTTP(httpClient *http.Client, baseURL string) (*JiraClient, error) {
	c, err := jira.NewClient(httpClient, baseURL)
	if err != nil {
		return nil, fmt.Errorf("error creating Jira client: %w", err)
	}

	slog.Info("Jira client initialized successfully", "base_url", baseURL)
	return &JiraClient{client: c}, nil
}

// AvailableCustomFields lists the custom fields on the issue's edit screen,
// sorted by field id.
func (j *JiraClient) AvailableCustomFields(ctx context.Context, issueKey string) ([]CustomField, error) {
	slog.Debug("Fetching issue edit metadata", "issue_key", issueKey)

	meta, _, err := j.client.Issue.GetEditMetaWithContext(ctx, &jira.Issue{Key: issueKey})
	if err != nil {
		slog.Error("Failed to fetch edit metadata", "error", err, "issue_key", issueKey)
		return nil, fmt.Errorf("error fetching edit metadata for %s: %w", issueKey, err)
	}

	fields := make([]CustomField, 0)
	for id, raw := range meta.Fields {
		definition, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		schema, ok := definition["schema"].(map[string]interface{})
		if !ok {
			continue
		}
		typeKey, _ := schema["custom"].(string)
		if typeKey == "" {
			continue
		}
		name, _ := definition["name"].(string)
		fields = append(fields, CustomField{ID: id, Name: name, TypeKey: typeKey})
	}

	sort.Slice(fields, func(a, b int) bool { return fields[a].ID < fields[b].ID })

	slog.Debug("Custom fields resolved", "issue_key", issueKey, "count", len(fields))
	return fields, nil
}

// GetIssue loads an issue by key
func (j *JiraClient) GetIssue(ctx context.Context, issueKey string) (*Issue, error) {
	issue, _, err := j.client.Issue.GetWithContext(ctx, issueKey, &jira.GetQueryOptions{Fields: "project"})
	if err != nil {
		slog.Error("Failed to load issue", "error", err, "issue_key", issueKey)
		return nil, fmt.Errorf("error loading issue %s: %w", issueKey, err)
	}

	return &Issue{ID: issue.ID, Key: issue.Key}, nil
}

// ValidateUpdate rejects every field that is not editable on the issue.
// Nothing is written.
func (j *JiraClient) ValidateUpdate(ctx context.Context, issue *Issue, fields map[string]string) (*UpdateValidationResult, error) {
	meta, _, err := j.client.Issue.GetEditMetaWithContext(ctx, &jira.Issue{ID: issue.ID, Key: issue.Key})
	if err != nil {
		slog.Error("Failed to fetch edit metadata for validation", "error", err, "issue_key", issue.Key)
		return nil, fmt.Errorf("error fetching edit metadata for %s: %w", issue.Key, err)
	}

	result := &UpdateValidationResult{
		Issue:  *issue,
		Fields: fields,
		Errors: ErrorCollection{Errors: map[string]string{}},
	}
	for id := range fields {
		if _, ok := meta.Fields[id]; !ok {
			result.Errors.Errors[id] = fmt.Sprintf("Field '%s' cannot be set. It is not on the appropriate screen, or unknown.", id)
		}
	}

	return result, nil
}

// Update commits a validated field update
func (j *JiraClient) Update(ctx context.Context, result *UpdateValidationResult) error {
	if result.Errors.HasAnyErrors() {
		return fmt.Errorf("refusing to commit update of %s with validation errors", result.Issue.Key)
	}

	fields := make(map[string]interface{}, len(result.Fields))
	for id, value := range result.Fields {
		fields[id] = value
	}

	target := result.Issue.ID
	if target == "" {
		target = result.Issue.Key
	}

	slog.Debug("Updating issue fields", "issue_key", result.Issue.Key, "field_count", len(fields))
	if _, err := j.client.Issue.UpdateIssueWithContext(ctx, target, map[string]interface{}{"fields": fields}); err != nil {
		slog.Error("Failed to update issue", "error", err, "issue_key", result.Issue.Key)
		return fmt.Errorf("error updating issue %s: %w", result.Issue.Key, err)
	}

	return nil
}
