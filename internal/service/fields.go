package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"factory-hook/internal/client"
	"factory-hook/internal/factory"
)

// FieldValue renders the anchor stored in the link field of the given kind.
func FieldValue(kind factory.Kind, url string) string {
	label := "Developer Workspace"
	if kind == factory.KindReview {
		label = "Reviewer Workspace"
	}
	return fmt.Sprintf(`<a id="codenvy_%s_field" href="%s">%s</a>`, kind.String(), html.EscapeString(url), label)
}

// FieldWriterImpl implements the FieldWriter interface
type FieldWriterImpl struct {
	tracker client.IssueTracker
}

// NewFieldWriter creates a new field writer instance
func NewFieldWriter(tracker client.IssueTracker) *FieldWriterImpl {
	return &FieldWriterImpl{tracker: tracker}
}

// Update writes both link values in a single validated update. Nothing is
// committed when validation reports any error.
func (w *FieldWriterImpl) Update(ctx context.Context, user *User, issueKey, developFieldID, developValue, reviewFieldID, reviewValue string) error {
	actor := ""
	if user != nil {
		actor = user.Name
	}

	issue, err := w.tracker.GetIssue(ctx, issueKey)
	if err != nil {
		return fmt.Errorf("%w: loading issue %s: %w", ErrTransport, issueKey, err)
	}

	params := map[string]string{
		developFieldID: developValue,
		reviewFieldID:  reviewValue,
	}

	result, err := w.tracker.ValidateUpdate(ctx, issue, params)
	if err != nil {
		return fmt.Errorf("%w: validating update of %s: %w", ErrTransport, issueKey, err)
	}

	if result.Errors.HasAnyErrors() {
		slog.Warn("Issue not updated due to validation errors",
			"issue_key", issueKey,
			"user", actor,
			"errors", result.Errors.Errors,
			"messages", result.Errors.Messages,
		)
		return fmt.Errorf("%w: issue %s", ErrValidationFailed, issueKey)
	}

	if err := w.tracker.Update(ctx, result); err != nil {
		return fmt.Errorf("%w: updating issue %s: %w", ErrTransport, issueKey, err)
	}

	slog.Debug("Factory fields successfully updated", "issue_key", issueKey, "user", actor)
	return nil
}
