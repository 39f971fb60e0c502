package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"factory-hook/internal/client"
	"factory-hook/internal/factory"
	"factory-hook/internal/repository"
)

// RouterConfig names where the router finds its settings and link fields
type RouterConfig struct {
	SettingsNamespace string
	DevelopFieldType  string
	ReviewFieldType   string
}

// RouterImpl filters issue events and dispatches them to the provisioner
// or the decommissioner. It implements Listener.
type RouterImpl struct {
	settings       repository.ConfigurationProvider
	tracker        client.IssueTracker
	provisioner    Provisioner
	decommissioner Decommissioner
	fields         FieldWriter
	publisher      EventPublisher
	config         RouterConfig
}

// NewRouter creates a new event router instance
func NewRouter(
	settings repository.ConfigurationProvider,
	tracker client.IssueTracker,
	provisioner Provisioner,
	decommissioner Decommissioner,
	fields FieldWriter,
	publisher EventPublisher,
	cfg RouterConfig,
) *RouterImpl {
	return &RouterImpl{
		settings:       settings,
		tracker:        tracker,
		provisioner:    provisioner,
		decommissioner: decommissioner,
		fields:         fields,
		publisher:      publisher,
		config:         cfg,
	}
}

// Start registers the router with the event publisher
func (r *RouterImpl) Start() {
	r.publisher.Register(r)
	slog.Info("Issue event router registered")
}

// Stop unregisters the router from the event publisher
func (r *RouterImpl) Stop() {
	r.publisher.Unregister(r)
	slog.Info("Issue event router unregistered")
}

// OnIssueEvent handles one event to completion. Failures are logged and
// never reach the publisher.
func (r *RouterImpl) OnIssueEvent(ctx context.Context, event IssueEvent) {
	if err := r.route(ctx, event); err != nil {
		level := slog.LevelWarn
		if errors.Is(err, ErrTransport) {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "Issue event handling failed",
			"event_id", event.ID,
			"event_type", event.Type.String(),
			"issue_key", event.Issue.Key,
			"error", err,
		)
	}
}

func (r *RouterImpl) route(ctx context.Context, event IssueEvent) error {
	if event.Type != EventCreated && !event.Type.Terminal() {
		slog.Debug("Ignoring issue event", "event_id", event.ID, "event_type", event.Type.String(), "issue_key", event.Issue.Key)
		return nil
	}

	slog.Info("Handling issue event",
		"event_id", event.ID,
		"event_type", event.Type.String(),
		"issue_key", event.Issue.Key,
	)

	settings, err := repository.LoadSettings(ctx, r.settings, r.config.SettingsNamespace)
	if err != nil {
		return fmt.Errorf("%w: loading connection settings: %w", ErrTransport, err)
	}
	if missing := missingSettings(settings); len(missing) > 0 {
		slog.Warn("At least one of instance URL, username or password is not set or empty",
			"missing", strings.Join(missing, ","),
			"instance_url", settings.InstanceURL,
			"username", settings.Username,
		)
		return fmt.Errorf("%w: %s", ErrConfigurationMissing, strings.Join(missing, ","))
	}

	if event.Type == EventCreated {
		return r.handleCreated(ctx, settings, event)
	}
	return r.handleTerminated(ctx, settings, event)
}

func (r *RouterImpl) handleCreated(ctx context.Context, settings repository.ConnectionSettings, event IssueEvent) error {
	if event.User == nil {
		slog.Warn("No user given in issue event", "event_id", event.ID, "issue_key", event.Issue.Key)
		return ErrNoActingUser
	}

	fields, err := r.tracker.AvailableCustomFields(ctx, event.Issue.Key)
	if err != nil {
		return fmt.Errorf("%w: listing custom fields: %w", ErrTransport, err)
	}

	binding := r.bindFields(fields)
	if !binding.Complete() {
		slog.Warn("Field Develop and/or Review are not available for issue",
			"develop_field_id", orNull(binding.DevelopFieldID),
			"review_field_id", orNull(binding.ReviewFieldID),
			"issue_key", orNull(event.Issue.Key),
		)
		return fmt.Errorf("%w: develop %q review %q", ErrFieldBindingMissing, binding.DevelopFieldID, binding.ReviewFieldID)
	}

	links, err := r.provisioner.Provision(ctx, settings, event.Issue)
	if err != nil {
		return err
	}

	return r.fields.Update(ctx, event.User, event.Issue.Key,
		binding.DevelopFieldID, FieldValue(factory.KindDevelop, links.Develop),
		binding.ReviewFieldID, FieldValue(factory.KindReview, links.Review),
	)
}

// handleTerminated decommissions each factory kind whose field is present
// on the issue. A failure on one kind does not stop the other.
func (r *RouterImpl) handleTerminated(ctx context.Context, settings repository.ConnectionSettings, event IssueEvent) error {
	fields, err := r.tracker.AvailableCustomFields(ctx, event.Issue.Key)
	if err != nil {
		return fmt.Errorf("%w: listing custom fields: %w", ErrTransport, err)
	}

	var errs []error
	for _, field := range fields {
		var kind factory.Kind
		switch field.TypeKey {
		case r.config.DevelopFieldType:
			kind = factory.KindDevelop
		case r.config.ReviewFieldType:
			kind = factory.KindReview
		default:
			continue
		}

		if err := r.decommissioner.Decommission(ctx, settings, event.Issue.Key, kind); err != nil {
			slog.Warn("Factory not decommissioned",
				"event_id", event.ID,
				"issue_key", event.Issue.Key,
				"kind", kind.String(),
				"error", err,
			)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// bindFields resolves the link field ids by type key; the last field of a
// given type wins.
func (r *RouterImpl) bindFields(fields []client.CustomField) FieldBinding {
	var binding FieldBinding
	for _, field := range fields {
		if field.TypeKey == r.config.DevelopFieldType {
			binding.DevelopFieldID = field.ID
		}
		if field.TypeKey == r.config.ReviewFieldType {
			binding.ReviewFieldID = field.ID
		}
	}
	return binding
}

func missingSettings(settings repository.ConnectionSettings) []string {
	var missing []string
	if settings.InstanceURL == "" {
		missing = append(missing, "instanceurl")
	}
	if settings.Username == "" {
		missing = append(missing, "username")
	}
	if settings.Password == "" {
		missing = append(missing, "password")
	}
	return missing
}

func orNull(s string) string {
	if s == "" {
		return "null"
	}
	return s
}
