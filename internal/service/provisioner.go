package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"factory-hook/internal/client"
	"factory-hook/internal/factory"
	"factory-hook/internal/repository"
)

// ProvisionState is a step of the provisioning state machine
type ProvisionState string

const (
	StateAuthPending    ProvisionState = "AuthPending"
	StateTemplateLookup ProvisionState = "TemplateLookup"
	StateDevelopDerive  ProvisionState = "DevelopDerive"
	StateDevelopCreate  ProvisionState = "DevelopCreate"
	StateReviewDerive   ProvisionState = "ReviewDerive"
	StateReviewCreate   ProvisionState = "ReviewCreate"
	StateLinkExtract    ProvisionState = "LinkExtract"
	StateDone           ProvisionState = "Done"
	StateAborted        ProvisionState = "Aborted"
)

// ProvisionerImpl implements the Provisioner interface
type ProvisionerImpl struct {
	api client.FactoryAPI
}

// NewProvisioner creates a new provisioner instance
func NewProvisioner(api client.FactoryAPI) *ProvisionerImpl {
	return &ProvisionerImpl{api: api}
}

// provisioning is one run of the state machine. Every created factory
// registers a compensation that deletes it again if a later step fails.
type provisioning struct {
	api           client.FactoryAPI
	settings      repository.ConnectionSettings
	issue         IssueContext
	session       client.Session
	state         ProvisionState
	compensations []compensation
}

type compensation struct {
	name   string
	action func(ctx context.Context) error
}

// Provision runs AuthPending through Done for a newly created issue.
func (p *ProvisionerImpl) Provision(ctx context.Context, settings repository.ConnectionSettings, issue IssueContext) (links Links, err error) {
	run := &provisioning{
		api:      p.api,
		settings: settings,
		issue:    issue,
	}

	slog.Info("Starting factory provisioning",
		"issue_key", issue.Key,
		"project_key", issue.ProjectKey,
		"project_name", issue.ProjectName,
	)

	defer func() {
		if err != nil {
			failed := run.state
			run.transition(StateAborted)
			slog.Warn("Factory provisioning aborted",
				"issue_key", issue.Key,
				"failed_state", string(failed),
				"error", err,
			)
			run.compensate(ctx)
		}
	}()

	links, err = run.execute(ctx)
	if err != nil {
		return Links{}, err
	}

	run.transition(StateDone)
	slog.Info("Factory provisioning completed",
		"issue_key", issue.Key,
		"develop_url", links.Develop,
		"review_url", links.Review,
	)
	return links, nil
}

func (r *provisioning) execute(ctx context.Context) (Links, error) {
	baseURL := r.settings.InstanceURL
	key := r.issue.Key

	r.transition(StateAuthPending)
	session, err := r.api.Authenticate(ctx, baseURL, r.settings.Username, r.settings.Password)
	if err != nil {
		slog.Warn("No session obtained", "username", r.settings.Username, "error", err)
		return Links{}, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	r.session = session

	r.transition(StateTemplateLookup)
	ownerID, err := r.api.ResolveOwnerID(ctx, baseURL, r.settings.Username)
	if err != nil {
		return Links{}, fmt.Errorf("%w: resolving owner id: %w", ErrTransport, err)
	}
	templateName := factory.TemplateName(r.issue.ProjectKey)
	templates, err := r.api.FindByName(ctx, baseURL, templateName, ownerID, session)
	if err != nil {
		return Links{}, fmt.Errorf("%w: searching template %s: %w", ErrTransport, templateName, err)
	}
	if len(templates) == 0 {
		slog.Warn("No factory found", "factory_name", templateName, "owner_id", ownerID)
		return Links{}, fmt.Errorf("%w: name %q owner %q", ErrResourceNotFound, templateName, ownerID)
	}
	template := templates[0]
	slog.Debug("Template factory found",
		"project_name", r.issue.ProjectName,
		"factory_name", templateName,
		"factory_id", template.ID(),
		"matches", len(templates),
	)

	r.transition(StateDevelopDerive)
	developName := factory.CreationName(key, factory.KindDevelop)
	developRequest, err := factory.Derive(template, developName, factory.KindDevelop.Policy(), key)
	if err != nil {
		return Links{}, fmt.Errorf("deriving %s: %w", developName, err)
	}

	r.transition(StateDevelopCreate)
	develop, err := r.create(ctx, developRequest)
	if err != nil {
		return Links{}, err
	}

	r.transition(StateReviewDerive)
	reviewName := factory.CreationName(key, factory.KindReview)
	reviewRequest, err := factory.Derive(develop, reviewName, factory.KindReview.Policy(), "")
	if err != nil {
		return Links{}, fmt.Errorf("deriving %s: %w", reviewName, err)
	}

	r.transition(StateReviewCreate)
	review, err := r.create(ctx, reviewRequest)
	if err != nil {
		return Links{}, err
	}

	r.transition(StateLinkExtract)
	developURL, developOK := factory.NamedURL(develop)
	reviewURL, reviewOK := factory.NamedURL(review)
	if !developOK || !reviewOK {
		slog.Warn("Factory URL missing",
			"issue_key", key,
			"develop_url", developURL,
			"review_url", reviewURL,
		)
		return Links{}, fmt.Errorf("%w: develop %q review %q", ErrLinkMissing, developURL, reviewURL)
	}

	return Links{Develop: developURL, Review: reviewURL}, nil
}

func (r *provisioning) create(ctx context.Context, request factory.Factory) (factory.Factory, error) {
	name := request.Name()
	created, err := r.api.Create(ctx, r.settings.InstanceURL, request, r.session)
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrTransport, name, err)
	}
	slog.Debug("Generated factory", "issue_key", r.issue.Key, "factory_name", name, "factory_id", created.ID())

	id := created.ID()
	r.compensations = append(r.compensations, compensation{
		name: name,
		action: func(ctx context.Context) error {
			if id == "" {
				return errors.New("created factory has no id")
			}
			return r.api.Delete(ctx, r.settings.InstanceURL, id, r.session)
		},
	})
	return created, nil
}

// compensate undoes the factories created so far, newest first.
func (r *provisioning) compensate(ctx context.Context) {
	for i := len(r.compensations) - 1; i >= 0; i-- {
		c := r.compensations[i]
		if err := c.action(ctx); err != nil {
			slog.Error("Failed to remove factory after aborted provisioning",
				"issue_key", r.issue.Key,
				"factory_name", c.name,
				"error", err,
			)
			continue
		}
		slog.Info("Removed factory after aborted provisioning", "issue_key", r.issue.Key, "factory_name", c.name)
	}
	r.compensations = nil
}

func (r *provisioning) transition(state ProvisionState) {
	slog.Debug("Provisioning state", "issue_key", r.issue.Key, "from", string(r.state), "to", string(state))
	r.state = state
}
