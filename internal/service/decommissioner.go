package service

import (
	"context"
	"fmt"
	"log/slog"

	"factory-hook/internal/client"
	"factory-hook/internal/factory"
	"factory-hook/internal/repository"
)

// DecommissionerImpl implements the Decommissioner interface
type DecommissionerImpl struct {
	api client.FactoryAPI
}

// NewDecommissioner creates a new decommissioner instance
func NewDecommissioner(api client.FactoryAPI) *DecommissionerImpl {
	return &DecommissionerImpl{api: api}
}

// Decommission authenticates, finds the factory by its deterministic name
// and deletes the first match. Each call uses its own session.
func (d *DecommissionerImpl) Decommission(ctx context.Context, settings repository.ConnectionSettings, issueKey string, kind factory.Kind) error {
	baseURL := settings.InstanceURL
	name := factory.DecommissionName(issueKey, kind)

	slog.Info("Decommissioning factory", "issue_key", issueKey, "kind", kind.String(), "factory_name", name)

	session, err := d.api.Authenticate(ctx, baseURL, settings.Username, settings.Password)
	if err != nil {
		slog.Warn("No session obtained", "username", settings.Username, "error", err)
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	ownerID, err := d.api.ResolveOwnerID(ctx, baseURL, settings.Username)
	if err != nil {
		return fmt.Errorf("%w: resolving owner id: %w", ErrTransport, err)
	}

	found, err := d.api.FindByName(ctx, baseURL, name, ownerID, session)
	if err != nil {
		return fmt.Errorf("%w: searching %s: %w", ErrTransport, name, err)
	}
	if len(found) == 0 {
		slog.Warn("No factory found", "factory_name", name, "owner_id", ownerID)
		return fmt.Errorf("%w: name %q owner %q", ErrResourceNotFound, name, ownerID)
	}

	id := found[0].ID()
	if err := d.api.Delete(ctx, baseURL, id, session); err != nil {
		return fmt.Errorf("%w: deleting %s (%s): %w", ErrTransport, name, id, err)
	}

	slog.Info("Factory decommissioned", "issue_key", issueKey, "factory_name", name, "factory_id", id)
	return nil
}
