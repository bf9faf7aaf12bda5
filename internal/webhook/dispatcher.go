package webhook

import (
	"context"
	"errors"

	"github.com/temirov/cascade/internal/cascade"
	"github.com/temirov/cascade/internal/repository"
	"github.com/temirov/cascade/internal/upstreamconfig"
)

const (
	cascaderMissingMessageConstant = "cascade engine must be provided"
	applierMissingMessageConstant  = "configuration resolver must be provided"
)

// Dispatcher receives validated pull request events.
type Dispatcher interface {
	Cascade(ctx context.Context, event cascade.PullRequestEvent) error
	ApplyConfiguration(ctx context.Context, installationID int64, target repository.Identity) error
}

// Cascader runs a cascade for an upstream pull request.
type Cascader interface {
	Cascade(ctx context.Context, event cascade.PullRequestEvent) (cascade.Report, error)
}

// ConfigurationApplier registers a repository under the upstreams it declares.
type ConfigurationApplier interface {
	Apply(ctx context.Context, installationID int64, target repository.Identity) (upstreamconfig.Document, error)
}

// Router is the Dispatcher backed by the cascade engine and the configuration resolver.
type Router struct {
	cascader Cascader
	applier  ConfigurationApplier
}

// NewRouter constructs a Router.
func NewRouter(cascader Cascader, applier ConfigurationApplier) (*Router, error) {
	if cascader == nil {
		return nil, errors.New(cascaderMissingMessageConstant)
	}
	if applier == nil {
		return nil, errors.New(applierMissingMessageConstant)
	}
	return &Router{cascader: cascader, applier: applier}, nil
}

// Cascade forwards the event to the engine. Per-downstream failures are
// reported by the engine itself; only escaping errors are returned.
func (router *Router) Cascade(ctx context.Context, event cascade.PullRequestEvent) error {
	_, cascadeError := router.cascader.Cascade(ctx, event)
	return cascadeError
}

// ApplyConfiguration forwards a merged or closed pull request to the resolver.
func (router *Router) ApplyConfiguration(ctx context.Context, installationID int64, target repository.Identity) error {
	_, applyError := router.applier.Apply(ctx, installationID, target)
	return applyError
}
