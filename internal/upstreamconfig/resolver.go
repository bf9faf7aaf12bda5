package upstreamconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/cascade/internal/githubapi"
	"github.com/temirov/cascade/internal/repository"
)

const (
	// DefaultConfigurationFileName is fetched from the repository root when no override is configured.
	DefaultConfigurationFileName = "cascade.yml"

	clientResolverMissingMessageConstant = "installation client resolver must be provided"
	registrarMissingMessageConstant      = "downstream registrar must be provided"
	repositoryMissingMessageConstant     = "repository must be provided"
	clientErrorTemplateConstant          = "unable to obtain installation client for %s: %w"
	fetchErrorTemplateConstant           = "unable to fetch %s from %s: %w"
	decodeErrorTemplateConstant          = "unable to decode %s from %s: %w"
	parseErrorTemplateConstant           = "invalid %s in %s: %w"
	registerErrorTemplateConstant        = "unable to register %s as downstream: %w"
	configurationMissingMessageConstant  = "repository has no upstream configuration"
	configurationAppliedMessageConstant  = "upstream configuration applied"
	logFieldRepositoryConstant           = "repository"
	logFieldConfigurationFileConstant    = "configuration_file"
	logFieldUpstreamsConstant            = "upstreams"
	logFieldInstallationIDConstant       = "installation_id"
)

var (
	// ErrClientResolverMissing indicates the resolver was built without a way to reach GitHub.
	ErrClientResolverMissing = errors.New(clientResolverMissingMessageConstant)
	// ErrRegistrarMissing indicates the resolver was built without a store.
	ErrRegistrarMissing = errors.New(registrarMissingMessageConstant)
)

// ContentClient fetches repository files.
type ContentClient interface {
	GetContent(ctx context.Context, owner string, repository string, filePath string) (githubapi.Content, error)
}

// ClientResolver returns a client scoped to a GitHub App installation.
type ClientResolver func(ctx context.Context, installationID int64) (ContentClient, error)

// Registrar records downstream relationships.
type Registrar interface {
	RegisterAll(upstreamSlugs []string, downstream repository.Identity) error
}

// Configuration wires the resolver collaborators.
type Configuration struct {
	ClientResolver    ClientResolver
	Registrar         Registrar
	ConfigurationFile string
}

// Resolver applies cascade.yml declarations to the relationship store.
type Resolver struct {
	clientResolver    ClientResolver
	registrar         Registrar
	configurationFile string
	logger            *zap.Logger
}

// NewResolver validates the configuration and constructs a Resolver.
func NewResolver(configuration Configuration, logger *zap.Logger) (*Resolver, error) {
	if configuration.ClientResolver == nil {
		return nil, ErrClientResolverMissing
	}
	if configuration.Registrar == nil {
		return nil, ErrRegistrarMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	configurationFile := strings.TrimSpace(configuration.ConfigurationFile)
	if len(configurationFile) == 0 {
		configurationFile = DefaultConfigurationFileName
	}

	return &Resolver{
		clientResolver:    configuration.ClientResolver,
		registrar:         configuration.Registrar,
		configurationFile: configurationFile,
		logger:            logger,
	}, nil
}

// ConfigurationFile reports the repository path the resolver reads.
func (resolver *Resolver) ConfigurationFile() string {
	return resolver.configurationFile
}

// Apply fetches the configuration file of target and registers target as a
// downstream of every declared upstream. A missing file yields an empty
// Document and no error.
func (resolver *Resolver) Apply(ctx context.Context, installationID int64, target repository.Identity) (Document, error) {
	if installationID <= 0 {
		return Document{}, repository.ErrInstallationMissing
	}
	if target.IsZero() {
		return Document{}, errors.New(repositoryMissingMessageConstant)
	}

	client, clientError := resolver.clientResolver(ctx, installationID)
	if clientError != nil {
		return Document{}, fmt.Errorf(clientErrorTemplateConstant, target.Slug(), clientError)
	}

	content, fetchError := client.GetContent(ctx, target.Owner, target.Name, resolver.configurationFile)
	if fetchError != nil {
		if githubapi.IsNotFound(fetchError) {
			resolver.logger.Info(
				configurationMissingMessageConstant,
				zap.String(logFieldRepositoryConstant, target.Slug()),
				zap.String(logFieldConfigurationFileConstant, resolver.configurationFile),
			)
			return Document{}, nil
		}
		return Document{}, fmt.Errorf(fetchErrorTemplateConstant, resolver.configurationFile, target.Slug(), fetchError)
	}

	decoded, decodeError := content.Decode()
	if decodeError != nil {
		return Document{}, fmt.Errorf(decodeErrorTemplateConstant, resolver.configurationFile, target.Slug(), decodeError)
	}

	document, parseError := ParseDocument(decoded)
	if parseError != nil {
		return Document{}, fmt.Errorf(parseErrorTemplateConstant, resolver.configurationFile, target.Slug(), parseError)
	}

	if registerError := resolver.registrar.RegisterAll(document.Upstreams, target); registerError != nil {
		return Document{}, fmt.Errorf(registerErrorTemplateConstant, target.Slug(), registerError)
	}

	resolver.logger.Info(
		configurationAppliedMessageConstant,
		zap.String(logFieldRepositoryConstant, target.Slug()),
		zap.Int64(logFieldInstallationIDConstant, installationID),
		zap.Strings(logFieldUpstreamsConstant, document.Upstreams),
	)
	return document, nil
}
