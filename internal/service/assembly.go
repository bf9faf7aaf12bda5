package service

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/temirov/cascade/internal/cascade"
	"github.com/temirov/cascade/internal/githubapi"
	"github.com/temirov/cascade/internal/githubauth"
	"github.com/temirov/cascade/internal/repograph"
	"github.com/temirov/cascade/internal/server"
	"github.com/temirov/cascade/internal/upstreamconfig"
	pathutils "github.com/temirov/cascade/internal/utils/path"
	"github.com/temirov/cascade/internal/webhook"
)

const (
	secretSourceErrorTemplateConstant  = "invalid %s source: %w"
	secretResolveErrorTemplateConstant = "unable to read %s from %s: %w"
	storeOpenErrorTemplateConstant     = "unable to open relationship store: %w"
	privateKeyDescriptionConstant      = "github private key"
	webhookSecretDescriptionConstant   = "github webhook secret"
	userAgentConstant                  = "cascade"
	storeOpenedMessageConstant         = "relationship store opened"
	logFieldStorePathConstant          = "store_path"
	logFieldUpstreamCountConstant      = "upstream_count"
)

// Assembler builds the service components from configuration. Zero values
// fall back to the operating system environment and a timeout-bound
// net/http client.
type Assembler struct {
	SecretResolver *githubauth.SecretResolver
	HTTPClient     githubapi.HTTPClient
	Clock          githubauth.Clock
	HomeExpander   *pathutils.HomeExpander
}

func (assembler Assembler) secretResolver() *githubauth.SecretResolver {
	if assembler.SecretResolver != nil {
		return assembler.SecretResolver
	}
	return githubauth.NewSecretResolver(nil, nil)
}

func (assembler Assembler) homeExpander() *pathutils.HomeExpander {
	if assembler.HomeExpander != nil {
		return assembler.HomeExpander
	}
	return pathutils.NewHomeExpander()
}

func (assembler Assembler) httpClient(configuration Configuration) githubapi.HTTPClient {
	if assembler.HTTPClient != nil {
		return assembler.HTTPClient
	}
	return &http.Client{Timeout: configuration.GitHub.RequestTimeout}
}

// OpenStore loads the relationship store named by the configuration.
func (assembler Assembler) OpenStore(configuration Configuration, logger *zap.Logger) (*repograph.Store, error) {
	configuration = configuration.sanitize()
	storePath := assembler.homeExpander().Expand(configuration.Store.Path)
	store, loadError := repograph.Load(storePath, logger)
	if loadError != nil {
		return nil, fmt.Errorf(storeOpenErrorTemplateConstant, loadError)
	}
	logger.Debug(
		storeOpenedMessageConstant,
		zap.String(logFieldStorePathConstant, store.Path()),
		zap.Int(logFieldUpstreamCountConstant, len(store.Upstreams())),
	)
	return store, nil
}

// Provider resolves the GitHub App private key and builds the credential provider.
func (assembler Assembler) Provider(ctx context.Context, configuration Configuration, logger *zap.Logger) (*githubauth.Provider, error) {
	configuration = configuration.sanitize()
	privateKey, secretError := assembler.resolveSecret(ctx, privateKeyDescriptionConstant, configuration.GitHub.PrivateKey)
	if secretError != nil {
		return nil, secretError
	}

	return githubauth.NewProvider(githubauth.ProviderConfiguration{
		AppID:      configuration.GitHub.AppID,
		ClientID:   configuration.GitHub.ClientID,
		PrivateKey: privateKey,
		BaseURL:    configuration.GitHub.APIBaseURL,
		UserAgent:  userAgentConstant,
		HTTPClient: assembler.httpClient(configuration),
		Clock:      assembler.Clock,
	}, logger)
}

// Resolver builds the configuration resolver on top of provider and store.
func (assembler Assembler) Resolver(configuration Configuration, provider *githubauth.Provider, store *repograph.Store, logger *zap.Logger) (*upstreamconfig.Resolver, error) {
	configuration = configuration.sanitize()
	return upstreamconfig.NewResolver(upstreamconfig.Configuration{
		ClientResolver: func(ctx context.Context, installationID int64) (upstreamconfig.ContentClient, error) {
			client, clientError := provider.InstallationClient(ctx, installationID)
			if clientError != nil {
				return nil, clientError
			}
			return client, nil
		},
		Registrar:         store,
		ConfigurationFile: configuration.Cascade.ConfigurationFile,
	}, logger)
}

// Engine builds the cascade engine on top of provider and store.
func (assembler Assembler) Engine(provider *githubauth.Provider, store *repograph.Store, logger *zap.Logger) (*cascade.Engine, error) {
	return cascade.NewEngine(cascade.Configuration{
		ClientResolver: func(ctx context.Context, installationID int64) (cascade.GitHubClient, error) {
			client, clientError := provider.InstallationClient(ctx, installationID)
			if clientError != nil {
				return nil, clientError
			}
			return client, nil
		},
		DownstreamLister: store,
	}, logger)
}

// Server wires the webhook handler for dispatcher into an HTTP server.
func (assembler Assembler) Server(ctx context.Context, configuration Configuration, dispatcher webhook.Dispatcher, logger *zap.Logger) (*server.Server, error) {
	configuration = configuration.sanitize()
	secret, secretError := assembler.resolveSecret(ctx, webhookSecretDescriptionConstant, configuration.GitHub.WebhookSecret)
	if secretError != nil {
		return nil, secretError
	}

	handler, handlerError := webhook.NewHandler(webhook.HandlerConfiguration{
		Secret:     secret,
		Dispatcher: dispatcher,
	}, logger)
	if handlerError != nil {
		return nil, handlerError
	}

	return server.NewServer(server.Configuration{
		ListenAddress:     configuration.Server.ListenAddress,
		Path:              configuration.Server.WebhookPath,
		Handler:           handler,
		ReadHeaderTimeout: configuration.Server.ReadHeaderTimeout,
		ShutdownTimeout:   configuration.Server.ShutdownTimeout,
	}, logger)
}

func (assembler Assembler) resolveSecret(ctx context.Context, description string, sourceValue string) ([]byte, error) {
	source, parseError := githubauth.ParseSecretSource(sourceValue)
	if parseError != nil {
		return nil, fmt.Errorf(secretSourceErrorTemplateConstant, description, parseError)
	}
	secret, resolveError := assembler.secretResolver().Resolve(ctx, source)
	if resolveError != nil {
		return nil, fmt.Errorf(secretResolveErrorTemplateConstant, description, source, resolveError)
	}
	return secret, nil
}
