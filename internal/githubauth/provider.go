package githubauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/cascade/internal/githubapi"
	"github.com/temirov/cascade/internal/repository"
)

const (
	installationTokenRotationMargin        = 5 * time.Minute
	installationTokenEmptyMessageConstant  = "installation token exchange returned an empty token"
	installationTokenErrorTemplateConstant = "unable to obtain token for installation %d: %w"
	installationTokenIssuedMessageConstant = "installation token issued"
	logFieldInstallationIDConstant         = "installation_id"
	logFieldExpiresAtConstant              = "expires_at"
)

// ProviderConfiguration describes the GitHub App credentials and endpoint.
type ProviderConfiguration struct {
	AppID      int64
	ClientID   string
	PrivateKey []byte
	BaseURL    string
	UserAgent  string
	HTTPClient githubapi.HTTPClient
	Clock      Clock
}

// Provider hands out app-scoped and installation-scoped GitHub clients.
type Provider struct {
	appTokenSource *AppTokenSource
	appClient      *githubapi.Client
	configuration  ProviderConfiguration
	clock          Clock
	logger         *zap.Logger

	mutex               sync.Mutex
	installationSources map[int64]*installationTokenSource
}

// NewProvider validates the credentials and builds the app-scoped client.
func NewProvider(configuration ProviderConfiguration, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := configuration.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	appTokenSource, tokenSourceError := NewAppTokenSource(configuration.AppID, configuration.PrivateKey, clock)
	if tokenSourceError != nil {
		return nil, tokenSourceError
	}
	appTokenSource.UseClientID(configuration.ClientID)

	appClient, clientError := githubapi.NewClient(githubapi.Configuration{
		BaseURL:     configuration.BaseURL,
		UserAgent:   configuration.UserAgent,
		HTTPClient:  configuration.HTTPClient,
		TokenSource: appTokenSource,
	})
	if clientError != nil {
		return nil, clientError
	}

	return &Provider{
		appTokenSource:      appTokenSource,
		appClient:           appClient,
		configuration:       configuration,
		clock:               clock,
		logger:              logger,
		installationSources: make(map[int64]*installationTokenSource),
	}, nil
}

// AppClient returns the client authenticated with the app JWT.
func (provider *Provider) AppClient() *githubapi.Client {
	return provider.appClient
}

// InstallationClient returns a client authenticated as installationID. The
// token is obtained eagerly so credential problems surface before any
// repository call is attempted.
func (provider *Provider) InstallationClient(ctx context.Context, installationID int64) (*githubapi.Client, error) {
	if installationID <= 0 {
		return nil, repository.ErrInstallationMissing
	}

	tokenSource := provider.installationSource(installationID)
	if _, tokenError := tokenSource.Token(ctx); tokenError != nil {
		return nil, tokenError
	}

	return githubapi.NewClient(githubapi.Configuration{
		BaseURL:     provider.configuration.BaseURL,
		UserAgent:   provider.configuration.UserAgent,
		HTTPClient:  provider.configuration.HTTPClient,
		TokenSource: tokenSource,
	})
}

func (provider *Provider) installationSource(installationID int64) *installationTokenSource {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()

	tokenSource, exists := provider.installationSources[installationID]
	if !exists {
		tokenSource = &installationTokenSource{
			installationID: installationID,
			exchanger:      provider.appClient,
			clock:          provider.clock,
			logger:         provider.logger,
		}
		provider.installationSources[installationID] = tokenSource
	}
	return tokenSource
}

type installationTokenExchanger interface {
	CreateInstallationToken(ctx context.Context, installationID int64) (githubapi.InstallationToken, error)
}

// installationTokenSource caches one installation token and rotates it
// ahead of expiry.
type installationTokenSource struct {
	installationID int64
	exchanger      installationTokenExchanger
	clock          Clock
	logger         *zap.Logger

	mutex     sync.Mutex
	token     string
	expiresAt time.Time
}

func (source *installationTokenSource) Token(ctx context.Context) (string, error) {
	source.mutex.Lock()
	defer source.mutex.Unlock()

	if len(source.token) > 0 && source.clock.Now().Before(source.expiresAt.Add(-installationTokenRotationMargin)) {
		return source.token, nil
	}

	issuedToken, exchangeError := source.exchanger.CreateInstallationToken(ctx, source.installationID)
	if exchangeError != nil {
		return "", fmt.Errorf(installationTokenErrorTemplateConstant, source.installationID, exchangeError)
	}
	if len(issuedToken.Token) == 0 {
		return "", fmt.Errorf(installationTokenErrorTemplateConstant, source.installationID, errors.New(installationTokenEmptyMessageConstant))
	}

	source.token = issuedToken.Token
	source.expiresAt = issuedToken.ExpiresAt
	source.logger.Debug(
		installationTokenIssuedMessageConstant,
		zap.Int64(logFieldInstallationIDConstant, source.installationID),
		zap.Time(logFieldExpiresAtConstant, issuedToken.ExpiresAt),
	)
	return source.token, nil
}
