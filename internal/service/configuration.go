package service

import (
	"strings"
	"time"

	"github.com/temirov/cascade/internal/githubapi"
	"github.com/temirov/cascade/internal/server"
	"github.com/temirov/cascade/internal/upstreamconfig"
)

const (
	githubConfigurationKeyConstant     = "github"
	serverConfigurationKeyConstant     = "server"
	storeConfigurationKeyConstant      = "store"
	cascadeConfigurationKeyConstant    = "cascade"
	configurationKeySeparatorConstant  = "."
	appIDKeyConstant                   = "app_id"
	clientIDKeyConstant                = "client_id"
	privateKeyKeyConstant              = "private_key"
	webhookSecretKeyConstant           = "webhook_secret"
	apiBaseURLKeyConstant              = "api_base_url"
	requestTimeoutKeyConstant          = "request_timeout"
	listenAddressKeyConstant           = "listen_address"
	webhookPathKeyConstant             = "webhook_path"
	readHeaderTimeoutKeyConstant       = "read_header_timeout"
	shutdownTimeoutKeyConstant         = "shutdown_timeout"
	storePathKeyConstant               = "path"
	configurationFileKeyConstant       = "configuration_file"
	defaultPrivateKeySourceConstant    = "file:github-app-private-key.pem"
	defaultWebhookSecretSourceConstant = "env:GITHUB_APP_SECRET"
	defaultStorePathConstant           = "db.json"
	defaultRequestTimeoutConstant      = 30 * time.Second
	appIDEnvironmentAliasConstant      = "GITHUB_APP_ID"
	clientIDEnvironmentAliasConstant   = "GITHUB_APP_CLIENT_ID"
)

// Configuration captures every setting the service reads.
type Configuration struct {
	GitHub  GitHubConfiguration  `mapstructure:"github"`
	Server  ServerConfiguration  `mapstructure:"server"`
	Store   StoreConfiguration   `mapstructure:"store"`
	Cascade CascadeConfiguration `mapstructure:"cascade"`
}

// GitHubConfiguration describes the GitHub App credentials and API endpoint.
// PrivateKey and WebhookSecret are secret sources such as "env:NAME" or
// "file:PATH", never the secrets themselves.
type GitHubConfiguration struct {
	AppID          int64         `mapstructure:"app_id"`
	ClientID       string        `mapstructure:"client_id"`
	PrivateKey     string        `mapstructure:"private_key"`
	WebhookSecret  string        `mapstructure:"webhook_secret"`
	APIBaseURL     string        `mapstructure:"api_base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ServerConfiguration describes the webhook listener.
type ServerConfiguration struct {
	ListenAddress     string        `mapstructure:"listen_address"`
	WebhookPath       string        `mapstructure:"webhook_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfiguration locates the relationship store.
type StoreConfiguration struct {
	Path string `mapstructure:"path"`
}

// CascadeConfiguration names the per-repository declaration file.
type CascadeConfiguration struct {
	ConfigurationFile string `mapstructure:"configuration_file"`
}

// DefaultConfiguration returns the baseline service settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		GitHub: GitHubConfiguration{
			PrivateKey:     defaultPrivateKeySourceConstant,
			WebhookSecret:  defaultWebhookSecretSourceConstant,
			APIBaseURL:     githubapi.DefaultBaseURL,
			RequestTimeout: defaultRequestTimeoutConstant,
		},
		Server: ServerConfiguration{
			ListenAddress:     server.DefaultListenAddress,
			WebhookPath:       server.DefaultPath,
			ReadHeaderTimeout: server.DefaultReadHeaderTimeout,
			ShutdownTimeout:   server.DefaultShutdownTimeout,
		},
		Store: StoreConfiguration{
			Path: defaultStorePathConstant,
		},
		Cascade: CascadeConfiguration{
			ConfigurationFile: upstreamconfig.DefaultConfigurationFileName,
		},
	}
}

// DefaultConfigurationValues flattens DefaultConfiguration into Viper keys.
func DefaultConfigurationValues() map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		configurationKey(githubConfigurationKeyConstant, appIDKeyConstant):              defaults.GitHub.AppID,
		configurationKey(githubConfigurationKeyConstant, clientIDKeyConstant):           defaults.GitHub.ClientID,
		configurationKey(githubConfigurationKeyConstant, privateKeyKeyConstant):         defaults.GitHub.PrivateKey,
		configurationKey(githubConfigurationKeyConstant, webhookSecretKeyConstant):      defaults.GitHub.WebhookSecret,
		configurationKey(githubConfigurationKeyConstant, apiBaseURLKeyConstant):         defaults.GitHub.APIBaseURL,
		configurationKey(githubConfigurationKeyConstant, requestTimeoutKeyConstant):     defaults.GitHub.RequestTimeout.String(),
		configurationKey(serverConfigurationKeyConstant, listenAddressKeyConstant):      defaults.Server.ListenAddress,
		configurationKey(serverConfigurationKeyConstant, webhookPathKeyConstant):        defaults.Server.WebhookPath,
		configurationKey(serverConfigurationKeyConstant, readHeaderTimeoutKeyConstant):  defaults.Server.ReadHeaderTimeout.String(),
		configurationKey(serverConfigurationKeyConstant, shutdownTimeoutKeyConstant):    defaults.Server.ShutdownTimeout.String(),
		configurationKey(storeConfigurationKeyConstant, storePathKeyConstant):           defaults.Store.Path,
		configurationKey(cascadeConfigurationKeyConstant, configurationFileKeyConstant): defaults.Cascade.ConfigurationFile,
	}
}

// EnvironmentAliases maps configuration keys to the unprefixed environment
// variables GitHub App deployments conventionally set.
func EnvironmentAliases() map[string][]string {
	return map[string][]string{
		configurationKey(githubConfigurationKeyConstant, appIDKeyConstant):    {appIDEnvironmentAliasConstant},
		configurationKey(githubConfigurationKeyConstant, clientIDKeyConstant): {clientIDEnvironmentAliasConstant},
	}
}

func configurationKey(section string, key string) string {
	return section + configurationKeySeparatorConstant + key
}

// sanitize trims string values and restores defaults for blank or
// non-positive settings.
func (configuration Configuration) sanitize() Configuration {
	defaults := DefaultConfiguration()
	sanitized := configuration

	sanitized.GitHub.ClientID = strings.TrimSpace(configuration.GitHub.ClientID)
	sanitized.GitHub.PrivateKey = valueOrDefault(configuration.GitHub.PrivateKey, defaults.GitHub.PrivateKey)
	sanitized.GitHub.WebhookSecret = valueOrDefault(configuration.GitHub.WebhookSecret, defaults.GitHub.WebhookSecret)
	sanitized.GitHub.APIBaseURL = valueOrDefault(configuration.GitHub.APIBaseURL, defaults.GitHub.APIBaseURL)
	sanitized.GitHub.RequestTimeout = durationOrDefault(configuration.GitHub.RequestTimeout, defaults.GitHub.RequestTimeout)
	sanitized.Server.ListenAddress = valueOrDefault(configuration.Server.ListenAddress, defaults.Server.ListenAddress)
	sanitized.Server.WebhookPath = valueOrDefault(configuration.Server.WebhookPath, defaults.Server.WebhookPath)
	sanitized.Server.ReadHeaderTimeout = durationOrDefault(configuration.Server.ReadHeaderTimeout, defaults.Server.ReadHeaderTimeout)
	sanitized.Server.ShutdownTimeout = durationOrDefault(configuration.Server.ShutdownTimeout, defaults.Server.ShutdownTimeout)
	sanitized.Store.Path = valueOrDefault(configuration.Store.Path, defaults.Store.Path)
	sanitized.Cascade.ConfigurationFile = valueOrDefault(configuration.Cascade.ConfigurationFile, defaults.Cascade.ConfigurationFile)

	return sanitized
}

func valueOrDefault(value string, defaultValue string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return defaultValue
	}
	return trimmedValue
}

func durationOrDefault(value time.Duration, defaultValue time.Duration) time.Duration {
	if value <= 0 {
		return defaultValue
	}
	return value
}
