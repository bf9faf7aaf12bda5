package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/cascade/internal/githubauth"
	"github.com/temirov/cascade/internal/repograph"
	"github.com/temirov/cascade/internal/repository"
	"github.com/temirov/cascade/internal/utils"
	"github.com/temirov/cascade/internal/webhook"
)

const (
	serveCommandUseConstant                = "serve"
	serveCommandShortDescriptionConstant   = "Run the webhook server"
	serveCommandLongDescriptionConstant    = "serve listens for GitHub App webhook deliveries, registers downstreams when pull requests close, and cascades opened or synchronized pull requests into every registered downstream."
	downstreamsCommandUseConstant          = "downstreams [owner/repo]"
	downstreamsCommandShortConstant        = "List registered downstream repositories"
	downstreamsCommandLongConstant         = "downstreams prints the downstreams registered for one upstream repository, or every upstream and its downstreams when no repository is given."
	registerCommandUseConstant             = "register owner/repo"
	registerCommandShortConstant           = "Apply a repository's cascade configuration now"
	registerCommandLongConstant            = "register fetches the repository's cascade configuration through the GitHub App installation and records the repository as a downstream of every upstream it declares."
	whoAmICommandUseConstant               = "whoami"
	whoAmICommandShortConstant             = "Print the authenticated GitHub App"
	whoAmICommandLongConstant              = "whoami authenticates with the configured GitHub App credentials and prints the app identity."
	flagInstallationIDNameConstant         = "installation-id"
	flagInstallationIDUsageConstant        = "GitHub App installation id that has access to the repository"
	unexpectedArgumentsMessageConstant     = "command does not accept positional arguments"
	installationFlagMissingMessageConstant = "--installation-id must be a positive installation id"
	authenticatedAsMessageConstant         = "authenticated as github app"
	authenticationCheckFailedConstant      = "unable to verify github app credentials"
	serveStartedMessageConstant            = "cascade service starting"
	logFieldAppNameConstant                = "app_name"
	logFieldAppSlugConstant                = "app_slug"
	logFieldAppIDConstant                  = "app_id"
	logFieldListenAddressConstant          = "listen_address"
	logFieldConfigFileConstant             = "config_file"
	authenticatedAsOutputTemplateConstant  = "Authenticated as %s (app id %d, slug %s)\n"
	downstreamLineTemplateConstant         = "%s\n"
	graphLineTemplateConstant              = "%s\t%s\n"
	registeredOutputTemplateConstant       = "%s registered as downstream of %s\n"
	noUpstreamsOutputTemplateConstant      = "%s declares no upstreams\n"
	upstreamListSeparatorConstant          = ", "
	commandExecutionErrorTemplateConstant  = "%s failed: %w"
	configurationContextNameConstant       = "service_configuration"
)

var (
	errUnexpectedArguments  = errors.New(unexpectedArgumentsMessageConstant)
	errInstallationRequired = errors.New(installationFlagMissingMessageConstant)
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the loaded service configuration.
type ConfigurationProvider func() Configuration

var configurationContext = utils.NewContextValue[Configuration](configurationContextNameConstant)

// WithConfiguration attaches the loaded service configuration to a command context.
func WithConfiguration(parentContext context.Context, configuration Configuration) context.Context {
	return configurationContext.With(parentContext, configuration)
}

// ConfigurationFromContext returns the configuration attached by WithConfiguration.
func ConfigurationFromContext(executionContext context.Context) (Configuration, bool) {
	return configurationContext.From(executionContext)
}

// CommandBuilder assembles the service commands.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	Assembler             Assembler
}

// Build constructs the serve, downstreams, register, and whoami commands.
func (builder *CommandBuilder) Build() ([]*cobra.Command, error) {
	serveCommand := &cobra.Command{
		Use:   serveCommandUseConstant,
		Short: serveCommandShortDescriptionConstant,
		Long:  serveCommandLongDescriptionConstant,
		RunE:  builder.runServe,
	}

	downstreamsCommand := &cobra.Command{
		Use:   downstreamsCommandUseConstant,
		Short: downstreamsCommandShortConstant,
		Long:  downstreamsCommandLongConstant,
		Args:  cobra.MaximumNArgs(1),
		RunE:  builder.runDownstreams,
	}

	registerCommand := &cobra.Command{
		Use:   registerCommandUseConstant,
		Short: registerCommandShortConstant,
		Long:  registerCommandLongConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runRegister,
	}
	registerCommand.Flags().Int64(flagInstallationIDNameConstant, 0, flagInstallationIDUsageConstant)

	whoAmICommand := &cobra.Command{
		Use:   whoAmICommandUseConstant,
		Short: whoAmICommandShortConstant,
		Long:  whoAmICommandLongConstant,
		RunE:  builder.runWhoAmI,
	}

	return []*cobra.Command{serveCommand, downstreamsCommand, registerCommand, whoAmICommand}, nil
}

func (builder *CommandBuilder) runServe(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}
	logger := builder.resolveLogger()
	configuration := builder.resolveConfiguration(command)

	serveContext, stop := signal.NotifyContext(commandContext(command), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, storeError := builder.Assembler.OpenStore(configuration, logger)
	if storeError != nil {
		return wrapCommandError(command.Name(), storeError)
	}
	provider, providerError := builder.Assembler.Provider(serveContext, configuration, logger)
	if providerError != nil {
		return wrapCommandError(command.Name(), providerError)
	}
	engine, engineError := builder.Assembler.Engine(provider, store, logger)
	if engineError != nil {
		return wrapCommandError(command.Name(), engineError)
	}
	resolver, resolverError := builder.Assembler.Resolver(configuration, provider, store, logger)
	if resolverError != nil {
		return wrapCommandError(command.Name(), resolverError)
	}
	router, routerError := webhook.NewRouter(engine, resolver)
	if routerError != nil {
		return wrapCommandError(command.Name(), routerError)
	}
	webhookServer, serverError := builder.Assembler.Server(serveContext, configuration, router, logger)
	if serverError != nil {
		return wrapCommandError(command.Name(), serverError)
	}

	logAuthenticatedApp(serveContext, provider, logger)
	startFields := []zap.Field{zap.String(logFieldListenAddressConstant, configuration.Server.ListenAddress)}
	if loadedConfiguration, found := utils.LoadedConfigurationContext.From(commandContext(command)); found && len(loadedConfiguration.ConfigFileUsed) > 0 {
		startFields = append(startFields, zap.String(logFieldConfigFileConstant, loadedConfiguration.ConfigFileUsed))
	}
	logger.Info(serveStartedMessageConstant, startFields...)

	if runError := webhookServer.Serve(serveContext); runError != nil {
		return wrapCommandError(command.Name(), runError)
	}
	return nil
}

func (builder *CommandBuilder) runDownstreams(command *cobra.Command, arguments []string) error {
	logger := builder.resolveLogger()
	store, storeError := builder.Assembler.OpenStore(builder.resolveConfiguration(command), logger)
	if storeError != nil {
		return wrapCommandError(command.Name(), storeError)
	}

	output := command.OutOrStdout()
	if len(arguments) == 1 {
		upstream, parseError := repository.ParseSlug(arguments[0])
		if parseError != nil {
			return parseError
		}
		for _, downstream := range store.DownstreamsOf(upstream.Slug()) {
			fmt.Fprintf(output, downstreamLineTemplateConstant, downstream.Slug())
		}
		return nil
	}

	return writeGraph(output, store)
}

func (builder *CommandBuilder) runRegister(command *cobra.Command, arguments []string) error {
	target, parseError := repository.ParseSlug(arguments[0])
	if parseError != nil {
		return parseError
	}
	installationID, _ := command.Flags().GetInt64(flagInstallationIDNameConstant)
	if installationID <= 0 {
		return errInstallationRequired
	}

	logger := builder.resolveLogger()
	configuration := builder.resolveConfiguration(command)
	executionContext := commandContext(command)

	store, storeError := builder.Assembler.OpenStore(configuration, logger)
	if storeError != nil {
		return wrapCommandError(command.Name(), storeError)
	}
	provider, providerError := builder.Assembler.Provider(executionContext, configuration, logger)
	if providerError != nil {
		return wrapCommandError(command.Name(), providerError)
	}
	resolver, resolverError := builder.Assembler.Resolver(configuration, provider, store, logger)
	if resolverError != nil {
		return wrapCommandError(command.Name(), resolverError)
	}

	document, applyError := resolver.Apply(executionContext, installationID, target)
	if applyError != nil {
		return wrapCommandError(command.Name(), applyError)
	}

	output := command.OutOrStdout()
	if len(document.Upstreams) == 0 {
		fmt.Fprintf(output, noUpstreamsOutputTemplateConstant, target.Slug())
		return nil
	}
	fmt.Fprintf(output, registeredOutputTemplateConstant, target.Slug(), strings.Join(document.Upstreams, upstreamListSeparatorConstant))
	return nil
}

func (builder *CommandBuilder) runWhoAmI(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}
	logger := builder.resolveLogger()
	executionContext := commandContext(command)

	provider, providerError := builder.Assembler.Provider(executionContext, builder.resolveConfiguration(command), logger)
	if providerError != nil {
		return wrapCommandError(command.Name(), providerError)
	}
	app, appError := provider.AppClient().GetAuthenticatedApp(executionContext)
	if appError != nil {
		return wrapCommandError(command.Name(), appError)
	}

	fmt.Fprintf(command.OutOrStdout(), authenticatedAsOutputTemplateConstant, app.Name, app.ID, app.Slug)
	return nil
}

// logAuthenticatedApp reports the app identity at startup. Failure is logged
// as a warning and does not stop the service.
func logAuthenticatedApp(ctx context.Context, provider *githubauth.Provider, logger *zap.Logger) {
	app, appError := provider.AppClient().GetAuthenticatedApp(ctx)
	if appError != nil {
		logger.Warn(authenticationCheckFailedConstant, zap.Error(appError))
		return
	}
	logger.Info(
		authenticatedAsMessageConstant,
		zap.String(logFieldAppNameConstant, app.Name),
		zap.String(logFieldAppSlugConstant, app.Slug),
		zap.Int64(logFieldAppIDConstant, app.ID),
	)
}

func writeGraph(output io.Writer, store *repograph.Store) error {
	tabWriter := tabwriter.NewWriter(output, 0, 4, 2, ' ', 0)
	for _, upstreamSlug := range store.Upstreams() {
		for _, downstream := range store.DownstreamsOf(upstreamSlug) {
			fmt.Fprintf(tabWriter, graphLineTemplateConstant, upstreamSlug, downstream.Slug())
		}
	}
	return tabWriter.Flush()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// resolveConfiguration prefers an explicit provider, then the configuration
// attached to the command context, then the defaults.
func (builder *CommandBuilder) resolveConfiguration(command *cobra.Command) Configuration {
	if builder.ConfigurationProvider != nil {
		return builder.ConfigurationProvider().sanitize()
	}
	if configuration, found := ConfigurationFromContext(commandContext(command)); found {
		return configuration.sanitize()
	}
	return DefaultConfiguration()
}

func commandContext(command *cobra.Command) context.Context {
	if command == nil || command.Context() == nil {
		return context.Background()
	}
	return command.Context()
}

func wrapCommandError(commandName string, cause error) error {
	return fmt.Errorf(commandExecutionErrorTemplateConstant, commandName, cause)
}
