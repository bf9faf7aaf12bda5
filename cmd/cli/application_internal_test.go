package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/cascade/internal/repograph"
	"github.com/temirov/cascade/internal/repository"
	"github.com/temirov/cascade/internal/service"
	"github.com/temirov/cascade/internal/utils"
)

const (
	testConfigurationFileNameConstant = "config.yaml"
	testDownstreamsCommandConstant    = "downstreams"
)

func writeConfigurationFile(testInstance *testing.T, directory string, content string) string {
	testInstance.Helper()
	configurationPath := filepath.Join(directory, testConfigurationFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(content), 0o600))
	return configurationPath
}

func executeApplication(testInstance *testing.T, application *Application, arguments ...string) (string, error) {
	testInstance.Helper()
	output := &bytes.Buffer{}
	application.rootCommand.SetOut(output)
	application.rootCommand.SetErr(output)
	application.rootCommand.SetArgs(arguments)
	executionError := application.rootCommand.Execute()
	return output.String(), executionError
}

func TestApplicationRegistersServiceCommands(testInstance *testing.T) {
	application := NewApplication()
	require.NoError(testInstance, application.buildError)

	registered := map[string]bool{}
	for _, command := range application.rootCommand.Commands() {
		registered[command.Name()] = true
	}
	for _, expectedName := range []string{"serve", "downstreams", "register", "whoami"} {
		require.True(testInstance, registered[expectedName], expectedName)
	}
}

func TestApplicationEmbeddedDefaults(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()
	storePath := filepath.Join(temporaryDirectory, "db.json")
	configurationPath := writeConfigurationFile(testInstance, temporaryDirectory, "store:\n  path: "+storePath+"\n")

	application := NewApplication()
	_, executionError := executeApplication(testInstance, application, "--config", configurationPath, testDownstreamsCommandConstant)
	require.NoError(testInstance, executionError)

	configuration := application.configuration
	require.Equal(testInstance, "info", configuration.Common.LogLevel)
	require.Equal(testInstance, "structured", configuration.Common.LogFormat)
	require.Equal(testInstance, "https://api.github.com", configuration.GitHub.APIBaseURL)
	require.Equal(testInstance, "file:github-app-private-key.pem", configuration.GitHub.PrivateKey)
	require.Equal(testInstance, "env:GITHUB_APP_SECRET", configuration.GitHub.WebhookSecret)
	require.Equal(testInstance, 30*time.Second, configuration.GitHub.RequestTimeout)
	require.Equal(testInstance, ":3000", configuration.Server.ListenAddress)
	require.Equal(testInstance, "/", configuration.Server.WebhookPath)
	require.Equal(testInstance, 10*time.Second, configuration.Server.ReadHeaderTimeout)
	require.Equal(testInstance, 15*time.Second, configuration.Server.ShutdownTimeout)
	require.Equal(testInstance, storePath, configuration.Store.Path)
	require.Equal(testInstance, "cascade.yml", configuration.Cascade.ConfigurationFile)
	require.Equal(testInstance, configurationPath, application.configurationMetadata.ConfigFileUsed)

	downstreamsCommand, _, findError := application.rootCommand.Find([]string{testDownstreamsCommandConstant})
	require.NoError(testInstance, findError)
	contextConfiguration, found := service.ConfigurationFromContext(downstreamsCommand.Context())
	require.True(testInstance, found)
	require.Equal(testInstance, configuration.Configuration, contextConfiguration)
	loadedConfiguration, found := utils.LoadedConfigurationContext.From(downstreamsCommand.Context())
	require.True(testInstance, found)
	require.Equal(testInstance, configurationPath, loadedConfiguration.ConfigFileUsed)
}

func TestApplicationEnvironmentOverrides(testInstance *testing.T) {
	testCases := []struct {
		name             string
		environment      map[string]string
		expectedAppID    int64
		expectedClientID string
	}{
		{
			name:          "conventional_app_id",
			environment:   map[string]string{"GITHUB_APP_ID": "99"},
			expectedAppID: 99,
		},
		{
			name:             "conventional_client_id",
			environment:      map[string]string{"GITHUB_APP_CLIENT_ID": "Iv1.conventional"},
			expectedClientID: "Iv1.conventional",
		},
		{
			name:          "prefixed_name_takes_precedence",
			environment:   map[string]string{"GITHUB_APP_ID": "99", "CASCADE_GITHUB_APP_ID": "5"},
			expectedAppID: 5,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			for environmentName, environmentValue := range testCase.environment {
				testInstance.Setenv(environmentName, environmentValue)
			}
			temporaryDirectory := testInstance.TempDir()
			configurationPath := writeConfigurationFile(testInstance, temporaryDirectory, "store:\n  path: "+filepath.Join(temporaryDirectory, "db.json")+"\n")

			application := NewApplication()
			_, executionError := executeApplication(testInstance, application, "--config", configurationPath, testDownstreamsCommandConstant)
			require.NoError(testInstance, executionError)
			require.Equal(testInstance, testCase.expectedAppID, application.configuration.GitHub.AppID)
			require.Equal(testInstance, testCase.expectedClientID, application.configuration.GitHub.ClientID)
		})
	}
}

func TestApplicationDownstreamsUsesConfiguredStore(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()
	storePath := filepath.Join(temporaryDirectory, "graph.json")
	store, loadError := repograph.Load(storePath, zap.NewNop())
	require.NoError(testInstance, loadError)
	require.NoError(testInstance, store.Register("acme/core", repository.Identity{Owner: "acme", Name: "widgets"}))

	configurationPath := writeConfigurationFile(testInstance, temporaryDirectory, "store:\n  path: "+storePath+"\n")

	application := NewApplication()
	output, executionError := executeApplication(testInstance, application, "--config", configurationPath, testDownstreamsCommandConstant, "acme/core")
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "acme/widgets\n", output)
}

func TestApplicationLoggingFlags(testInstance *testing.T) {
	testCases := []struct {
		name        string
		arguments   []string
		expectError bool
	}{
		{name: "console_debug", arguments: []string{"--log-level", "debug", "--log-format", "console"}},
		{name: "warning_alias", arguments: []string{"--log-level", "warning"}},
		{name: "unknown_level", arguments: []string{"--log-level", "verbose"}, expectError: true},
		{name: "unknown_format", arguments: []string{"--log-format", "xml"}, expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			temporaryDirectory := testInstance.TempDir()
			configurationPath := writeConfigurationFile(testInstance, temporaryDirectory, "store:\n  path: "+filepath.Join(temporaryDirectory, "db.json")+"\n")

			arguments := append([]string{"--config", configurationPath}, testCase.arguments...)
			arguments = append(arguments, testDownstreamsCommandConstant)

			application := NewApplication()
			_, executionError := executeApplication(testInstance, application, arguments...)
			if testCase.expectError {
				require.Error(testInstance, executionError)
				return
			}
			require.NoError(testInstance, executionError)
		})
	}
}

func TestApplicationMissingConfigurationFile(testInstance *testing.T) {
	application := NewApplication()
	_, executionError := executeApplication(testInstance, application, "--config", filepath.Join(testInstance.TempDir(), "absent.yaml"), testDownstreamsCommandConstant)
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), "unable to load configuration")
}

func TestApplicationVersionFlag(testInstance *testing.T) {
	application := NewApplication()
	output, executionError := executeApplication(testInstance, application, "--version")
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "cascade version "+resolveVersion()+"\n", output)
}

func TestEmbeddedDefaultConfigurationIsCopied(testInstance *testing.T) {
	firstContent, configurationType := EmbeddedDefaultConfiguration()
	require.Equal(testInstance, configurationTypeConstant, configurationType)
	require.NotEmpty(testInstance, firstContent)

	firstContent[0] = '#'
	secondContent, _ := EmbeddedDefaultConfiguration()
	require.NotEqual(testInstance, firstContent[0], secondContent[0])
}
