package service_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/cascade/internal/githubauth"
	"github.com/temirov/cascade/internal/repograph"
	"github.com/temirov/cascade/internal/repository"
	"github.com/temirov/cascade/internal/service"
	"github.com/temirov/cascade/internal/utils"
)

const (
	testAppIDConstant             = int64(4242)
	testInstallationIDConstant    = "7"
	testWebhookSecretEnvConstant  = "CASCADE_TEST_WEBHOOK_SECRET"
	testCascadeDeclarationContent = "upstreams:\n  - acme/core\n  - acme/tools\n"
	serveStartedMessage           = "cascade service starting"
	authenticatedMessage          = "authenticated as github app"
)

type fakeGitHubAPI struct {
	server *httptest.Server
	mutex  sync.Mutex
	paths  []string
}

func newFakeGitHubAPI(testInstance *testing.T) *fakeGitHubAPI {
	testInstance.Helper()
	api := &fakeGitHubAPI{}
	api.server = httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		api.mutex.Lock()
		api.paths = append(api.paths, request.Method+" "+request.URL.Path)
		api.mutex.Unlock()

		writer.Header().Set("Content-Type", "application/json")
		switch {
		case request.Method == http.MethodGet && request.URL.Path == "/app":
			_ = json.NewEncoder(writer).Encode(map[string]any{"id": testAppIDConstant, "slug": "cascade-bot", "name": "Cascade Bot"})
		case request.Method == http.MethodPost && request.URL.Path == "/app/installations/7/access_tokens":
			writer.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(writer).Encode(map[string]any{"token": "ghs_test", "expires_at": time.Now().Add(time.Hour).UTC().Format(time.RFC3339)})
		case request.Method == http.MethodGet && request.URL.Path == "/repos/acme/widgets/contents/cascade.yml":
			_ = json.NewEncoder(writer).Encode(map[string]any{
				"type":     "file",
				"path":     "cascade.yml",
				"encoding": "base64",
				"content":  base64.StdEncoding.EncodeToString([]byte(testCascadeDeclarationContent)),
			})
		default:
			writer.WriteHeader(http.StatusNotFound)
			_, _ = writer.Write([]byte(`{"message":"Not Found"}`))
		}
	}))
	testInstance.Cleanup(api.server.Close)
	return api
}

func (api *fakeGitHubAPI) requested() []string {
	api.mutex.Lock()
	defer api.mutex.Unlock()
	return append([]string(nil), api.paths...)
}

func writePrivateKey(testInstance *testing.T) string {
	testInstance.Helper()
	privateKey, generationError := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(testInstance, generationError)
	keyPath := filepath.Join(testInstance.TempDir(), "github-app-private-key.pem")
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	require.NoError(testInstance, os.WriteFile(keyPath, keyPEM, 0o600))
	return keyPath
}

func testConfiguration(testInstance *testing.T, apiBaseURL string) service.Configuration {
	testInstance.Helper()
	configuration := service.DefaultConfiguration()
	configuration.GitHub.AppID = testAppIDConstant
	configuration.GitHub.PrivateKey = "file:" + writePrivateKey(testInstance)
	configuration.GitHub.WebhookSecret = "env:" + testWebhookSecretEnvConstant
	configuration.GitHub.APIBaseURL = apiBaseURL
	configuration.Server.ListenAddress = "127.0.0.1:0"
	configuration.Server.ShutdownTimeout = time.Second
	configuration.Store.Path = filepath.Join(testInstance.TempDir(), "db.json")
	return configuration
}

func buildCommand(testInstance *testing.T, configuration service.Configuration, logger *zap.Logger, commandName string) *cobra.Command {
	testInstance.Helper()
	builder := service.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return logger
		},
		ConfigurationProvider: func() service.Configuration {
			return configuration
		},
		Assembler: service.Assembler{
			SecretResolver: githubauth.NewSecretResolver(func(key string) (string, bool) {
				if key == testWebhookSecretEnvConstant {
					return "webhook-secret", true
				}
				return "", false
			}, nil),
		},
	}
	commands, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	for _, command := range commands {
		if command.Name() == commandName {
			return command
		}
	}
	testInstance.Fatalf("command %s not built", commandName)
	return nil
}

func executeCommand(testInstance *testing.T, command *cobra.Command, arguments ...string) (string, error) {
	testInstance.Helper()
	output := &bytes.Buffer{}
	command.SetOut(output)
	command.SetErr(output)
	command.SetArgs(arguments)
	executionError := command.ExecuteContext(context.Background())
	return output.String(), executionError
}

func TestBuildProvidesServiceCommands(testInstance *testing.T) {
	builder := service.CommandBuilder{}
	commands, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	names := make([]string, 0, len(commands))
	for _, command := range commands {
		names = append(names, command.Name())
	}
	require.Equal(testInstance, []string{"serve", "downstreams", "register", "whoami"}, names)
}

func TestDownstreamsCommand(testInstance *testing.T) {
	configuration := testConfiguration(testInstance, "http://127.0.0.1:1")
	store, loadError := repograph.Load(configuration.Store.Path, zap.NewNop())
	require.NoError(testInstance, loadError)
	require.NoError(testInstance, store.RegisterAll([]string{"acme/core", "acme/tools"}, repository.Identity{Owner: "acme", Name: "widgets"}))
	require.NoError(testInstance, store.Register("acme/core", repository.Identity{Owner: "acme", Name: "gadgets"}))

	testCases := []struct {
		name           string
		arguments      []string
		expectedOutput string
		expectError    bool
	}{
		{name: "single_upstream", arguments: []string{"acme/core"}, expectedOutput: "acme/gadgets\nacme/widgets\n"},
		{name: "unknown_upstream", arguments: []string{"acme/unknown"}, expectedOutput: ""},
		{name: "whole_graph", arguments: nil, expectedOutput: "acme/core   acme/gadgets\nacme/core   acme/widgets\nacme/tools  acme/widgets\n"},
		{name: "invalid_slug", arguments: []string{"acme"}, expectError: true},
		{name: "too_many_arguments", arguments: []string{"acme/core", "acme/tools"}, expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			command := buildCommand(testInstance, configuration, zap.NewNop(), "downstreams")
			output, executionError := executeCommand(testInstance, command, testCase.arguments...)
			if testCase.expectError {
				require.Error(testInstance, executionError)
				return
			}
			require.NoError(testInstance, executionError)
			require.Equal(testInstance, testCase.expectedOutput, output)
		})
	}
}

func TestRegisterCommandAppliesDeclaration(testInstance *testing.T) {
	api := newFakeGitHubAPI(testInstance)
	configuration := testConfiguration(testInstance, api.server.URL)

	command := buildCommand(testInstance, configuration, zap.NewNop(), "register")
	output, executionError := executeCommand(testInstance, command, "acme/widgets", "--installation-id", testInstallationIDConstant)
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "acme/widgets registered as downstream of acme/core, acme/tools\n", output)

	require.Equal(testInstance, []string{
		"POST /app/installations/7/access_tokens",
		"GET /repos/acme/widgets/contents/cascade.yml",
	}, api.requested())

	store, loadError := repograph.Load(configuration.Store.Path, zap.NewNop())
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, []string{"acme/core", "acme/tools"}, store.Upstreams())
	require.Equal(testInstance, []repository.Identity{{Owner: "acme", Name: "widgets"}}, store.DownstreamsOf("acme/core"))
}

func TestRegisterCommandWithoutDeclaration(testInstance *testing.T) {
	api := newFakeGitHubAPI(testInstance)
	configuration := testConfiguration(testInstance, api.server.URL)

	command := buildCommand(testInstance, configuration, zap.NewNop(), "register")
	output, executionError := executeCommand(testInstance, command, "acme/gadgets", "--installation-id", testInstallationIDConstant)
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "acme/gadgets declares no upstreams\n", output)
}

func TestRegisterCommandValidation(testInstance *testing.T) {
	configuration := testConfiguration(testInstance, "http://127.0.0.1:1")

	testCases := []struct {
		name      string
		arguments []string
	}{
		{name: "missing_installation", arguments: []string{"acme/widgets"}},
		{name: "invalid_slug", arguments: []string{"widgets", "--installation-id", "7"}},
		{name: "missing_repository", arguments: []string{"--installation-id", "7"}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			command := buildCommand(testInstance, configuration, zap.NewNop(), "register")
			_, executionError := executeCommand(testInstance, command, testCase.arguments...)
			require.Error(testInstance, executionError)
		})
	}
}

func TestWhoAmICommand(testInstance *testing.T) {
	api := newFakeGitHubAPI(testInstance)
	configuration := testConfiguration(testInstance, api.server.URL)

	command := buildCommand(testInstance, configuration, zap.NewNop(), "whoami")
	output, executionError := executeCommand(testInstance, command)
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "Authenticated as Cascade Bot (app id 4242, slug cascade-bot)\n", output)
}

func TestWhoAmICommandReportsMissingPrivateKey(testInstance *testing.T) {
	configuration := testConfiguration(testInstance, "http://127.0.0.1:1")
	configuration.GitHub.PrivateKey = "file:" + filepath.Join(testInstance.TempDir(), "absent.pem")

	command := buildCommand(testInstance, configuration, zap.NewNop(), "whoami")
	_, executionError := executeCommand(testInstance, command)
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), "github private key")
}

func TestServeCommandRunsUntilCancelled(testInstance *testing.T) {
	api := newFakeGitHubAPI(testInstance)
	configuration := testConfiguration(testInstance, api.server.URL)
	observedCore, observedLogs := observer.New(zap.DebugLevel)

	command := buildCommand(testInstance, configuration, zap.New(observedCore), "serve")
	command.SetArgs([]string{})
	command.SetOut(&bytes.Buffer{})

	loadedContext := utils.LoadedConfigurationContext.With(context.Background(), utils.LoadedConfiguration{ConfigFileUsed: "/etc/cascade/config.yaml"})
	serveContext, cancel := context.WithCancel(loadedContext)
	defer cancel()
	serveResult := make(chan error, 1)
	go func() {
		serveResult <- command.ExecuteContext(serveContext)
	}()

	require.Eventually(testInstance, func() bool {
		return observedLogs.FilterMessage(serveStartedMessage).Len() > 0
	}, 5*time.Second, 10*time.Millisecond)

	startedEntries := observedLogs.FilterMessage(serveStartedMessage).All()
	require.Equal(testInstance, "/etc/cascade/config.yaml", startedEntries[0].ContextMap()["config_file"])
	require.Equal(testInstance, "127.0.0.1:0", startedEntries[0].ContextMap()["listen_address"])

	authenticatedEntries := observedLogs.FilterMessage(authenticatedMessage).All()
	require.Len(testInstance, authenticatedEntries, 1)
	require.Equal(testInstance, "Cascade Bot", authenticatedEntries[0].ContextMap()["app_name"])

	cancel()
	select {
	case serveError := <-serveResult:
		require.NoError(testInstance, serveError)
	case <-time.After(5 * time.Second):
		testInstance.Fatal("serve did not stop")
	}
	require.True(testInstance, strings.HasPrefix(api.requested()[0], "GET /app"))
}

func TestServeCommandRequiresWebhookSecret(testInstance *testing.T) {
	configuration := testConfiguration(testInstance, "http://127.0.0.1:1")
	configuration.GitHub.WebhookSecret = "env:CASCADE_TEST_UNSET_SECRET"

	command := buildCommand(testInstance, configuration, zap.NewNop(), "serve")
	_, executionError := executeCommand(testInstance, command)
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), "github webhook secret")
}

func TestCommandsReadConfigurationFromContext(testInstance *testing.T) {
	configuration := testConfiguration(testInstance, "http://127.0.0.1:1")
	store, loadError := repograph.Load(configuration.Store.Path, zap.NewNop())
	require.NoError(testInstance, loadError)
	require.NoError(testInstance, store.Register("acme/core", repository.Identity{Owner: "acme", Name: "widgets"}))

	builder := service.CommandBuilder{}
	commands, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	var downstreamsCommand *cobra.Command
	for _, command := range commands {
		if command.Name() == "downstreams" {
			downstreamsCommand = command
		}
	}
	require.NotNil(testInstance, downstreamsCommand)

	output := &bytes.Buffer{}
	downstreamsCommand.SetOut(output)
	downstreamsCommand.SetArgs([]string{"acme/core"})
	require.NoError(testInstance, downstreamsCommand.ExecuteContext(service.WithConfiguration(context.Background(), configuration)))
	require.Equal(testInstance, "acme/widgets\n", output.String())
}

func TestConfigurationFromContext(testInstance *testing.T) {
	_, found := service.ConfigurationFromContext(context.Background())
	require.False(testInstance, found)

	configuration := service.DefaultConfiguration()
	configuration.GitHub.AppID = testAppIDConstant
	restored, found := service.ConfigurationFromContext(service.WithConfiguration(context.Background(), configuration))
	require.True(testInstance, found)
	require.Equal(testInstance, configuration, restored)
}
