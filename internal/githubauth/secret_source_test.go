package githubauth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/cascade/internal/githubauth"
)

const (
	testSecretEnvironmentNameConstant = "CASCADE_TEST_SECRET"
	testSecretFilePathConstant        = "/secrets/github-app-private-key.pem"
	testSecretValueConstant           = "super-secret"
)

func TestParseSecretSource(testInstance *testing.T) {
	testCases := []struct {
		name           string
		input          string
		expectedSource githubauth.SecretSource
		expectError    bool
	}{
		{
			name:           "bare_environment_name",
			input:          testSecretEnvironmentNameConstant,
			expectedSource: githubauth.SecretSource{Type: githubauth.SecretSourceTypeEnvironment, Reference: testSecretEnvironmentNameConstant},
		},
		{
			name:           "explicit_environment",
			input:          " ENV: " + testSecretEnvironmentNameConstant,
			expectedSource: githubauth.SecretSource{Type: githubauth.SecretSourceTypeEnvironment, Reference: testSecretEnvironmentNameConstant},
		},
		{
			name:           "file",
			input:          "file:" + testSecretFilePathConstant,
			expectedSource: githubauth.SecretSource{Type: githubauth.SecretSourceTypeFile, Reference: testSecretFilePathConstant},
		},
		{
			name:        "empty",
			input:       "   ",
			expectError: true,
		},
		{
			name:        "environment_without_name",
			input:       "env:",
			expectError: true,
		},
		{
			name:        "file_without_path",
			input:       "file: ",
			expectError: true,
		},
		{
			name:        "unsupported_type",
			input:       "vault:secret/github",
			expectError: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			source, parseError := githubauth.ParseSecretSource(testCase.input)
			if testCase.expectError {
				require.Error(testInstance, parseError)
				return
			}
			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expectedSource, source)
		})
	}
}

func TestSecretResolverResolve(testInstance *testing.T) {
	environment := map[string]string{
		testSecretEnvironmentNameConstant: "  " + testSecretValueConstant + "\n",
		"CASCADE_EMPTY_SECRET":            "   ",
	}
	files := map[string]string{
		testSecretFilePathConstant: "-----BEGIN KEY-----\nabc\n-----END KEY-----\n",
		"/secrets/empty":           "\n",
	}

	resolver := githubauth.NewSecretResolver(
		func(key string) (string, bool) {
			value, found := environment[key]
			return value, found
		},
		func(path string) ([]byte, error) {
			contents, found := files[path]
			if !found {
				return nil, errors.New("file not found")
			}
			return []byte(contents), nil
		},
	)

	testCases := []struct {
		name          string
		source        githubauth.SecretSource
		expectedValue string
		expectError   bool
	}{
		{
			name:          "environment_value_trimmed",
			source:        githubauth.SecretSource{Type: githubauth.SecretSourceTypeEnvironment, Reference: testSecretEnvironmentNameConstant},
			expectedValue: testSecretValueConstant,
		},
		{
			name:          "file_keeps_inner_lines",
			source:        githubauth.SecretSource{Type: githubauth.SecretSourceTypeFile, Reference: testSecretFilePathConstant},
			expectedValue: "-----BEGIN KEY-----\nabc\n-----END KEY-----",
		},
		{
			name:        "environment_missing",
			source:      githubauth.SecretSource{Type: githubauth.SecretSourceTypeEnvironment, Reference: "CASCADE_MISSING"},
			expectError: true,
		},
		{
			name:        "environment_blank",
			source:      githubauth.SecretSource{Type: githubauth.SecretSourceTypeEnvironment, Reference: "CASCADE_EMPTY_SECRET"},
			expectError: true,
		},
		{
			name:        "file_missing",
			source:      githubauth.SecretSource{Type: githubauth.SecretSourceTypeFile, Reference: "/secrets/missing"},
			expectError: true,
		},
		{
			name:        "file_blank",
			source:      githubauth.SecretSource{Type: githubauth.SecretSourceTypeFile, Reference: "/secrets/empty"},
			expectError: true,
		},
		{
			name:        "unsupported_type",
			source:      githubauth.SecretSource{Type: githubauth.SecretSourceType("vault"), Reference: "x"},
			expectError: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			value, resolveError := resolver.Resolve(context.Background(), testCase.source)
			if testCase.expectError {
				require.Error(testInstance, resolveError)
				return
			}
			require.NoError(testInstance, resolveError)
			require.Equal(testInstance, testCase.expectedValue, string(value))
		})
	}
}
