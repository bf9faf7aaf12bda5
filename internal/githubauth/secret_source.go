package githubauth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	pathutils "github.com/temirov/cascade/internal/utils/path"
)

const (
	secretSourceSeparatorConstant              = ":"
	environmentSecretSourceTypeValueConstant   = "env"
	fileSecretSourceTypeValueConstant          = "file"
	secretSourceMissingErrorMessageConstant    = "secret source must be provided"
	environmentNameMissingErrorMessageConstant = "environment variable name must be provided"
	filePathMissingErrorMessageConstant        = "secret file path must be provided"
	environmentLookupNilErrorMessageConstant   = "environment lookup function not configured"
	fileReaderNilErrorMessageConstant          = "file reader function not configured"
	environmentSecretMissingTemplateConstant   = "environment variable %s is not set"
	fileReadErrorTemplateConstant              = "unable to read secret file %s: %w"
	fileSecretEmptyErrorTemplateConstant       = "secret file %s is empty"
	unsupportedSecretSourceTemplateConstant    = "unsupported secret source type %q"
	secretSourceDescriptionTemplateConstant    = "%s:%s"
)

// SecretSourceType enumerates the supported secret retrieval mechanisms.
type SecretSourceType string

// Secret source type enumerations.
const (
	SecretSourceTypeEnvironment SecretSourceType = SecretSourceType(environmentSecretSourceTypeValueConstant)
	SecretSourceTypeFile        SecretSourceType = SecretSourceType(fileSecretSourceTypeValueConstant)
)

// SecretSource specifies where a credential is read from.
type SecretSource struct {
	Type      SecretSourceType
	Reference string
}

// String renders the source in its declaration form without the secret itself.
func (source SecretSource) String() string {
	return fmt.Sprintf(secretSourceDescriptionTemplateConstant, source.Type, source.Reference)
}

// EnvironmentLookup obtains an environment variable value.
type EnvironmentLookup func(key string) (string, bool)

// FileReader reads the contents of a file path.
type FileReader func(path string) ([]byte, error)

// SecretResolver retrieves secrets from configured sources.
type SecretResolver struct {
	environmentLookup EnvironmentLookup
	fileReader        FileReader
	homeExpander      *pathutils.HomeExpander
}

// NewSecretResolver creates a resolver with optional dependency overrides.
func NewSecretResolver(environmentLookup EnvironmentLookup, fileReader FileReader) *SecretResolver {
	resolvedEnvironmentLookup := environmentLookup
	if resolvedEnvironmentLookup == nil {
		resolvedEnvironmentLookup = os.LookupEnv
	}

	resolvedFileReader := fileReader
	if resolvedFileReader == nil {
		resolvedFileReader = os.ReadFile
	}

	return &SecretResolver{
		environmentLookup: resolvedEnvironmentLookup,
		fileReader:        resolvedFileReader,
		homeExpander:      pathutils.NewHomeExpander(),
	}
}

// ParseSecretSource interprets "env:NAME", "file:PATH", or a bare environment variable name.
func ParseSecretSource(sourceValue string) (SecretSource, error) {
	trimmedValue := strings.TrimSpace(sourceValue)
	if len(trimmedValue) == 0 {
		return SecretSource{}, errors.New(secretSourceMissingErrorMessageConstant)
	}

	components := strings.SplitN(trimmedValue, secretSourceSeparatorConstant, 2)
	if len(components) == 1 {
		return SecretSource{
			Type:      SecretSourceTypeEnvironment,
			Reference: trimmedValue,
		}, nil
	}

	sourceType := strings.ToLower(strings.TrimSpace(components[0]))
	reference := strings.TrimSpace(components[1])

	switch sourceType {
	case environmentSecretSourceTypeValueConstant:
		if len(reference) == 0 {
			return SecretSource{}, errors.New(environmentNameMissingErrorMessageConstant)
		}
		return SecretSource{Type: SecretSourceTypeEnvironment, Reference: reference}, nil
	case fileSecretSourceTypeValueConstant:
		if len(reference) == 0 {
			return SecretSource{}, errors.New(filePathMissingErrorMessageConstant)
		}
		return SecretSource{Type: SecretSourceTypeFile, Reference: reference}, nil
	default:
		return SecretSource{}, fmt.Errorf(unsupportedSecretSourceTemplateConstant, sourceType)
	}
}

// Resolve returns the trimmed secret. File contents keep their inner line
// breaks so PEM material survives intact.
func (resolver *SecretResolver) Resolve(resolutionContext context.Context, source SecretSource) ([]byte, error) {
	_ = resolutionContext
	switch source.Type {
	case SecretSourceTypeEnvironment:
		if resolver.environmentLookup == nil {
			return nil, errors.New(environmentLookupNilErrorMessageConstant)
		}
		value, found := resolver.environmentLookup(source.Reference)
		if !found {
			return nil, fmt.Errorf(environmentSecretMissingTemplateConstant, source.Reference)
		}
		trimmedValue := strings.TrimSpace(value)
		if len(trimmedValue) == 0 {
			return nil, fmt.Errorf(environmentSecretMissingTemplateConstant, source.Reference)
		}
		return []byte(trimmedValue), nil
	case SecretSourceTypeFile:
		if resolver.fileReader == nil {
			return nil, errors.New(fileReaderNilErrorMessageConstant)
		}
		filePath := resolver.homeExpander.Expand(source.Reference)
		contents, readError := resolver.fileReader(filePath)
		if readError != nil {
			return nil, fmt.Errorf(fileReadErrorTemplateConstant, filePath, readError)
		}
		trimmedValue := strings.TrimSpace(string(contents))
		if len(trimmedValue) == 0 {
			return nil, fmt.Errorf(fileSecretEmptyErrorTemplateConstant, filePath)
		}
		return []byte(trimmedValue), nil
	default:
		return nil, fmt.Errorf(unsupportedSecretSourceTemplateConstant, source.Type)
	}
}
