package githubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultBaseURL is the public GitHub REST endpoint.
	DefaultBaseURL                       = "https://api.github.com"
	apiVersionConstant                   = "2022-11-28"
	acceptHeaderValueConstant            = "application/vnd.github+json"
	contentTypeHeaderValueConstant       = "application/json"
	authorizationHeaderNameConstant      = "Authorization"
	acceptHeaderNameConstant             = "Accept"
	contentTypeHeaderNameConstant        = "Content-Type"
	apiVersionHeaderNameConstant         = "X-GitHub-Api-Version"
	userAgentHeaderNameConstant          = "User-Agent"
	defaultUserAgentConstant             = "cascade"
	bearerPrefixConstant                 = "Bearer "
	pathSeparatorConstant                = "/"
	maximumResponseBodySizeConstant      = 10 * 1024 * 1024
	requestCreationErrorTemplateConstant = "unable to create request: %w"
	requestFailedErrorTemplateConstant   = "%s %s: %w"
	tokenResolutionErrorTemplateConstant = "unable to obtain token: %w"
	responseReadErrorTemplateConstant    = "unable to read response body: %w"
)

// HTTPClient is the subset of *http.Client used by Client.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// TokenSource supplies bearer tokens for outgoing requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function into a TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token calls the wrapped function.
func (function TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return function(ctx)
}

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return TokenSourceFunc(func(context.Context) (string, error) {
		return token, nil
	})
}

// Configuration describes how a Client reaches GitHub.
type Configuration struct {
	BaseURL     string
	UserAgent   string
	HTTPClient  HTTPClient
	TokenSource TokenSource
}

// Client performs authenticated GitHub REST calls.
type Client struct {
	baseURL     string
	userAgent   string
	httpClient  HTTPClient
	tokenSource TokenSource
}

// NewClient constructs a Client, applying defaults for the base URL, user
// agent, and HTTP client.
func NewClient(configuration Configuration) (*Client, error) {
	if configuration.TokenSource == nil {
		return nil, ErrTokenSourceNotConfigured
	}

	baseURL := strings.TrimRight(strings.TrimSpace(configuration.BaseURL), pathSeparatorConstant)
	if len(baseURL) == 0 {
		baseURL = DefaultBaseURL
	}

	userAgent := strings.TrimSpace(configuration.UserAgent)
	if len(userAgent) == 0 {
		userAgent = defaultUserAgentConstant
	}

	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:     baseURL,
		userAgent:   userAgent,
		httpClient:  httpClient,
		tokenSource: configuration.TokenSource,
	}, nil
}

// BaseURL returns the API root the client targets.
func (client *Client) BaseURL() string {
	return client.baseURL
}

// HTTPClient returns the transport the client uses.
func (client *Client) HTTPClient() HTTPClient {
	return client.httpClient
}

func (client *Client) execute(ctx context.Context, operation OperationName, method string, path string, requestBody any, result any) error {
	var bodyReader io.Reader
	if requestBody != nil {
		encodedBody, encodingError := json.Marshal(requestBody)
		if encodingError != nil {
			return PayloadEncodingError{Operation: operation, Cause: encodingError}
		}
		bodyReader = bytes.NewReader(encodedBody)
	}

	requestURL := client.baseURL + path
	request, requestError := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if requestError != nil {
		return OperationError{Operation: operation, Cause: fmt.Errorf(requestCreationErrorTemplateConstant, requestError)}
	}

	token, tokenError := client.tokenSource.Token(ctx)
	if tokenError != nil {
		return OperationError{Operation: operation, Cause: fmt.Errorf(tokenResolutionErrorTemplateConstant, tokenError)}
	}

	request.Header.Set(authorizationHeaderNameConstant, bearerPrefixConstant+token)
	request.Header.Set(acceptHeaderNameConstant, acceptHeaderValueConstant)
	request.Header.Set(apiVersionHeaderNameConstant, apiVersionConstant)
	request.Header.Set(userAgentHeaderNameConstant, client.userAgent)
	if requestBody != nil {
		request.Header.Set(contentTypeHeaderNameConstant, contentTypeHeaderValueConstant)
	}

	response, responseError := client.httpClient.Do(request)
	if responseError != nil {
		return OperationError{Operation: operation, Cause: fmt.Errorf(requestFailedErrorTemplateConstant, method, path, responseError)}
	}
	defer response.Body.Close()

	responseBody, readError := io.ReadAll(io.LimitReader(response.Body, maximumResponseBodySizeConstant))
	if readError != nil {
		return OperationError{Operation: operation, Cause: fmt.Errorf(responseReadErrorTemplateConstant, readError)}
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return OperationError{Operation: operation, Cause: parseAPIError(response.StatusCode, responseBody)}
	}

	if result == nil {
		return nil
	}

	if decodingError := json.Unmarshal(responseBody, result); decodingError != nil {
		return ResponseDecodingError{Operation: operation, Cause: decodingError}
	}

	return nil
}

func parseAPIError(statusCode int, body []byte) *APIError {
	apiError := &APIError{StatusCode: statusCode}

	var wireError struct {
		Message          string            `json:"message"`
		DocumentationURL string            `json:"documentation_url"`
		Errors           []ValidationError `json:"errors"`
	}
	if json.Unmarshal(body, &wireError) == nil && len(wireError.Message) > 0 {
		apiError.Message = wireError.Message
		apiError.DocumentationURL = wireError.DocumentationURL
		apiError.Errors = wireError.Errors
		return apiError
	}

	apiError.Message = strings.TrimSpace(string(body))
	return apiError
}

// escapePath escapes every segment of a slash separated path while keeping
// the separators, so refs like heads/feature/x stay addressable.
func escapePath(rawPath string) string {
	segments := strings.Split(strings.Trim(rawPath, pathSeparatorConstant), pathSeparatorConstant)
	for segmentIndex, segment := range segments {
		segments[segmentIndex] = url.PathEscape(segment)
	}
	return strings.Join(segments, pathSeparatorConstant)
}
