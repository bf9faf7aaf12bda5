package githubapi

import (
	"context"
	"fmt"
	"net/http"
)

const (
	getAuthenticatedAppOperationNameConstant     = OperationName("GetAuthenticatedApp")
	createInstallationTokenOperationNameConstant = OperationName("CreateInstallationToken")
	appPathConstant                              = "/app"
	installationTokenPathTemplateConstant        = "/app/installations/%d/access_tokens"
)

// GetAuthenticatedApp returns the GitHub App the client authenticates as.
// It requires an app JWT rather than an installation token.
func (client *Client) GetAuthenticatedApp(ctx context.Context) (App, error) {
	var app App
	if executionError := client.execute(ctx, getAuthenticatedAppOperationNameConstant, http.MethodGet, appPathConstant, nil, &app); executionError != nil {
		return App{}, executionError
	}
	return app, nil
}

// CreateInstallationToken exchanges the app JWT for an installation token.
func (client *Client) CreateInstallationToken(ctx context.Context, installationID int64) (InstallationToken, error) {
	if installationID <= 0 {
		return InstallationToken{}, InvalidInputError{FieldName: installationFieldNameConstant, Message: positiveValueMessageConstant}
	}

	var token InstallationToken
	path := fmt.Sprintf(installationTokenPathTemplateConstant, installationID)
	if executionError := client.execute(ctx, createInstallationTokenOperationNameConstant, http.MethodPost, path, nil, &token); executionError != nil {
		return InstallationToken{}, executionError
	}
	return token, nil
}
