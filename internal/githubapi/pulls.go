package githubapi

import (
	"context"
	"fmt"
	"net/http"
)

const (
	createPullRequestOperationNameConstant = OperationName("CreatePullRequest")
	pullRequestsPathTemplateConstant       = "/repos/%s/%s/pulls"
)

// CreatePullRequest opens a pull request from request.Head into request.Base.
func (client *Client) CreatePullRequest(ctx context.Context, owner string, repository string, request CreatePullRequestRequest) (PullRequest, error) {
	if validationError := requireRepository(owner, repository); validationError != nil {
		return PullRequest{}, validationError
	}
	if validationError := requireValues(
		requiredField{name: titleFieldNameConstant, value: request.Title},
		requiredField{name: headFieldNameConstant, value: request.Head},
		requiredField{name: baseFieldNameConstant, value: request.Base},
	); validationError != nil {
		return PullRequest{}, validationError
	}

	var pullRequest PullRequest
	path := fmt.Sprintf(pullRequestsPathTemplateConstant, escapePath(owner), escapePath(repository))
	if executionError := client.execute(ctx, createPullRequestOperationNameConstant, http.MethodPost, path, request, &pullRequest); executionError != nil {
		return PullRequest{}, executionError
	}
	return pullRequest, nil
}
