package githubapi

import (
	"context"
	"fmt"
	"net/http"
)

const (
	getRepositoryOperationNameConstant = OperationName("GetRepository")
	getContentOperationNameConstant    = OperationName("GetContent")
	repositoryPathTemplateConstant     = "/repos/%s/%s"
	contentPathTemplateConstant        = "/repos/%s/%s/contents/%s"
)

// GetRepository retrieves repository metadata including the default branch.
func (client *Client) GetRepository(ctx context.Context, owner string, repository string) (Repository, error) {
	if validationError := requireRepository(owner, repository); validationError != nil {
		return Repository{}, validationError
	}

	var metadata Repository
	path := fmt.Sprintf(repositoryPathTemplateConstant, escapePath(owner), escapePath(repository))
	if executionError := client.execute(ctx, getRepositoryOperationNameConstant, http.MethodGet, path, nil, &metadata); executionError != nil {
		return Repository{}, executionError
	}
	return metadata, nil
}

// GetContent retrieves a single file from the default branch of a repository.
func (client *Client) GetContent(ctx context.Context, owner string, repository string, filePath string) (Content, error) {
	if validationError := requireRepository(owner, repository); validationError != nil {
		return Content{}, validationError
	}
	if validationError := requireValues(requiredField{name: pathFieldNameConstant, value: filePath}); validationError != nil {
		return Content{}, validationError
	}

	var content Content
	path := fmt.Sprintf(contentPathTemplateConstant, escapePath(owner), escapePath(repository), escapePath(filePath))
	if executionError := client.execute(ctx, getContentOperationNameConstant, http.MethodGet, path, nil, &content); executionError != nil {
		return Content{}, executionError
	}
	return content, nil
}
