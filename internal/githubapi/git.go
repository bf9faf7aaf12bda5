package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	getReferenceOperationNameConstant    = OperationName("GetReference")
	createReferenceOperationNameConstant = OperationName("CreateReference")
	updateReferenceOperationNameConstant = OperationName("UpdateReference")
	getCommitOperationNameConstant       = OperationName("GetCommit")
	createCommitOperationNameConstant    = OperationName("CreateCommit")
	singleReferencePathTemplateConstant  = "/repos/%s/%s/git/ref/%s"
	referencesPathTemplateConstant       = "/repos/%s/%s/git/refs"
	referencePathTemplateConstant        = "/repos/%s/%s/git/refs/%s"
	commitsPathTemplateConstant          = "/repos/%s/%s/git/commits"
	commitPathTemplateConstant           = "/repos/%s/%s/git/commits/%s"
	fullReferencePrefixConstant          = "refs/"
	branchReferencePrefixConstant        = "heads/"
)

// BranchReference renders the short reference name for a branch, e.g. heads/main.
func BranchReference(branchName string) string {
	return branchReferencePrefixConstant + strings.TrimSpace(branchName)
}

// GetReference resolves a reference such as heads/main.
func (client *Client) GetReference(ctx context.Context, owner string, repository string, reference string) (Reference, error) {
	if validationError := requireRepository(owner, repository); validationError != nil {
		return Reference{}, validationError
	}
	if validationError := requireValues(requiredField{name: referenceFieldNameConstant, value: reference}); validationError != nil {
		return Reference{}, validationError
	}

	var result Reference
	path := fmt.Sprintf(singleReferencePathTemplateConstant, escapePath(owner), escapePath(repository), escapePath(shortReference(reference)))
	if executionError := client.execute(ctx, getReferenceOperationNameConstant, http.MethodGet, path, nil, &result); executionError != nil {
		return Reference{}, executionError
	}
	return result, nil
}

// CreateReference creates reference (heads/name or refs/heads/name) at sha.
// GitHub answers 422 when the reference already exists.
func (client *Client) CreateReference(ctx context.Context, owner string, repository string, reference string, sha string) (Reference, error) {
	if validationError := requireRepository(owner, repository); validationError != nil {
		return Reference{}, validationError
	}
	if validationError := requireValues(
		requiredField{name: referenceFieldNameConstant, value: reference},
		requiredField{name: shaFieldNameConstant, value: sha},
	); validationError != nil {
		return Reference{}, validationError
	}

	payload := struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	}{
		Ref: fullReferencePrefixConstant + shortReference(reference),
		SHA: sha,
	}

	var result Reference
	path := fmt.Sprintf(referencesPathTemplateConstant, escapePath(owner), escapePath(repository))
	if executionError := client.execute(ctx, createReferenceOperationNameConstant, http.MethodPost, path, payload, &result); executionError != nil {
		return Reference{}, executionError
	}
	return result, nil
}

// UpdateReference moves reference to sha. With force disabled GitHub only
// accepts fast-forward updates.
func (client *Client) UpdateReference(ctx context.Context, owner string, repository string, reference string, sha string, force bool) (Reference, error) {
	if validationError := requireRepository(owner, repository); validationError != nil {
		return Reference{}, validationError
	}
	if validationError := requireValues(
		requiredField{name: referenceFieldNameConstant, value: reference},
		requiredField{name: shaFieldNameConstant, value: sha},
	); validationError != nil {
		return Reference{}, validationError
	}

	payload := struct {
		SHA   string `json:"sha"`
		Force bool   `json:"force"`
	}{SHA: sha, Force: force}

	var result Reference
	path := fmt.Sprintf(referencePathTemplateConstant, escapePath(owner), escapePath(repository), escapePath(shortReference(reference)))
	if executionError := client.execute(ctx, updateReferenceOperationNameConstant, http.MethodPatch, path, payload, &result); executionError != nil {
		return Reference{}, executionError
	}
	return result, nil
}

// GetCommit retrieves a git commit object by sha.
func (client *Client) GetCommit(ctx context.Context, owner string, repository string, sha string) (Commit, error) {
	if validationError := requireRepository(owner, repository); validationError != nil {
		return Commit{}, validationError
	}
	if validationError := requireValues(requiredField{name: shaFieldNameConstant, value: sha}); validationError != nil {
		return Commit{}, validationError
	}

	var commit Commit
	path := fmt.Sprintf(commitPathTemplateConstant, escapePath(owner), escapePath(repository), escapePath(sha))
	if executionError := client.execute(ctx, getCommitOperationNameConstant, http.MethodGet, path, nil, &commit); executionError != nil {
		return Commit{}, executionError
	}
	return commit, nil
}

// CreateCommit creates a git commit object without moving any reference.
func (client *Client) CreateCommit(ctx context.Context, owner string, repository string, request CreateCommitRequest) (Commit, error) {
	if validationError := requireRepository(owner, repository); validationError != nil {
		return Commit{}, validationError
	}
	if validationError := requireValues(requiredField{name: treeFieldNameConstant, value: request.Tree}); validationError != nil {
		return Commit{}, validationError
	}

	var commit Commit
	path := fmt.Sprintf(commitsPathTemplateConstant, escapePath(owner), escapePath(repository))
	if executionError := client.execute(ctx, createCommitOperationNameConstant, http.MethodPost, path, request, &commit); executionError != nil {
		return Commit{}, executionError
	}
	return commit, nil
}

func shortReference(reference string) string {
	return strings.TrimPrefix(strings.TrimSpace(reference), fullReferencePrefixConstant)
}
