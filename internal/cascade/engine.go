package cascade

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/cascade/internal/githubapi"
	"github.com/temirov/cascade/internal/repository"
)

const (
	clientResolverMissingMessageConstant   = "installation client resolver must be provided"
	downstreamListerMissingMessageConstant = "downstream lister must be provided"
	repositoryMissingMessageConstant       = "event repository must be provided"
	clientErrorTemplateConstant            = "unable to obtain installation client for %s: %w"
	repositoryLookupErrorTemplateConstant  = "unable to read repository %s: %w"
	defaultBranchMissingTemplateConstant   = "repository %s reports no default branch"
	baseReferenceErrorTemplateConstant     = "unable to resolve %s of %s: %w"
	branchCreateErrorTemplateConstant      = "unable to create branch %s in %s: %w"
	branchTipErrorTemplateConstant         = "unable to resolve existing branch %s in %s: %w"
	tipCommitErrorTemplateConstant         = "unable to read commit %s in %s: %w"
	markerCommitErrorTemplateConstant      = "unable to create marker commit in %s: %w"
	branchAdvanceErrorTemplateConstant     = "unable to advance branch %s in %s: %w"
	pullRequestErrorTemplateConstant       = "unable to open pull request in %s: %w"
	cascadeStartedMessageConstant          = "cascading pull request"
	noDownstreamsMessageConstant           = "no downstreams registered"
	branchExistsMessageConstant            = "cascade branch already exists"
	downstreamCascadedMessageConstant      = "downstream pull request opened"
	downstreamFailedMessageConstant        = "downstream cascade failed"
	logFieldUpstreamConstant               = "upstream"
	logFieldDownstreamConstant             = "downstream"
	logFieldActionConstant                 = "action"
	logFieldPullRequestIDConstant          = "pull_request_id"
	logFieldPullRequestNumberConstant      = "pull_request_number"
	logFieldDownstreamCountConstant        = "downstream_count"
	logFieldBranchConstant                 = "branch"
	logFieldPullRequestURLConstant         = "pull_request_url"
)

var (
	// ErrClientResolverMissing indicates the engine was built without a way to reach GitHub.
	ErrClientResolverMissing = errors.New(clientResolverMissingMessageConstant)
	// ErrDownstreamListerMissing indicates the engine was built without a relationship store.
	ErrDownstreamListerMissing = errors.New(downstreamListerMissingMessageConstant)
)

// GitHubClient is the slice of the GitHub REST API a cascade needs.
type GitHubClient interface {
	GetRepository(ctx context.Context, owner string, repository string) (githubapi.Repository, error)
	GetReference(ctx context.Context, owner string, repository string, reference string) (githubapi.Reference, error)
	CreateReference(ctx context.Context, owner string, repository string, reference string, sha string) (githubapi.Reference, error)
	GetCommit(ctx context.Context, owner string, repository string, sha string) (githubapi.Commit, error)
	CreateCommit(ctx context.Context, owner string, repository string, request githubapi.CreateCommitRequest) (githubapi.Commit, error)
	UpdateReference(ctx context.Context, owner string, repository string, reference string, sha string, force bool) (githubapi.Reference, error)
	CreatePullRequest(ctx context.Context, owner string, repository string, request githubapi.CreatePullRequestRequest) (githubapi.PullRequest, error)
}

// ClientResolver returns a client scoped to a GitHub App installation.
type ClientResolver func(ctx context.Context, installationID int64) (GitHubClient, error)

// DownstreamLister reports the downstreams registered for an upstream slug.
type DownstreamLister interface {
	DownstreamsOf(upstreamSlug string) []repository.Identity
}

// Configuration wires the engine collaborators.
type Configuration struct {
	ClientResolver   ClientResolver
	DownstreamLister DownstreamLister
}

// DownstreamResult is the outcome of cascading into one downstream.
type DownstreamResult struct {
	Downstream    repository.Identity
	BranchName    string
	BranchExisted bool
	PullRequest   githubapi.PullRequest
	Err           error
}

// Succeeded reports whether the downstream pull request was opened.
func (result DownstreamResult) Succeeded() bool {
	return result.Err == nil
}

// Report collects the per-downstream outcomes of one cascade.
type Report struct {
	Upstream repository.Identity
	Results  []DownstreamResult
}

// Failures returns the results whose cascade did not complete.
func (report Report) Failures() []DownstreamResult {
	failures := make([]DownstreamResult, 0)
	for _, result := range report.Results {
		if !result.Succeeded() {
			failures = append(failures, result)
		}
	}
	return failures
}

// Engine performs cascades.
type Engine struct {
	clientResolver   ClientResolver
	downstreamLister DownstreamLister
	logger           *zap.Logger
}

// NewEngine validates the configuration and constructs an Engine.
func NewEngine(configuration Configuration, logger *zap.Logger) (*Engine, error) {
	if configuration.ClientResolver == nil {
		return nil, ErrClientResolverMissing
	}
	if configuration.DownstreamLister == nil {
		return nil, ErrDownstreamListerMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		clientResolver:   configuration.ClientResolver,
		downstreamLister: configuration.DownstreamLister,
		logger:           logger,
	}, nil
}

// Cascade opens a tracking pull request in every downstream of the event's
// repository. Per-downstream failures are logged and recorded in the Report;
// only a missing installation or an unobtainable client is returned as an
// error.
func (engine *Engine) Cascade(ctx context.Context, event PullRequestEvent) (Report, error) {
	report := Report{Upstream: event.Repository, Results: []DownstreamResult{}}
	if event.InstallationID <= 0 {
		return report, repository.ErrInstallationMissing
	}
	if event.Repository.IsZero() {
		return report, errors.New(repositoryMissingMessageConstant)
	}

	upstreamSlug := event.Repository.Slug()
	upstreamLogger := engine.logger.With(
		zap.String(logFieldUpstreamConstant, upstreamSlug),
		zap.Int64(logFieldPullRequestIDConstant, event.PullRequest.ID),
		zap.Int(logFieldPullRequestNumberConstant, event.PullRequest.Number),
	)

	downstreams := engine.downstreamLister.DownstreamsOf(upstreamSlug)
	if len(downstreams) == 0 {
		upstreamLogger.Info(noDownstreamsMessageConstant)
		return report, nil
	}

	client, clientError := engine.clientResolver(ctx, event.InstallationID)
	if clientError != nil {
		return report, fmt.Errorf(clientErrorTemplateConstant, upstreamSlug, clientError)
	}

	upstreamLogger.Info(
		cascadeStartedMessageConstant,
		zap.String(logFieldActionConstant, event.Action),
		zap.Int(logFieldDownstreamCountConstant, len(downstreams)),
	)

	for _, downstream := range downstreams {
		result := engine.cascadeDownstream(ctx, client, event, downstream)
		downstreamLogger := upstreamLogger.With(
			zap.String(logFieldDownstreamConstant, downstream.Slug()),
			zap.String(logFieldBranchConstant, result.BranchName),
		)
		if result.Err != nil {
			downstreamLogger.Error(downstreamFailedMessageConstant, zap.Error(result.Err))
		} else {
			downstreamLogger.Info(downstreamCascadedMessageConstant, zap.String(logFieldPullRequestURLConstant, result.PullRequest.HTMLURL))
		}
		report.Results = append(report.Results, result)
	}

	return report, nil
}

func (engine *Engine) cascadeDownstream(ctx context.Context, client GitHubClient, event PullRequestEvent, downstream repository.Identity) DownstreamResult {
	sourceName := event.Repository.Name
	result := DownstreamResult{
		Downstream: downstream,
		BranchName: BranchName(sourceName, event.PullRequest.ID),
	}
	downstreamSlug := downstream.Slug()

	if contextError := ctx.Err(); contextError != nil {
		result.Err = contextError
		return result
	}

	metadata, repositoryError := client.GetRepository(ctx, downstream.Owner, downstream.Name)
	if repositoryError != nil {
		result.Err = fmt.Errorf(repositoryLookupErrorTemplateConstant, downstreamSlug, repositoryError)
		return result
	}
	defaultBranch := metadata.DefaultBranch
	if len(defaultBranch) == 0 {
		result.Err = fmt.Errorf(defaultBranchMissingTemplateConstant, downstreamSlug)
		return result
	}

	baseReferenceName := githubapi.BranchReference(defaultBranch)
	baseReference, baseReferenceError := client.GetReference(ctx, downstream.Owner, downstream.Name, baseReferenceName)
	if baseReferenceError != nil {
		result.Err = fmt.Errorf(baseReferenceErrorTemplateConstant, baseReferenceName, downstreamSlug, baseReferenceError)
		return result
	}

	branchReferenceName := githubapi.BranchReference(result.BranchName)
	branchReference, createError := client.CreateReference(ctx, downstream.Owner, downstream.Name, branchReferenceName, baseReference.Object.SHA)
	if createError != nil {
		if !githubapi.IsUnprocessableEntity(createError) {
			result.Err = fmt.Errorf(branchCreateErrorTemplateConstant, result.BranchName, downstreamSlug, createError)
			return result
		}
		engine.logger.Debug(
			branchExistsMessageConstant,
			zap.String(logFieldDownstreamConstant, downstreamSlug),
			zap.String(logFieldBranchConstant, result.BranchName),
		)
		result.BranchExisted = true
		existingReference, existingError := client.GetReference(ctx, downstream.Owner, downstream.Name, branchReferenceName)
		if existingError != nil {
			result.Err = fmt.Errorf(branchTipErrorTemplateConstant, result.BranchName, downstreamSlug, existingError)
			return result
		}
		branchReference = existingReference
	}

	tipCommit, tipError := client.GetCommit(ctx, downstream.Owner, downstream.Name, branchReference.Object.SHA)
	if tipError != nil {
		result.Err = fmt.Errorf(tipCommitErrorTemplateConstant, branchReference.Object.SHA, downstreamSlug, tipError)
		return result
	}

	markerCommit, markerError := client.CreateCommit(ctx, downstream.Owner, downstream.Name, githubapi.CreateCommitRequest{
		Message: CommitMessage(sourceName, event.PullRequest.ID),
		Tree:    tipCommit.Tree.SHA,
		Parents: []string{tipCommit.SHA},
	})
	if markerError != nil {
		result.Err = fmt.Errorf(markerCommitErrorTemplateConstant, downstreamSlug, markerError)
		return result
	}

	if _, advanceError := client.UpdateReference(ctx, downstream.Owner, downstream.Name, branchReferenceName, markerCommit.SHA, false); advanceError != nil {
		result.Err = fmt.Errorf(branchAdvanceErrorTemplateConstant, result.BranchName, downstreamSlug, advanceError)
		return result
	}

	body, bodyError := PullRequestBody(Provenance{Upstream: UpstreamProvenance{
		Repository:    sourceName,
		Branch:        event.PullRequest.HeadRef,
		PullRequestID: event.PullRequest.ID,
	}})
	if bodyError != nil {
		result.Err = bodyError
		return result
	}

	pullRequest, pullRequestError := client.CreatePullRequest(ctx, downstream.Owner, downstream.Name, githubapi.CreatePullRequestRequest{
		Title: PullRequestTitle(sourceName, event.PullRequest.Number),
		Body:  body,
		Head:  result.BranchName,
		Base:  defaultBranch,
	})
	if pullRequestError != nil {
		result.Err = fmt.Errorf(pullRequestErrorTemplateConstant, downstreamSlug, pullRequestError)
		return result
	}
	result.PullRequest = pullRequest
	return result
}
