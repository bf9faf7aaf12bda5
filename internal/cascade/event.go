package cascade

import "github.com/temirov/cascade/internal/repository"

// PullRequest carries the upstream pull request fields the engine needs.
type PullRequest struct {
	ID      int64
	Number  int
	HeadRef string
}

// PullRequestEvent is a validated upstream pull request delivery.
type PullRequestEvent struct {
	Action         string
	Repository     repository.Identity
	InstallationID int64
	PullRequest    PullRequest
}
