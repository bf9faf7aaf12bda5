// Package githubapi is a narrow GitHub REST client for the cascade service.
//
// It covers repository contents and metadata, git references and commits,
// pull request creation, and the GitHub App endpoints used for installation
// token exchange. Every call authenticates through a TokenSource so the same
// client type serves both app-scoped and installation-scoped requests.
package githubapi
