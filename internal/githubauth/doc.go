// Package githubauth authenticates the cascade service as a GitHub App.
//
// AppTokenSource signs short-lived RS256 JWTs with the app private key,
// Provider exchanges them for installation access tokens and hands out
// githubapi clients scoped to an installation, and SecretSource resolves the
// private key and webhook secret from environment variables or files.
package githubauth
