// Package webhook receives GitHub App deliveries, authenticates them, and
// routes pull request events to the cascade engine or the configuration
// resolver.
package webhook
