// Package service assembles the cascade webhook service from configuration
// and exposes the serve, downstreams, register, and whoami commands.
package service
