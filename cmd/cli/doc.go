// Package cli constructs the cascade command-line interface. It wires the
// Cobra root command to the configuration loader, which layers embedded
// defaults, an optional config file, and CASCADE_ prefixed environment
// variables, and to the zap logger shared by the service commands.
package cli
