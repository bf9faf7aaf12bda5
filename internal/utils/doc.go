// Package utils exposes reusable helpers consumed by multiple commands.
//
// It houses the ConfigurationLoader, which layers embedded defaults, an
// optional configuration file, and environment variables through Viper, and
// the LoggerFactory that builds zap loggers for the service and its commands.
package utils
