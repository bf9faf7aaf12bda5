// Package upstreamconfig reads a repository's cascade.yml and records the
// repository as a downstream of every upstream it declares.
package upstreamconfig
