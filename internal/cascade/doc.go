// Package cascade propagates upstream pull request activity into every
// registered downstream repository.
//
// For each downstream the Engine derives a deterministic branch from the
// upstream repository name and pull request id, pushes an empty marker
// commit to it, and opens a pull request that records the upstream
// provenance in its body. Downstreams are processed one after another and a
// failure in one never prevents the next from being attempted.
package cascade
