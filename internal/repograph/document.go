package repograph

import (
	"github.com/temirov/cascade/internal/repository"
)

// document mirrors the on-disk layout:
// {"repos": {"<upstream>": {"downstreams": {"<downstream>": {"owner": "...", "repo": "..."}}}}}
type document struct {
	Repositories map[string]upstreamEntry `json:"repos"`
}

type upstreamEntry struct {
	Downstreams map[string]repository.Identity `json:"downstreams"`
}

func newDocument() document {
	return document{Repositories: make(map[string]upstreamEntry)}
}

func (source document) clone() document {
	duplicate := document{Repositories: make(map[string]upstreamEntry, len(source.Repositories))}
	for upstreamSlug, entry := range source.Repositories {
		downstreams := make(map[string]repository.Identity, len(entry.Downstreams))
		for downstreamSlug, downstream := range entry.Downstreams {
			downstreams[downstreamSlug] = downstream
		}
		duplicate.Repositories[upstreamSlug] = upstreamEntry{Downstreams: downstreams}
	}
	return duplicate
}

// normalize replaces nil maps left by sparse or hand-edited files.
func (source *document) normalize() {
	if source.Repositories == nil {
		source.Repositories = make(map[string]upstreamEntry)
	}
	for upstreamSlug, entry := range source.Repositories {
		if entry.Downstreams == nil {
			entry.Downstreams = make(map[string]repository.Identity)
			source.Repositories[upstreamSlug] = entry
		}
	}
}
