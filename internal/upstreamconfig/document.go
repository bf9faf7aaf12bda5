package upstreamconfig

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const documentParseErrorTemplateConstant = "unable to parse upstream configuration: %w"

// Document is the parsed form of cascade.yml.
type Document struct {
	Upstreams []string `yaml:"upstreams"`
}

// ParseDocument decodes cascade.yml contents. Entries are trimmed and blank
// entries dropped; slugs are otherwise taken verbatim.
func ParseDocument(contents []byte) (Document, error) {
	var parsed Document
	if decodeError := yaml.Unmarshal(contents, &parsed); decodeError != nil {
		return Document{}, fmt.Errorf(documentParseErrorTemplateConstant, decodeError)
	}

	upstreams := make([]string, 0, len(parsed.Upstreams))
	for _, upstream := range parsed.Upstreams {
		trimmedUpstream := strings.TrimSpace(upstream)
		if len(trimmedUpstream) == 0 {
			continue
		}
		upstreams = append(upstreams, trimmedUpstream)
	}
	parsed.Upstreams = upstreams
	return parsed, nil
}
