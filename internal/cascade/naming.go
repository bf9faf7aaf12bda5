package cascade

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	commitMessageTemplateConstant         = "Cascade from %s PR %d"
	pullRequestTitleTemplateConstant      = "Upstream update %s for PR %d"
	pullRequestBodySeparatorConstant      = "\n---"
	pullRequestBodyIndentConstant         = 2
	slugReplacementRuneConstant           = '-'
	provenanceEncodeErrorTemplateConstant = "unable to render upstream provenance: %w"
)

// Slugify lower-cases text and replaces every character outside
// [a-z0-9-] with a hyphen. The result is safe to use as a branch name and
// Slugify(Slugify(text)) == Slugify(text).
func Slugify(text string) string {
	return strings.Map(func(character rune) rune {
		switch {
		case character >= 'a' && character <= 'z':
			return character
		case character >= '0' && character <= '9':
			return character
		case character == slugReplacementRuneConstant:
			return character
		default:
			return slugReplacementRuneConstant
		}
	}, strings.ToLower(text))
}

// CommitMessage is the marker commit message for an upstream pull request.
func CommitMessage(sourceRepositoryName string, pullRequestID int64) string {
	return fmt.Sprintf(commitMessageTemplateConstant, sourceRepositoryName, pullRequestID)
}

// BranchName is the downstream branch tracking an upstream pull request.
func BranchName(sourceRepositoryName string, pullRequestID int64) string {
	return Slugify(CommitMessage(sourceRepositoryName, pullRequestID))
}

// PullRequestTitle is the title of the downstream tracking pull request.
func PullRequestTitle(sourceRepositoryName string, pullRequestNumber int) string {
	return fmt.Sprintf(pullRequestTitleTemplateConstant, sourceRepositoryName, pullRequestNumber)
}

// Provenance is the structured block embedded in downstream pull request bodies.
type Provenance struct {
	Upstream UpstreamProvenance `yaml:"upstream"`
}

// UpstreamProvenance names the upstream change a downstream pull request tracks.
type UpstreamProvenance struct {
	Repository    string `yaml:"repo"`
	Branch        string `yaml:"branch"`
	PullRequestID int64  `yaml:"pull_request_id"`
}

// PullRequestBody renders provenance as YAML followed by a separator line.
func PullRequestBody(provenance Provenance) (string, error) {
	var buffer bytes.Buffer
	encoder := yaml.NewEncoder(&buffer)
	encoder.SetIndent(pullRequestBodyIndentConstant)
	if encodeError := encoder.Encode(provenance); encodeError != nil {
		return "", fmt.Errorf(provenanceEncodeErrorTemplateConstant, encodeError)
	}
	if closeError := encoder.Close(); closeError != nil {
		return "", fmt.Errorf(provenanceEncodeErrorTemplateConstant, closeError)
	}
	return buffer.String() + pullRequestBodySeparatorConstant, nil
}
