package githubapi

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

const (
	base64EncodingNameConstant           = "base64"
	unsupportedContentEncodingTemplate   = "unsupported content encoding %q"
	contentDecodingErrorTemplateConstant = "unable to decode content %s: %w"
)

// App is the authenticated GitHub App identity.
type App struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// InstallationToken is a short-lived installation access token.
type InstallationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Owner is the account owning a repository.
type Owner struct {
	Login string `json:"login"`
}

// Repository carries the repository metadata used by the service.
type Repository struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Owner         Owner  `json:"owner"`
}

// Content is a single file returned by the repository contents API.
type Content struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

// Decode returns the file body. GitHub wraps base64 content at 60 columns.
func (content Content) Decode() ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(content.Encoding)) {
	case base64EncodingNameConstant:
		normalized := strings.NewReplacer("\n", "", "\r", "").Replace(content.Content)
		decoded, decodeError := base64.StdEncoding.DecodeString(normalized)
		if decodeError != nil {
			return nil, fmt.Errorf(contentDecodingErrorTemplateConstant, content.Path, decodeError)
		}
		return decoded, nil
	case "":
		return []byte(content.Content), nil
	default:
		return nil, fmt.Errorf(unsupportedContentEncodingTemplate, content.Encoding)
	}
}

// GitObject is the object a reference points at.
type GitObject struct {
	SHA  string `json:"sha"`
	Type string `json:"type"`
}

// Reference is a git reference such as refs/heads/main.
type Reference struct {
	Ref    string    `json:"ref"`
	Object GitObject `json:"object"`
}

// TreeReference identifies the tree of a commit.
type TreeReference struct {
	SHA string `json:"sha"`
}

// ParentReference identifies a parent commit.
type ParentReference struct {
	SHA string `json:"sha"`
}

// Commit is a git commit object.
type Commit struct {
	SHA     string            `json:"sha"`
	Message string            `json:"message"`
	Tree    TreeReference     `json:"tree"`
	Parents []ParentReference `json:"parents"`
}

// CreateCommitRequest contains the fields for creating a git commit.
type CreateCommitRequest struct {
	Message string   `json:"message"`
	Tree    string   `json:"tree"`
	Parents []string `json:"parents"`
}

// CreatePullRequestRequest contains the fields for opening a pull request.
type CreatePullRequestRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Head  string `json:"head"`
	Base  string `json:"base"`
}

// PullRequest is a pull request returned by the pulls API.
type PullRequest struct {
	ID      int64  `json:"id"`
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
	Title   string `json:"title"`
}
