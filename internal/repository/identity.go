package repository

import (
	"errors"
	"fmt"
	"strings"
)

const (
	slugSeparatorConstant               = "/"
	slugTemplateConstant                = "%s/%s"
	installationMissingMessageConstant  = "app misconfigured, installation id not set in webhook payload"
	invalidSlugErrorTemplateConstant    = "invalid repository slug %q: %s"
	slugSeparatorMissingMessageConstant = "expected owner/name"
	slugComponentMissingMessageConstant = "owner and name must be non-empty"
	identityOwnerMissingMessageConstant = "repository owner must be provided"
	identityNameMissingMessageConstant  = "repository name must be provided"
)

// ErrInstallationMissing reports an inbound event that carries no GitHub App installation id.
var ErrInstallationMissing = errors.New(installationMissingMessageConstant)

// Identity uniquely identifies a GitHub repository by owner and name.
type Identity struct {
	Owner string `json:"owner"`
	Name  string `json:"repo"`
}

// NewIdentity trims and validates owner and name.
func NewIdentity(owner string, name string) (Identity, error) {
	trimmedOwner := strings.TrimSpace(owner)
	if len(trimmedOwner) == 0 {
		return Identity{}, errors.New(identityOwnerMissingMessageConstant)
	}
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) == 0 {
		return Identity{}, errors.New(identityNameMissingMessageConstant)
	}
	return Identity{Owner: trimmedOwner, Name: trimmedName}, nil
}

// ParseSlug converts an "owner/name" slug into an Identity.
func ParseSlug(slug string) (Identity, error) {
	trimmedSlug := strings.TrimSpace(slug)
	ownerPart, namePart, separatorFound := strings.Cut(trimmedSlug, slugSeparatorConstant)
	if !separatorFound {
		return Identity{}, fmt.Errorf(invalidSlugErrorTemplateConstant, slug, slugSeparatorMissingMessageConstant)
	}

	identity, identityError := NewIdentity(ownerPart, namePart)
	if identityError != nil {
		return Identity{}, fmt.Errorf(invalidSlugErrorTemplateConstant, slug, slugComponentMissingMessageConstant)
	}
	return identity, nil
}

// Slug renders the identity as "owner/name".
func (identity Identity) Slug() string {
	return fmt.Sprintf(slugTemplateConstant, identity.Owner, identity.Name)
}

// String implements fmt.Stringer.
func (identity Identity) String() string {
	return identity.Slug()
}

// IsZero reports whether either component is missing.
func (identity Identity) IsZero() bool {
	return len(identity.Owner) == 0 || len(identity.Name) == 0
}
