package githubapi

import "strings"

const (
	ownerFieldNameConstant        = "owner"
	repositoryFieldNameConstant   = "repository"
	pathFieldNameConstant         = "path"
	referenceFieldNameConstant    = "ref"
	shaFieldNameConstant          = "sha"
	treeFieldNameConstant         = "tree"
	headFieldNameConstant         = "head"
	baseFieldNameConstant         = "base"
	titleFieldNameConstant        = "title"
	installationFieldNameConstant = "installation_id"
	requiredValueMessageConstant  = "value required"
	positiveValueMessageConstant  = "value must be positive"
)

type requiredField struct {
	name  string
	value string
}

func requireValues(fields ...requiredField) error {
	for _, field := range fields {
		if len(strings.TrimSpace(field.value)) == 0 {
			return InvalidInputError{FieldName: field.name, Message: requiredValueMessageConstant}
		}
	}
	return nil
}

func requireRepository(owner string, repository string) error {
	return requireValues(
		requiredField{name: ownerFieldNameConstant, value: owner},
		requiredField{name: repositoryFieldNameConstant, value: repository},
	)
}
