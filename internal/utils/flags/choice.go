package flags

import (
	"fmt"
	"strings"
)

const (
	choiceTypeNameConstant            = "string"
	choiceSeparatorConstant           = "|"
	choicePlaceholderTemplateConstant = "`<%s>`"
	choiceUsageTemplateConstant       = "%s %s"
	invalidChoiceTemplateConstant     = "%q is not one of %s"
)

// Choice is a pflag.Value restricted to a fixed set of case-insensitive
// options. The zero option is allowed and means the flag was not given.
type Choice struct {
	defaultChoice string
	choices       []string
	value         string
}

// NewChoice builds a Choice over choices. defaultChoice is only used when
// rendering usage text.
func NewChoice(defaultChoice string, choices []string) *Choice {
	return &Choice{
		defaultChoice: normalizeChoice(defaultChoice),
		choices:       uniqueChoices(choices),
	}
}

// String returns the selected option.
func (choice *Choice) String() string {
	if choice == nil {
		return ""
	}
	return choice.value
}

// Set validates and stores candidate.
func (choice *Choice) Set(candidate string) error {
	normalizedCandidate := normalizeChoice(candidate)
	for _, option := range choice.choices {
		if option == normalizedCandidate {
			choice.value = normalizedCandidate
			return nil
		}
	}
	return fmt.Errorf(invalidChoiceTemplateConstant, candidate, strings.Join(choice.choices, choiceSeparatorConstant))
}

// Type names the value kind shown in help output.
func (choice *Choice) Type() string {
	return choiceTypeNameConstant
}

// Usage renders description prefixed by the option placeholder.
func (choice *Choice) Usage(description string) string {
	return FormatChoiceUsage(choice.defaultChoice, choice.choices, description)
}

// FormatChoiceUsage builds a usage string where the default option is capitalized inside a placeholder.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	normalizedDefault := normalizeChoice(defaultChoice)
	options := uniqueChoices(choices)
	for optionIndex, option := range options {
		if len(normalizedDefault) > 0 && option == normalizedDefault {
			options[optionIndex] = strings.ToUpper(option)
		}
	}

	placeholder := fmt.Sprintf(choicePlaceholderTemplateConstant, strings.Join(options, choiceSeparatorConstant))
	trimmedDescription := strings.TrimSpace(description)
	if len(trimmedDescription) == 0 {
		return placeholder
	}
	return fmt.Sprintf(choiceUsageTemplateConstant, placeholder, trimmedDescription)
}

func uniqueChoices(choices []string) []string {
	unique := make([]string, 0, len(choices))
	seen := make(map[string]struct{}, len(choices))
	for _, choice := range choices {
		normalized := normalizeChoice(choice)
		if len(normalized) == 0 {
			continue
		}
		if _, duplicate := seen[normalized]; duplicate {
			continue
		}
		seen[normalized] = struct{}{}
		unique = append(unique, normalized)
	}
	return unique
}

func normalizeChoice(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
