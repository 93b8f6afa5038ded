package validators

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
)

var _ validator.String = oneOfValidator{}

// oneOfValidator validates that a string matches one of the allowed values,
// ignoring case. With allowTemplates set, values containing a template action
// are accepted as-is and checked once rendered.
type oneOfValidator struct {
	validValues    []string
	allowTemplates bool
}

func (v oneOfValidator) Description(_ context.Context) string {
	description := fmt.Sprintf("value must be one of: %s (case-insensitive)", strings.Join(v.validValues, ", "))
	if v.allowTemplates {
		description += ", or a template"
	}
	return description
}

func (v oneOfValidator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

func (v oneOfValidator) ValidateString(ctx context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()
	if v.allowTemplates && isTemplate(value) {
		return
	}

	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, validValue := range v.validValues {
		if normalized == strings.ToLower(validValue) {
			return
		}
	}

	response.Diagnostics.AddAttributeError(
		request.Path,
		"Invalid Value",
		fmt.Sprintf("The value %q is not valid. %s", value, upperFirst(v.Description(ctx))),
	)
}

// CaseInsensitiveOneOf returns a validator which ensures that a configured
// value matches one of the provided values, ignoring case.
//
// Unknown values and null values are skipped from validation.
func CaseInsensitiveOneOf(values ...string) validator.String {
	return oneOfValidator{validValues: values}
}

// OneOfOrTemplate is CaseInsensitiveOneOf for fields that may hold a template
// rendered per search, such as scope.
func OneOfOrTemplate(values ...string) validator.String {
	return oneOfValidator{validValues: values, allowTemplates: true}
}

func isTemplate(s string) bool {
	return strings.Contains(s, "{{")
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
