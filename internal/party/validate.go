package party

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mesh-intelligence/partybook/pkg/types"
)

// phonePattern accepts digits, spaces and + - ( ) . separators.
var phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-.]+$`)

// nameIssue is reported when a party would end up with neither name.
var nameIssue = types.Issue{Field: "name", Reason: "first or last name is required"}

// minPhoneDigits rejects inputs like "()" that are all punctuation.
const minPhoneDigits = 3

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return IsPhone(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// IsPhone reports whether s looks like a phone number.
func IsPhone(s string) bool {
	if !phonePattern.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= minPhoneDigits
}

// Validate trims and checks a create input. It never touches storage.
// On failure it returns a *types.ValidationError listing every bad field.
func Validate(in types.Input) (types.Input, error) {
	dups := categoryIssues(in.Attributes, true)
	in = cleanInput(in)

	var issues []types.Issue
	if in.FirstName == "" && in.LastName == "" {
		issues = append(issues, nameIssue)
	}
	issues = append(issues, structIssues(validate.Struct(in))...)
	issues = append(issues, dups...)
	for cat := range in.Attributes {
		if cat == "" {
			issues = append(issues, types.Issue{Field: "attributes", Reason: "category must not be empty"})
		}
	}
	if len(issues) > 0 {
		return in, &types.ValidationError{Issues: issues}
	}
	return in, nil
}

// ValidatePatch trims supplied patch fields and checks their shape. Blank
// values are allowed since they mean "write empty", except that a patch may
// not blank both names.
func ValidatePatch(p types.Patch) (types.Patch, error) {
	dups := categoryIssues(p.Attributes, false)
	p = cleanPatch(p)

	var issues []types.Issue
	if p.FirstName.Set && p.LastName.Set && p.FirstName.Value == "" && p.LastName.Value == "" {
		issues = append(issues, nameIssue)
	}
	issues = append(issues, dups...)
	if p.Email.Set && p.Email.Value != "" {
		if err := validate.Var(p.Email.Value, "email"); err != nil {
			issues = append(issues, types.Issue{Field: "email", Reason: reason("email")})
		}
	}
	if p.Phone.Set && p.Phone.Value != "" && !IsPhone(p.Phone.Value) {
		issues = append(issues, types.Issue{Field: "phone", Reason: reason("phone")})
	}
	for cat := range p.Attributes {
		if cat == "" {
			issues = append(issues, types.Issue{Field: "attributes", Reason: "category must not be empty"})
		}
	}
	if len(issues) > 0 {
		return p, &types.ValidationError{Issues: issues}
	}
	return p, nil
}

func cleanInput(in types.Input) types.Input {
	for _, f := range []*string{
		&in.FirstName, &in.LastName, &in.Email, &in.Phone, &in.Line1, &in.Line2,
		&in.City, &in.Region, &in.PostalCode, &in.Country,
	} {
		*f = strings.TrimSpace(*f)
	}
	in.Attributes = cleanAttributes(in.Attributes, true)
	return in
}

func cleanPatch(p types.Patch) types.Patch {
	for _, o := range []*types.Optional{
		&p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.Line1, &p.Line2,
		&p.City, &p.Region, &p.PostalCode, &p.Country,
	} {
		o.Value = strings.TrimSpace(o.Value)
	}
	p.Attributes = cleanAttributes(p.Attributes, false)
	return p
}

// cleanAttributes trims keys and values. On create, empty values mean "not
// supplied" and are dropped; in a patch they are kept.
func cleanAttributes(attrs map[string]string, dropEmpty bool) map[string]string {
	if attrs == nil {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		v = strings.TrimSpace(v)
		if dropEmpty && v == "" {
			continue
		}
		out[strings.TrimSpace(k)] = v
	}
	return out
}

// categoryIssues reports attribute keys that name the same category once
// trimmed. With dropEmpty, keys whose value is blank are not counted.
func categoryIssues(attrs map[string]string, dropEmpty bool) []types.Issue {
	seen := make(map[string]int, len(attrs))
	for k, v := range attrs {
		if dropEmpty && strings.TrimSpace(v) == "" {
			continue
		}
		seen[strings.TrimSpace(k)]++
	}
	var dups []string
	for cat, n := range seen {
		if n > 1 {
			dups = append(dups, cat)
		}
	}
	sort.Strings(dups)
	issues := make([]types.Issue, 0, len(dups))
	for _, cat := range dups {
		issues = append(issues, types.Issue{Field: "attributes", Reason: fmt.Sprintf("category %q is given more than once", cat)})
	}
	return issues
}

func structIssues(err error) []types.Issue {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []types.Issue{{Field: "input", Reason: err.Error()}}
	}
	issues := make([]types.Issue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, types.Issue{Field: fe.Field(), Reason: reason(fe.Tag())})
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].Field < issues[j].Field })
	return issues
}

func reason(tag string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be a valid phone number"
	case "max":
		return "is too long"
	default:
		return "failed " + tag + " check"
	}
}
