// Package entity normalizes person-name strings into ordered name elements
// suitable for token-level metadata matching. Splitting a name into elements
// and matching each one independently is what lets a filter hit stored
// variants like "Smith, John" or "Mr. John Q. Smith".
package entity

import "strings"

// Role describes how a name was used in the query.
type Role string

const (
	RoleAuthor      Role = "author"
	RoleSubject     Role = "subject"
	RoleUnspecified Role = "unspecified"
)

// Reference is a resolved person-name reference. Elements preserve the
// token order of the original string after title removal; duplicates are
// kept as given.
type Reference struct {
	Original string
	Elements []string
	Role     Role
}

// honorifics are stripped as whole tokens, case-insensitively, with or
// without a trailing period.
var honorifics = map[string]struct{}{
	"dr":        {},
	"doctor":    {},
	"prof":      {},
	"professor": {},
	"mr":        {},
	"mrs":       {},
	"ms":        {},
	"miss":      {},
	"sir":       {},
	"rev":       {},
	"reverend":  {},
	"capt":      {},
	"captain":   {},
}

// ParseNameElements splits a raw person-name string into its elements,
// dropping honorific titles. It is pure and total: empty, whitespace-only,
// and title-only input all yield a nil slice rather than an error. Element
// casing is preserved even though title matching is case-insensitive.
func ParseNameElements(raw string) []string {
	var elements []string
	for _, tok := range strings.Fields(raw) {
		if isHonorific(tok) {
			continue
		}
		elements = append(elements, tok)
	}
	return elements
}

// ParseRole maps the extraction model's free-text context hint onto a Role.
func ParseRole(context string) Role {
	switch strings.ToLower(strings.TrimSpace(context)) {
	case "author":
		return RoleAuthor
	case "subject":
		return RoleSubject
	default:
		return RoleUnspecified
	}
}

func isHonorific(tok string) bool {
	normalized := strings.ToLower(strings.TrimSuffix(tok, "."))
	_, ok := honorifics[normalized]
	return ok
}
