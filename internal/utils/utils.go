package utils

import "github.com/pkg/errors"

// NormalizeIdentifier converts a name (of a mesh, or of a mesh axis) to a valid identifier:
// only letters, digits, and underscores are allowed.
//
// Invalid characters are replaced with underscores.
// If the name starts with a digit, it is prefixed with an underscore.
func NormalizeIdentifier(name string) string {
	if name == "" {
		return ""
	}
	result := make([]rune, 0, len(name)+1)
	if name[0] >= '0' && name[0] <= '9' {
		result = append(result, '_')
	}
	for _, r := range name {
		if isIdentifierRune(r) {
			result = append(result, r)
		} else {
			result = append(result, '_')
		}
	}
	return string(result)
}

func isIdentifierRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}

// ValidateIdentifier returns an error if name is empty or is not a valid identifier (see NormalizeIdentifier).
// what describes the name in the error message, e.g. "DeviceMesh axis name".
func ValidateIdentifier(what, name string) error {
	if name == "" {
		return errors.Errorf("%s cannot be empty", what)
	}
	if normalized := NormalizeIdentifier(name); normalized != name {
		return errors.Errorf("%s %q is not a valid identifier, suggestion %q", what, name, normalized)
	}
	return nil
}
