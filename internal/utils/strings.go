package utils

import (
	"strings"
	"unicode"
)

// ToSnakeCase converts a CamelCase name to snake_case, e.g. "HybridShard" -> "hybrid_shard".
//
// Acronyms are kept together: "HTTPServer" -> "http_server".
func ToSnakeCase(s string) string {
	runes := []rune(s)
	var sb strings.Builder
	sb.Grow(len(s) + 5)
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			sb.WriteRune(r)
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			nextIsLower := i+1 < len(runes) && !unicode.IsUpper(runes[i+1]) && runes[i+1] != '_'
			if (!unicode.IsUpper(prev) && prev != '_') || (unicode.IsUpper(prev) && nextIsLower) {
				sb.WriteByte('_')
			}
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}
