package internal

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "[REDACTED]"

// secretPatterns matches common secret-bearing patterns in error and log
// strings. The stores are local and trusted, but paths and payload
// fragments still leak into logs, so anything that looks like a credential
// is scrubbed before formatting.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret[_-]?key|auth[_-]?token|bearer)\s*[:=]\s*"?([A-Za-z0-9_\-./+=]{16,})"?`),
	regexp.MustCompile(`(?i)(Bearer\s+)([A-Za-z0-9_\-./+=]{16,})`),
	regexp.MustCompile(`(?i)(token|secret|password)\s*[:=]\s*"?([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})"?`),
}

// Redact replaces secret-bearing patterns in the input with [REDACTED].
func Redact(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, pat := range secretPatterns {
		result = pat.ReplaceAllStringFunc(result, func(match string) string {
			submatch := pat.FindStringSubmatch(match)
			if len(submatch) >= 3 {
				return submatch[1] + redactedPlaceholder
			}
			return redactedPlaceholder
		})
	}
	return result
}

// RedactField returns the redaction placeholder when the field name looks
// like a credential, and the value unchanged otherwise.
func RedactField(name, value string) string {
	lower := strings.ToLower(name)
	for _, sensitive := range []string{"api_key", "apikey", "secret", "token", "password", "credential"} {
		if strings.Contains(lower, sensitive) {
			return redactedPlaceholder
		}
	}
	return value
}
