package logging

import (
	"net/http"
	"regexp"
	"strings"
)

// Sensitive field and header names that should be redacted.
var sensitiveFields = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"credential",
	"x-2fa-code",
}

// Patterns for secrets that should be redacted.
var secretPatterns = []*regexp.Regexp{
	// Session token header echoed into error text or request dumps.
	regexp.MustCompile(`(?i)(x-auth-token["']?\s*[:=]\s*["']?)[A-Za-z0-9_-]{16,}`),

	// JSON login payloads.
	regexp.MustCompile(`(?i)("(?:authToken|password|token)"\s*:\s*")[^"]*`),

	// Bearer tokens
	regexp.MustCompile(`(?i)(bearer\s+)[a-zA-Z0-9._-]{20,}`),

	// Token-bearing query strings (stream URLs).
	regexp.MustCompile(`(?i)([?&](?:token|resume)=)[^&\s]+`),
}

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// Redact replaces sensitive information in a string. The key or prefix of a
// match is kept so the log line stays readable.
func Redact(s string) string {
	result := s
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllString(result, "${1}"+RedactedValue)
	}
	return result
}

// RedactMap redacts sensitive fields in a map.
func RedactMap(m map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(m))
	for k, v := range m {
		switch {
		case IsSensitiveField(k):
			result[k] = RedactedValue
		default:
			if nested, ok := v.(map[string]interface{}); ok {
				result[k] = RedactMap(nested)
			} else if str, ok := v.(string); ok {
				result[k] = Redact(str)
			} else {
				result[k] = v
			}
		}
	}
	return result
}

// RedactHeaders returns a copy of h safe for logging.
func RedactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		if IsSensitiveField(key) {
			out[key] = RedactedValue
			continue
		}
		out[key] = Redact(strings.Join(values, ","))
	}
	return out
}

// IsSensitiveField checks if a field name is considered sensitive.
func IsSensitiveField(name string) bool {
	lowerName := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lowerName, field) {
			return true
		}
	}
	return false
}
