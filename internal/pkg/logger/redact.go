package logger

import "strings"

// sensitiveKeyParts mark log field keys whose values must never be
// printed in full (platform tokens, LLM API keys, session secrets).
var sensitiveKeyParts = []string{"token", "secret", "api_key", "apikey", "password", "authorization"}

// RedactSecret masks a credential, keeping only a short prefix so
// operators can tell which key was in play.
// "sk-abc123def456" -> "sk-a***"
func RedactSecret(v string) string {
	if len(v) <= 4 {
		return "***"
	}
	return v[:4] + "***"
}

func redactValue(key, val string) string {
	k := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(k, part) {
			return RedactSecret(val)
		}
	}
	return val
}
