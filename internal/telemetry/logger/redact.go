package logger

import (
	"log/slog"
	"strings"
)

// Authorization schemes whose credential part is masked wherever it appears.
var sensitiveSchemes = []string{
	"Bearer ",
	"Basic ",
}

// Key fragments that mark an attribute as holding a credential.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"credential",
	"authorization",
	"api_key",
	"apikey",
}

const redactedValue = "***REDACTED***"

func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		v := a.Value.String()
		if masked, ok := maskScheme(v); ok {
			return slog.String(a.Key, masked)
		}
		if v != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

func maskScheme(v string) (string, bool) {
	for _, scheme := range sensitiveSchemes {
		if strings.HasPrefix(v, scheme) {
			return scheme + maskValue(v[len(scheme):]), true
		}
	}
	return "", false
}

// maskValue keeps the first and last three characters of long values.
func maskValue(v string) string {
	if len(v) <= 8 {
		return "***"
	}
	return v[:3] + "..." + v[len(v)-3:]
}

// RedactString masks a credential before it is logged or printed.
func RedactString(v string) string {
	if masked, ok := maskScheme(v); ok {
		return masked
	}
	if v == "" {
		return ""
	}
	return maskValue(v)
}

// IsSensitiveKey reports whether a key name suggests credential content.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(k, pattern) {
			return true
		}
	}
	return false
}
