package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

var apiKeyPattern = regexp.MustCompile(`sk-[A-Za-z0-9_\-]{16,}`)

// Redactor returns a slog ReplaceAttr function that hides credentials.
// Struct fields tagged `masq:"secret"` and well-known credential field names are masked.
func Redactor() func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(
		masq.WithTag("secret"),
		masq.WithFieldName("APIKey"),
		masq.WithFieldName("api_key"),
		masq.WithFieldName("SentryDSN"),
		masq.WithFieldName("sentry_dsn"),
		masq.WithFieldName("RedisPassword"),
		masq.WithFieldName("redis_password"),
		masq.WithRegex(apiKeyPattern),
	)
}
