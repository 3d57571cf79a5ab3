// Package logging configures the shared logrus logger used by the client.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

var setupMu sync.Mutex

// Setup applies level and format to the standard logrus logger. Unknown levels
// fall back to info; format is "text" (default) or "json".
func Setup(level, format string, out io.Writer) {
	setupMu.Lock()
	defer setupMu.Unlock()

	if out == nil {
		out = os.Stderr
	}
	log.SetOutput(out)

	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	default:
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
}

// Redact hides all but the last four characters of a credential.
// Format: abcdefghij -> ******ghij
func Redact(secret string) string {
	const keep = 4
	if secret == "" {
		return ""
	}
	if len(secret) <= keep {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-keep) + secret[len(secret)-keep:]
}
