package logger

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

const redacted = "[REDACTED]"

var (
	bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`)
	secretKeys    = []string{"token", "api_key", "apikey", "authorization", "secret", "password"}
)

// redactHook masks credentials in fields and bearer tokens in messages.
// Dataset, index and completion API keys all travel as bearer headers.
type redactHook struct{}

func (redactHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (redactHook) Fire(entry *logrus.Entry) error {
	for k, v := range entry.Data {
		if isSecretKey(k) {
			entry.Data[k] = redacted
			continue
		}
		if str, ok := v.(string); ok {
			entry.Data[k] = RedactBearer(str)
		}
	}
	if strings.Contains(strings.ToLower(entry.Message), "bearer") {
		entry.Message = RedactBearer(entry.Message)
	}
	return nil
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

// RedactBearer replaces bearer credentials in s.
func RedactBearer(s string) string {
	return bearerPattern.ReplaceAllString(s, "${1}"+redacted)
}
