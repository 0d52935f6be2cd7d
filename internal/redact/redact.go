// Package redact keeps message text out of audit records. Operation
// parameters are reduced to settings: text-bearing values are replaced by
// their size and values under secret-like keys are masked.
package redact

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	redactedSecret = "[REDACTED_SECRET]"

	// maxSettingLen is the longest string parameter kept verbatim. Longer
	// strings are treated as message text.
	maxSettingLen = 32
)

// textKeys name parameters that always carry message text.
var textKeys = map[string]struct{}{
	"cover":  {},
	"input":  {},
	"output": {},
	"secret": {},
	"text":   {},
}

var (
	secretKeyRe = regexp.MustCompile(`(?i)(password|passphrase|token|api[-_]?key|private[-_]?key|secret)`)
	kvSecretRe  = regexp.MustCompile(`(?i)((?:api|token|secret|key|password)[-_ ]*(?:id|key|token)?\s*[:=]\s*)(['\"]?)([A-Za-z0-9+/=_\-]{8,})(['\"]?)`)
	bearerRe    = regexp.MustCompile(`(?i)\b(bearer|token)\s+([A-Za-z0-9._\-]{10,})`)
	longTokenRe = regexp.MustCompile(`\b[A-Za-z0-9]{32,}\b`)
)

// String masks credentials and long opaque tokens in free text such as an
// error reason.
func String(in string) string {
	if strings.TrimSpace(in) == "" {
		return in
	}
	masked := kvSecretRe.ReplaceAllString(in, `$1$2`+redactedSecret+`$4`)
	masked = bearerRe.ReplaceAllString(masked, `$1 `+redactedSecret)
	masked = longTokenRe.ReplaceAllString(masked, redactedSecret)
	return masked
}

// Size describes a text value by its length only.
func Size(s string) string {
	return fmt.Sprintf("[%d bytes]", len(s))
}

// Params returns a copy of operation parameters that is safe to log.
func Params(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = param(k, v)
	}
	return out
}

func param(key string, value any) any {
	lower := strings.ToLower(key)
	if _, ok := textKeys[lower]; ok {
		if s, isString := value.(string); isString {
			return Size(s)
		}
		return redactedSecret
	}
	if secretKeyRe.MatchString(key) {
		return redactedSecret
	}

	switch v := value.(type) {
	case string:
		if len(v) > maxSettingLen {
			return Size(v)
		}
		return String(v)
	case map[string]any:
		return Params(v)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = param(key, elem)
		}
		return out
	default:
		return value
	}
}
