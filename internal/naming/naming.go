// Package naming derives blob keys from user input. Object names come
// straight from a text field on a phone, so anything outside a small
// allow-list is stripped before the name can appear in a storage path.
package naming

import (
	"fmt"
	"strings"
)

const fallbackName = "object"

// Sanitize reduces name to the allow-listed set [A-Za-z0-9_-]. Runs of
// spaces become a single underscore, every other rune is dropped, repeated
// underscores collapse, and leading/trailing underscores are trimmed. The
// result never contains a path separator and sanitizing twice is a no-op.
// An input with nothing usable left maps to "object".
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	lastUnderscore := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case r == ' ' || r == '_':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		default:
			// dropped, including / and \
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return fallbackName
	}
	return out
}

// ObjectKey builds the deterministic blob key for a scanned object. safeName
// must already be sanitized.
func ObjectKey(userID, objectID, safeName, ext string) string {
	return fmt.Sprintf("users/%s/objects/%s_%s.%s", userID, objectID, safeName, ext)
}

// ObjectPrefix is the key prefix covering every scanned-object blob a user owns.
func ObjectPrefix(userID string) string {
	return fmt.Sprintf("users/%s/objects/", userID)
}

// AlarmKey builds the blob key for an alarm's photo attachment.
func AlarmKey(userID, alarmID, safeName, ext string) string {
	return fmt.Sprintf("users/%s/alarms/%s/%s.%s", userID, alarmID, safeName, ext)
}

// AlarmPrefix covers all attachment blobs of one alarm.
func AlarmPrefix(userID, alarmID string) string {
	return fmt.Sprintf("users/%s/alarms/%s/", userID, alarmID)
}
