package naming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Mug", "Mug"},
		{"spaces become underscores", "Coffee Mug", "Coffee_Mug"},
		{"punctuation stripped", "Coffee Mug!!", "Coffee_Mug"},
		{"path separators dropped", "../../etc/passwd", "etcpasswd"},
		{"backslashes dropped", `a\b\c`, "abc"},
		{"repeated spaces collapse", "desk   lamp", "desk_lamp"},
		{"mixed underscores and spaces", "a _ b", "a_b"},
		{"unicode dropped", "café ☕", "caf"},
		{"hyphens kept", "blu-ray", "blu-ray"},
		{"leading trailing trimmed", "  mug  ", "mug"},
		{"nothing usable", "!!!", "object"},
		{"empty", "", "object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input))
		})
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := []string{"Coffee Mug!!", "a/b/c", "  x  y  ", "___", "café ☕", "already_clean-1"}
	for _, input := range inputs {
		once := Sanitize(input)
		assert.Equal(t, once, Sanitize(once), "input %q", input)
	}
}

func TestSanitizeIsTotal(t *testing.T) {
	inputs := []string{"/", "\\", "\x00\x01", "日本語", "a b/c\\d!e"}
	for _, input := range inputs {
		out := Sanitize(input)
		assert.NotEmpty(t, out)
		assert.NotContains(t, out, "/")
		assert.NotContains(t, out, "\\")
		for _, r := range out {
			allowed := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
			assert.True(t, allowed, "rune %q leaked through for input %q", r, input)
		}
	}
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("u1", "2bTqX", "Coffee_Mug", "png")
	assert.Equal(t, "users/u1/objects/2bTqX_Coffee_Mug.png", key)
	assert.True(t, strings.HasPrefix(key, ObjectPrefix("u1")))
}

func TestAlarmKey(t *testing.T) {
	key := AlarmKey("u1", "a9", "photo", "jpeg")
	assert.Equal(t, "users/u1/alarms/a9/photo.jpeg", key)
	assert.True(t, strings.HasPrefix(key, AlarmPrefix("u1", "a9")))
}
