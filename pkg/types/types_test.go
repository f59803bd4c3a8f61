package types

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), ""},
		{"decode", NewDecodeError("decode", errors.New("bad header")), DecodeError},
		{"wrapped transport", fmt.Errorf("classify: %w", NewTransportError("post", 403, "denied", nil)), TransportError},
		{"structural", NewStructuralError("parse", nil), StructuralError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := NewTransportError("generateContent", 403, "forbidden", errors.New("unexpected status"))
	msg := err.Error()

	for _, part := range []string{"TransportError", "generateContent", "status 403", "unexpected status"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Error() = %q, missing %q", msg, part)
		}
	}

	inner := errors.New("inner")
	if !errors.Is(NewEncodingError("jpeg", inner), inner) {
		t.Error("Unwrap should expose the wrapped error")
	}
}

func TestTruncateBody(t *testing.T) {
	if got := TruncateBody([]byte("short"), 8); got != "short" {
		t.Errorf("TruncateBody() = %q, want %q", got, "short")
	}

	// "암석" is two 3-byte runes; a 4-byte cap lands inside the second one
	got := TruncateBody([]byte("암석"), 4)
	if got != "암…" {
		t.Errorf("TruncateBody() = %q, want %q", got, "암…")
	}
	if !utf8.ValidString(got) {
		t.Errorf("TruncateBody() returned invalid UTF-8: %q", got)
	}

	body := []byte(strings.Repeat("a", 10) + "가나다")
	for limit := 10; limit < len(body); limit++ {
		if out := TruncateBody(body, limit); !utf8.ValidString(out) || strings.ContainsRune(out, utf8.RuneError) {
			t.Errorf("TruncateBody(limit=%d) = %q split a rune", limit, out)
		}
	}
}
