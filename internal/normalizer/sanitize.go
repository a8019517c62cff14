package normalizer

import "bytes"

// Tokens some JSON encoders emit for non-finite floats. Longest first so
// "-Infinity" is not consumed as "-" followed by "Infinity".
var nonFiniteTokens = [][]byte{
	[]byte("-Infinity"),
	[]byte("Infinity"),
	[]byte("NaN"),
}

// sanitizeNonFinite rewrites bare NaN and Infinity tokens outside of string
// literals to null so the body decodes as standard JSON.
func sanitizeNonFinite(raw []byte) []byte {
	if !bytes.Contains(raw, []byte("NaN")) && !bytes.Contains(raw, []byte("Infinity")) {
		return raw
	}

	out := make([]byte, 0, len(raw))
	inString, escaped := false, false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}

		if n := nonFiniteTokenLen(raw[i:]); n > 0 {
			out = append(out, "null"...)
			i += n - 1
			continue
		}
		out = append(out, c)
	}
	return out
}

func nonFiniteTokenLen(b []byte) int {
	for _, tok := range nonFiniteTokens {
		if bytes.HasPrefix(b, tok) {
			return len(tok)
		}
	}
	return 0
}
