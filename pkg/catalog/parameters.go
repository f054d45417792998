package catalog

import (
	"encoding/base64"
	"strings"

	"github.com/user/hostcomply/pkg/compliance"
	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"
)

// ParseParameters reads user parameter overrides. The text is either a
// base64-encoded JSON object of strings or whitespace-separated key=value
// pairs, where a value may be single- or double-quoted and may escape its
// quote or a backslash with '\'.
func ParseParameters(text string) (map[string]string, error) {
	if decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text)); err == nil {
		var obj map[string]string
		if yaml.Unmarshal(decoded, &obj) == nil && obj != nil && strings.HasPrefix(strings.TrimSpace(string(decoded)), "{") {
			return obj, nil
		}
	}
	return parseKeyValuePairs(text)
}

func parseKeyValuePairs(input string) (map[string]string, error) {
	out := map[string]string{}
	pos := 0
	for {
		for pos < len(input) && isSpace(input[pos]) {
			pos++
		}
		if pos >= len(input) {
			return out, nil
		}

		start := pos
		for pos < len(input) && !isSpace(input[pos]) && input[pos] != '=' {
			c := input[pos]
			if !isAlnum(c) && c != '_' {
				return nil, paramError("invalid key: only alphanumeric and underscore characters are allowed")
			}
			if pos == start && c >= '0' && c <= '9' {
				return nil, paramError("invalid key: first character must not be a digit")
			}
			pos++
		}
		if pos == start {
			return nil, paramError("invalid key-value pair: empty key")
		}
		key := input[start:pos]
		if pos >= len(input) || input[pos] != '=' {
			return nil, paramError("invalid key-value pair: '=' expected")
		}
		pos++
		if pos >= len(input) || isSpace(input[pos]) {
			return nil, paramError("invalid key-value pair: missing value")
		}

		if quote := input[pos]; quote == '"' || quote == '\'' {
			value, next, err := parseQuoted(input, pos)
			if err != nil {
				return nil, err
			}
			if next < len(input) && !isSpace(input[next]) {
				return nil, paramError("invalid key-value pair: space expected after quoted value")
			}
			out[key] = value
			pos = next
			continue
		}

		vstart := pos
		for pos < len(input) && !isSpace(input[pos]) {
			pos++
		}
		out[key] = input[vstart:pos]
	}
}

func parseQuoted(input string, pos int) (string, int, error) {
	quote := input[pos]
	var sb strings.Builder
	for pos++; pos < len(input); pos++ {
		c := input[pos]
		if c == '\\' {
			pos++
			if pos >= len(input) || (input[pos] != '\\' && input[pos] != quote) {
				return "", 0, paramError("invalid key-value pair: missing closing quote or invalid escape sequence")
			}
			sb.WriteByte(input[pos])
			continue
		}
		if c == quote {
			return sb.String(), pos + 1, nil
		}
		sb.WriteByte(c)
	}
	return "", 0, paramError("invalid key-value pair: missing closing quote")
}

func paramError(msg string) error {
	return compliance.BindingError(unix.EINVAL, "%s", msg)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
