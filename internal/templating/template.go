// Package templating fills flat key/value records into line-oriented text templates.
//
// A template refers to fields with tokens of the form $FIELDNAME. Field names are
// matched case-insensitively by comparing their upper-cased forms. Tokens with no
// matching field are left in the output verbatim, so a template may mention
// optional fields that a given record does not carry.
package templating

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Fields maps field names to values. Values are rendered with their natural
// string form; json.Number renders exactly as it appeared in the input.
type Fields map[string]any

type segment struct {
	literal string
	token   string // upper-cased field name; empty for literal segments
	raw     string // token as written, used when the field is absent
}

// Template is a parsed template body. It is immutable and safe for concurrent use.
type Template struct {
	segments []segment
}

// Parse splits body into literal text and $FIELDNAME tokens.
func Parse(body string) *Template {
	t := &Template{}
	var lit strings.Builder
	for i := 0; i < len(body); {
		if body[i] != '$' {
			lit.WriteByte(body[i])
			i++
			continue
		}
		j := i + 1
		for j < len(body) && isTokenByte(body[j], j == i+1) {
			j++
		}
		if j == i+1 {
			lit.WriteByte('$')
			i++
			continue
		}
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{literal: lit.String()})
			lit.Reset()
		}
		raw := body[i:j]
		t.segments = append(t.segments, segment{token: strings.ToUpper(raw[1:]), raw: raw})
		i = j
	}
	if lit.Len() > 0 {
		t.segments = append(t.segments, segment{literal: lit.String()})
	}
	return t
}

func isTokenByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}

// Render substitutes every token found in layers. When more than one layer
// defines a field, the earliest layer wins; this lets callers pin values that
// later, less trusted layers must not override.
func (t *Template) Render(layers ...Fields) string {
	lookup := make(map[string]string)
	for i := len(layers) - 1; i >= 0; i-- {
		for k, v := range layers[i] {
			lookup[strings.ToUpper(k)] = Stringify(v)
		}
	}

	var out strings.Builder
	for _, s := range t.segments {
		if s.token == "" {
			out.WriteString(s.literal)
			continue
		}
		if v, ok := lookup[s.token]; ok {
			out.WriteString(v)
		} else {
			out.WriteString(s.raw)
		}
	}
	return out.String()
}

// Tokens returns the distinct upper-cased field names referenced by the template.
func (t *Template) Tokens() []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, s := range t.segments {
		if s.token != "" && !seen[s.token] {
			seen[s.token] = true
			tokens = append(tokens, s.token)
		}
	}
	return tokens
}

// Render is a convenience for one-off rendering of an unparsed body.
func Render(body string, fields Fields) string {
	return Parse(body).Render(fields)
}

// Stringify returns the string form used when a value is substituted.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
