package action

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	bareKeyRe     = regexp.MustCompile(`(['"])?([a-zA-Z0-9_]+)(['"])?:`)
	singleQuoteRe = regexp.MustCompile(`:\s*'([^']*)'`)
)

// RepairJSON runs the ordered repair ladder over a model-generated JSON
// body and returns the parsed object. Each rung is an independent pure
// text transform; the first one that yields a valid object wins. Total
// failure reports ok=false with an empty params object.
func RepairJSON(raw string) (params map[string]any, ok bool) {
	s := strings.TrimSpace(raw)

	// 1. As-is.
	if m, ok := parseObject(s); ok {
		return m, true
	}

	// 2. Trim to the outermost braces.
	if first, last := strings.Index(s, "{"), strings.LastIndex(s, "}"); first != -1 && last > first {
		s = s[first : last+1]
		if m, ok := parseObject(s); ok {
			return m, true
		}
	}

	// 3. Strip doubled braces: {{...}} -> {...}.
	for strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}") {
		s = s[1 : len(s)-1]
	}
	if m, ok := parseObject(s); ok {
		return m, true
	}

	// 4. Quote bare keys and single-quoted string values.
	fixed := bareKeyRe.ReplaceAllString(s, `"${2}":`)
	fixed = singleQuoteRe.ReplaceAllString(fixed, `: "${1}"`)
	if m, ok := parseObject(fixed); ok {
		return m, true
	}

	return map[string]any{}, false
}

func parseObject(s string) (map[string]any, bool) {
	if !gjson.Valid(s) {
		return nil, false
	}
	parsed := gjson.Parse(s)
	if !parsed.IsObject() {
		return nil, false
	}
	m, ok := parsed.Value().(map[string]any)
	if !ok {
		return nil, false
	}
	return m, true
}
