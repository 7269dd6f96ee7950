package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var tokenRe = regexp.MustCompile(`{(.*?)}`)

// Interpolate replaces {name} tokens in s with values from the variable
// map. Tokens starting with $ are resolved as jsonpath expressions against
// the whole map, which lets authors reach into nested values such as
// api_call results ({$.lookup.body.price}). Unresolvable tokens are left
// untouched so a typo is visible instead of silently blank.
func Interpolate(vars map[string]any, s string) string {
	tokens := tokenRe.FindAllString(s, -1)
	if len(tokens) == 0 {
		return s
	}
	out := s
	for _, token := range tokens {
		name := strings.TrimSuffix(strings.TrimPrefix(token, "{"), "}")
		var value any
		var found bool
		if strings.HasPrefix(name, "$") {
			v, err := jsonpath.JsonPathLookup(vars, name)
			if err == nil {
				value, found = v, true
			}
		} else {
			value, found = vars[name]
		}
		if found {
			out = strings.ReplaceAll(out, token, fmt.Sprintf("%v", value))
		}
	}
	return out
}

// ResolveParams interpolates every string value of params, recursing into
// nested maps and lists. Non-string values pass through unchanged.
func ResolveParams(vars map[string]any, params map[string]any) map[string]any {
	output := make(map[string]any, len(params))
	for k, v := range params {
		output[k] = resolveValue(vars, v)
	}
	return output
}

func resolveValue(vars map[string]any, v any) any {
	switch tv := v.(type) {
	case string:
		return Interpolate(vars, tv)
	case map[string]any:
		return ResolveParams(vars, tv)
	case []any:
		out := make([]any, 0, len(tv))
		for _, item := range tv {
			out = append(out, resolveValue(vars, item))
		}
		return out
	default:
		return v
	}
}
