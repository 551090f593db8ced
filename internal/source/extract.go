package source

import (
	"regexp"
	"strconv"
	"strings"
)

// extractor is one regex strategy for a field: the first capture group is
// the value.
type extractor struct {
	name string
	re   *regexp.Regexp
}

// fieldExtractor tries its strategies in priority order, returning the
// first non-empty match. Scraping unstructured pages needs multiple label
// variants per field because the exact wording varies between renders.
type fieldExtractor struct {
	field      string
	strategies []extractor
}

func (f fieldExtractor) extract(text string) string {
	for _, s := range f.strategies {
		m := s.re.FindStringSubmatch(text)
		if len(m) > 1 {
			if v := strings.TrimSpace(m[1]); v != "" {
				return v
			}
		}
	}
	return ""
}

// findJSONKey walks decoded JSON depth-first and returns the first value
// stored under any of the given keys.
func findJSONKey(node any, keys ...string) (any, bool) {
	switch v := node.(type) {
	case map[string]any:
		for _, k := range keys {
			if val, ok := v[k]; ok && val != nil {
				return val, true
			}
		}
		for _, child := range v {
			if val, ok := findJSONKey(child, keys...); ok {
				return val, true
			}
		}
	case []any:
		for _, child := range v {
			if val, ok := findJSONKey(child, keys...); ok {
				return val, true
			}
		}
	}
	return nil, false
}

// normalizeLotSize renders a lot-size value with units. Unlabeled numeric
// values below 500 are assumed to be acres, larger ones square feet.
func normalizeLotSize(raw any) string {
	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return ""
		}
		lower := strings.ToLower(s)
		if strings.Contains(lower, "acre") || strings.Contains(lower, "sq") {
			return s
		}
		if n, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			return normalizeLotSize(n)
		}
		return s
	case float64:
		num := strconv.FormatFloat(v, 'f', -1, 64)
		if v < 500 {
			return num + " Acres"
		}
		return num + " sqft"
	case int:
		return normalizeLotSize(float64(v))
	default:
		return ""
	}
}

// anyToString renders scalar JSON values for display fields.
func anyToString(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
