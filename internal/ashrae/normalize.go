package ashrae

import "strings"

// NormalizeStation reduces an NWS station name to the search token the
// record store indexes on: the first whitespace-separated word with every
// non-alphabetic character removed, uppercased.
//
//	"HARRISBURG CAPITAL ARPT" -> "HARRISBURG"
//	"MT. POCONO"              -> "MT"
func NormalizeStation(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}

	var b strings.Builder
	for _, r := range fields[0] {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}
