package similarity

import (
	"strings"
	"unicode"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// IdentityKey returns the de-duplication key of a catalog entry: its track
// ID, else its normalized track name. Entries with neither return "" and are
// never merged.
func IdentityKey(e domain.CatalogEntry) string {
	if id := strings.TrimSpace(e.ID); id != "" {
		return "id:" + id
	}
	if name := normalizeName(e.TrackName); name != "" {
		return "name:" + name
	}
	return ""
}

func normalizeName(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	return strings.Join(strings.Fields(cleanSeparators(strings.ToLower(input))), " ")
}

func cleanSeparators(input string) string {
	var out strings.Builder
	lastSpace := false
	for _, r := range input {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			out.WriteRune(' ')
			lastSpace = true
		}
	}

	return out.String()
}
