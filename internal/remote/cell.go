package remote

import "strings"

// notFoundMarker terminates the fallback display name inside a lookup
// formula cell: =IFERROR(<lookup-expression>, "<Name> (Not Found)").
const notFoundMarker = ` (Not Found)"`

// ExtractFallbackName pulls the display name out of a formula cell that
// embeds a fallback of the form `<lookup-expression>, "<Name> (Not Found)")`.
// Doubled-quote escaping inside the name is undone. Returns false when the
// cell does not match the pattern.
func ExtractFallbackName(cell string) (string, bool) {
	end := strings.LastIndex(cell, notFoundMarker+")")
	if end < 0 {
		// Tolerate a missing trailing paren (truncated cell reads).
		end = strings.LastIndex(cell, notFoundMarker)
		if end < 0 || end+len(notFoundMarker) != len(cell) {
			return "", false
		}
	}

	var name string
	if open := strings.LastIndex(cell[:end], `, "`); open >= 0 {
		name = cell[open+len(`, "`) : end]
	} else if strings.HasPrefix(cell, `"`) {
		// Bare fallback literal without the surrounding lookup expression.
		name = cell[1:end]
	} else {
		return "", false
	}

	return strings.ReplaceAll(name, `""`, `"`), true
}
