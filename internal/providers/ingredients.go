package providers

import (
	"regexp"
	"strings"
)

var ingredientSeparators = regexp.MustCompile(`(?i)[,;]|\band\b`)

var enclosing = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// ParseIngredients splits raw ingredient text on commas, semicolons and the
// word "and", trims each fragment, strips one layer of enclosing brackets
// and drops empty fragments. The split is heuristic: nested lists such as
// "sugar (cane, beet)" are cut at the inner comma.
func ParseIngredients(raw string) []string {
	var out []string
	for _, frag := range ingredientSeparators.Split(raw, -1) {
		frag = cleanFragment(frag)
		if len(frag) >= 2 {
			if closing, ok := enclosing[frag[0]]; ok && frag[len(frag)-1] == closing {
				frag = cleanFragment(frag[1 : len(frag)-1])
			}
		}
		if frag != "" {
			out = append(out, frag)
		}
	}
	return out
}

func cleanFragment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".")
	// Allergen markup such as "_milk_" or "*soy*".
	s = strings.Trim(s, "_*")
	return strings.TrimSpace(s)
}
