package resolve

import (
	"strings"

	"golang.org/x/text/cases"
)

var fold = cases.Fold()

// NormalizeConcept canonicalizes a taxonomy concept name for matching.
// Filers are inconsistent about casing and occasionally include a namespace
// prefix ("us-gaap:LongTermDebt"), so matching is done on the folded,
// prefix-stripped form.
func NormalizeConcept(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	return fold.String(name)
}
