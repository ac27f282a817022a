package commands

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize case-folds text, applies NFC and collapses whitespace runs.
// Every phrase and every hypothesis is compared in this form.
func Normalize(text string) string {
	folded := cases.Fold().String(norm.NFC.String(text))
	return strings.Join(strings.Fields(folded), " ")
}
