// Package nameutil provides the canonical key form of level names. Level
// names are unique case-insensitively, so every registry and on-disk key is
// derived through Fold.
package nameutil

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var folder = cases.Fold()

// Fold returns the canonical, case-folded key form of a level name.
func Fold(name string) string {
	return folder.String(name)
}

// Title returns a display form of a level name with an upper-cased first
// letter, used in operator-facing messages.
func Title(name string) string {
	return cases.Title(language.Und, cases.NoLower).String(name)
}
