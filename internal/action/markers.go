package action

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	importanceRe = regexp.MustCompile(`\[MEMORY:(\d+(?:\.\d+)?)\]`)
	silenceRe    = regexp.MustCompile(`(?i)[\[(]NO_RESPONSE[\])]`)
	multiSpaceRe = regexp.MustCompile(`[ \t]{2,}`)
	multiLineRe  = regexp.MustCompile(`\n{3,}`)
)

// ExtractImportance pulls the trailing [MEMORY:x] marker out of model
// output. Absence means importance 0; values above 1 are clamped to 1
// (hallucination guard). The marker is stripped before the text is shown
// to anyone.
func ExtractImportance(text string) (clean string, importance float64) {
	m := importanceRe.FindStringSubmatch(text)
	if m == nil {
		return text, 0
	}
	importance, _ = strconv.ParseFloat(m[1], 64)
	if importance > 1 {
		importance = 1
	}
	clean = strings.TrimSpace(importanceRe.ReplaceAllString(text, ""))
	return clean, importance
}

// IsSilence reports whether the text carries an explicit no-response
// marker or is empty once trimmed.
func IsSilence(text string) bool {
	if silenceRe.MatchString(text) {
		return true
	}
	return strings.TrimSpace(text) == ""
}

// StripSilenceMarkers removes the literal markers, leaving any remaining
// text intact.
func StripSilenceMarkers(text string) string {
	return strings.TrimSpace(silenceRe.ReplaceAllString(text, ""))
}

// Normalize collapses runs of horizontal whitespace to one space and runs
// of three or more newlines to two, trimming the ends.
func Normalize(text string) string {
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = multiLineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
