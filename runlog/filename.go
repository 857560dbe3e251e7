package runlog

import (
	"regexp"
	"time"
)

const (
	filePrefix      = "Maestro"
	timestampLayout = "2006-01-02_150405"
	maxObjectiveLen = 50
)

var nonWord = regexp.MustCompile(`\W+`)

// Sanitize collapses every run of non-word characters into one underscore.
func Sanitize(objective string) string {
	return nonWord.ReplaceAllString(objective, "_")
}

// Filename derives the artifact name from the objective and the run time.
func Filename(objective string, now time.Time) string {
	ts := now.Format(timestampLayout)
	sanitized := Sanitize(objective)
	if sanitized == "" {
		return filePrefix + "_" + ts + "_output.md"
	}
	if len(sanitized) > maxObjectiveLen {
		sanitized = sanitized[:maxObjectiveLen]
	}
	return filePrefix + "_" + ts + "_" + sanitized + ".md"
}
